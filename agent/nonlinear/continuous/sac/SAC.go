// Package sac implements the Soft Actor-Critic algorithm for
// continuous action spaces.
//
// SAC learns a squashed Gaussian policy together with two soft
// action-value functions. The critics are trained towards an
// entropy-regularized bootstrap target computed from slowly moving
// copies of themselves, and the policy is trained to maximize the
// entropy-regularized value of its own samples. Optionally, the
// entropy coefficient α is adjusted automatically towards a target
// entropy.
package sac

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"sfneuman.com/gosac/agent"
	"sfneuman.com/gosac/agent/nonlinear/continuous/policy"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/expreplay"
	"sfneuman.com/gosac/network"
	"sfneuman.com/gosac/solver"
	"sfneuman.com/gosac/timestep"
	"sfneuman.com/gosac/utils/floatutils"
)

// SAC implements the Soft Actor-Critic algorithm.
//
// The agent holds its networks on four separate computational graphs:
// one for the policy objective, one for the critic objective, one for
// the target critics, and one for the entropy coefficient (inside the
// Temperature). Values move between graphs as plain float64 slices.
// Feeding the critic backup and the entropy gap in numerically is what
// stops gradients from flowing where they should not: each graph only
// ever differentiates its own objective with respect to its own
// weights.
type SAC struct {
	replay     expreplay.ExperienceReplayer
	batchSize  int
	features   int
	actionDims int

	gamma              float64
	tau                float64
	bootstrapOnTimeout bool

	// behaviour selects actions at each timestep. Its weights are
	// synced from the learned policy after every update.
	behaviour *policy.SquashedGaussianTreeMLP

	// Policy objective graph. policyCritic is a view of the first
	// critic whose weights are copied in before each policy update so
	// that the policy gradient can flow through the critic forward
	// pass.
	trainPolicy        *policy.SquashedGaussianTreeMLP
	policyCritic       network.NeuralNet
	policyCriticStates *G.Node
	alphaInput         *G.Node
	policyLossVal      G.Value
	policyVM           G.VM
	policySolver       *solver.Solver

	// Critic objective graph
	q1           network.NeuralNet
	q2           network.NeuralNet
	valueStates  *G.Node
	valueActions *G.Node
	qBackup      *G.Node
	q1LossVal    G.Value
	q2LossVal    G.Value
	valueModel   []G.ValueGrad
	valueVM      G.VM
	criticSolver *solver.Solver

	// Target critic graph, forward passes only
	targetQ1      network.NeuralNet
	targetQ2      network.NeuralNet
	targetStates  *G.Node
	targetActions *G.Node
	targetVM      G.VM

	temperature Temperature

	prevStep      timestep.TimeStep
	gradientSteps int

	lossPi float64
	lossQ1 float64
	lossQ2 float64

	evalMode bool
}

// New returns a new SAC agent acting in the argument environment
func New(env environment.Environment, config Config,
	seed uint64) (*SAC, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("sac: %v", err)
	}
	if env.ActionSpec().Cardinality != environment.Continuous {
		return nil, fmt.Errorf("sac: actions must be continuous")
	}

	features := env.ObservationSpec().Shape.Len()
	actionDims := env.ActionSpec().Shape.Len()
	batchSize := config.BatchSize
	init := config.InitWFn.InitWFn()

	replay, err := expreplay.New(config.ReplayCapacity, features,
		actionDims, seed)
	if err != nil {
		return nil, fmt.Errorf("sac: could not create replay buffer: %v",
			err)
	}

	// Behaviour policy for action selection
	behaviour, err := policy.NewSquashedGaussianTreeMLP(env, 1,
		G.NewGraph(), config.RootHiddenSizes, config.RootBiases,
		config.RootActivations, config.LeafHiddenSizes, config.LeafBiases,
		config.LeafActivations, init, seed)
	if err != nil {
		return nil, fmt.Errorf("sac: could not create behaviour "+
			"policy: %v", err)
	}

	// Policy objective graph: π(s), log π(a|s), and a view of the
	// first critic evaluating Q(s, π(s))
	gPolicy := G.NewGraph()
	trainPolicy, err := policy.NewSquashedGaussianTreeMLP(env, batchSize,
		gPolicy, config.RootHiddenSizes, config.RootBiases,
		config.RootActivations, config.LeafHiddenSizes, config.LeafBiases,
		config.LeafActivations, init, seed+1)
	if err != nil {
		return nil, fmt.Errorf("sac: could not create learned policy: %v",
			err)
	}

	policyCriticStates := G.NewMatrix(gPolicy, tensor.Float64,
		G.WithShape(batchSize, features), G.WithName("criticStates"),
		G.WithInit(G.Zeroes()))
	policyCritic, err := network.NewMultiHeadMLPFromInputs(
		[]*G.Node{policyCriticStates, trainPolicy.Actions()}, 1, gPolicy,
		config.QHiddenSizes, config.QBiases, init, config.QActivations,
		"Q1")
	if err != nil {
		return nil, fmt.Errorf("sac: could not create critic view for "+
			"the policy objective: %v", err)
	}

	alphaInput := G.NewScalar(gPolicy, tensor.Float64,
		G.WithName("alpha"), G.WithValue(config.Alpha))

	// Policy loss: mean over the batch of α log π(a|s) - Q(s, π(s))
	policyQ := G.Must(G.Ravel(policyCritic.Prediction()[0]))
	weightedLogPdf := G.Must(G.HadamardProd(alphaInput,
		trainPolicy.LogPdfNode()))
	policyLoss := G.Must(G.Mean(G.Must(G.Sub(weightedLogPdf, policyQ))))

	sacAgent := &SAC{
		replay:     replay,
		batchSize:  batchSize,
		features:   features,
		actionDims: actionDims,

		gamma:              config.Gamma,
		tau:                config.Tau,
		bootstrapOnTimeout: config.BootstrapOnTimeout,

		behaviour: behaviour,

		trainPolicy:        trainPolicy,
		policyCritic:       policyCritic,
		policyCriticStates: policyCriticStates,
		alphaInput:         alphaInput,
		policySolver:       config.PolicySolver,

		criticSolver: config.CriticSolver,
	}
	G.Read(policyLoss, &sacAgent.policyLossVal)

	policyLearnables := trainPolicy.Network().Learnables()
	if _, err := G.Grad(policyLoss, policyLearnables...); err != nil {
		return nil, fmt.Errorf("sac: could not compute policy "+
			"gradient: %v", err)
	}
	sacAgent.policyVM = G.NewTapeMachine(gPolicy,
		G.BindDualValues(policyLearnables...))

	// Critic objective graph: both critics regressed towards a common
	// backup fed in as an input tensor
	gValue := G.NewGraph()
	sacAgent.valueStates = G.NewMatrix(gValue, tensor.Float64,
		G.WithShape(batchSize, features), G.WithName("states"),
		G.WithInit(G.Zeroes()))
	sacAgent.valueActions = G.NewMatrix(gValue, tensor.Float64,
		G.WithShape(batchSize, actionDims), G.WithName("actions"),
		G.WithInit(G.Zeroes()))
	sacAgent.qBackup = G.NewVector(gValue, tensor.Float64,
		G.WithShape(batchSize), G.WithName("qBackup"),
		G.WithInit(G.Zeroes()))

	valueInputs := []*G.Node{sacAgent.valueStates, sacAgent.valueActions}
	sacAgent.q1, err = network.NewMultiHeadMLPFromInputs(valueInputs, 1,
		gValue, config.QHiddenSizes, config.QBiases, init,
		config.QActivations, "Q1")
	if err != nil {
		return nil, fmt.Errorf("sac: could not create first critic: %v",
			err)
	}
	sacAgent.q2, err = network.NewMultiHeadMLPFromInputs(valueInputs, 1,
		gValue, config.QHiddenSizes, config.QBiases, init,
		config.QActivations, "Q2")
	if err != nil {
		return nil, fmt.Errorf("sac: could not create second critic: %v",
			err)
	}

	half := G.NewConstant(0.5)
	q1Loss := lossMSE(sacAgent.q1, sacAgent.qBackup, half)
	q2Loss := lossMSE(sacAgent.q2, sacAgent.qBackup, half)
	valueLoss := G.Must(G.Add(q1Loss, q2Loss))
	G.Read(q1Loss, &sacAgent.q1LossVal)
	G.Read(q2Loss, &sacAgent.q2LossVal)

	valueLearnables := append(G.Nodes{}, sacAgent.q1.Learnables()...)
	valueLearnables = append(valueLearnables, sacAgent.q2.Learnables()...)
	if _, err := G.Grad(valueLoss, valueLearnables...); err != nil {
		return nil, fmt.Errorf("sac: could not compute critic "+
			"gradient: %v", err)
	}
	sacAgent.valueModel = make([]G.ValueGrad, 0, len(valueLearnables))
	for _, learnable := range valueLearnables {
		sacAgent.valueModel = append(sacAgent.valueModel, learnable)
	}
	sacAgent.valueVM = G.NewTapeMachine(gValue,
		G.BindDualValues(valueLearnables...))

	// Target critic graph
	gTarget := G.NewGraph()
	sacAgent.targetStates = G.NewMatrix(gTarget, tensor.Float64,
		G.WithShape(batchSize, features), G.WithName("states"),
		G.WithInit(G.Zeroes()))
	sacAgent.targetActions = G.NewMatrix(gTarget, tensor.Float64,
		G.WithShape(batchSize, actionDims), G.WithName("actions"),
		G.WithInit(G.Zeroes()))

	targetInputs := []*G.Node{sacAgent.targetStates, sacAgent.targetActions}
	sacAgent.targetQ1, err = network.NewMultiHeadMLPFromInputs(targetInputs,
		1, gTarget, config.QHiddenSizes, config.QBiases, init,
		config.QActivations, "Q1Target")
	if err != nil {
		return nil, fmt.Errorf("sac: could not create first target "+
			"critic: %v", err)
	}
	sacAgent.targetQ2, err = network.NewMultiHeadMLPFromInputs(targetInputs,
		1, gTarget, config.QHiddenSizes, config.QBiases, init,
		config.QActivations, "Q2Target")
	if err != nil {
		return nil, fmt.Errorf("sac: could not create second target "+
			"critic: %v", err)
	}
	sacAgent.targetVM = G.NewTapeMachine(gTarget)

	// Targets start identical to the learned critics
	if err := network.Set(sacAgent.targetQ1, sacAgent.q1); err != nil {
		return nil, fmt.Errorf("sac: could not initialize first target "+
			"critic: %v", err)
	}
	if err := network.Set(sacAgent.targetQ2, sacAgent.q2); err != nil {
		return nil, fmt.Errorf("sac: could not initialize second target "+
			"critic: %v", err)
	}

	// Behaviour weights match the learned policy
	err = network.Set(sacAgent.behaviour.Network(), trainPolicy.Network())
	if err != nil {
		return nil, fmt.Errorf("sac: could not initialize behaviour "+
			"policy: %v", err)
	}

	// Entropy coefficient
	if config.LearnAlpha {
		targetEntropy := config.TargetEntropy
		if targetEntropy == 0 {
			targetEntropy = -float64(actionDims)
		}
		alphaSolver, err := config.alphaSolver()
		if err != nil {
			return nil, fmt.Errorf("sac: %v", err)
		}
		sacAgent.temperature, err = NewLearnedTemperature(targetEntropy,
			alphaSolver)
		if err != nil {
			return nil, fmt.Errorf("sac: %v", err)
		}
	} else {
		sacAgent.temperature, err = NewFixedTemperature(config.Alpha)
		if err != nil {
			return nil, fmt.Errorf("sac: %v", err)
		}
	}

	return sacAgent, nil
}

// lossMSE adds the scaled mean squared error between the critic's
// prediction and the backup to the critic's graph
func lossMSE(critic network.NeuralNet, backup, scale *G.Node) *G.Node {
	pred := G.Must(G.Ravel(critic.Prediction()[0]))
	diff := G.Must(G.Sub(pred, backup))
	loss := G.Must(G.Mean(G.Must(G.HadamardProd(diff, diff))))
	return G.Must(G.Mul(scale, loss))
}

// ObserveFirst observes and records the first episodic timestep
func (s *SAC) ObserveFirst(t timestep.TimeStep) error {
	if !t.First() {
		return fmt.Errorf("observeFirst: timestep "+
			"called on non-first timestep \n\thave(%v)", t.StepType)
	}
	s.prevStep = t
	return nil
}

// Observe observes and records any timestep other than the first.
// The timeout policy set at construction determines whether a
// step-limit episode ending is stored as terminal.
func (s *SAC) Observe(action mat.Vector, nextStep timestep.TimeStep) error {
	terminal := nextStep.TerminalEnd()
	if !s.bootstrapOnTimeout {
		terminal = terminal || nextStep.TimeoutEnd()
	}

	transition := timestep.NewTransition(s.prevStep, action, nextStep,
		terminal)
	if err := s.replay.Add(transition); err != nil {
		return fmt.Errorf("observe: could not store transition: %v", err)
	}

	s.prevStep = nextStep
	return nil
}

// EndEpisode performs cleanup at the end of an episode
func (s *SAC) EndEpisode() {}

// Step performs a single gradient update: one policy update, one
// update of both critics towards the entropy-regularized bootstrap,
// one Polyak sync of the target critics, and one temperature update.
// Step is a no-op only while the replay buffer holds no transitions
// at all. Batches are sampled with replacement, so updates proceed
// even when fewer than a full batch of distinct transitions exist.
func (s *SAC) Step() error {
	if s.replay.Capacity() == 0 {
		return nil
	}

	states, actions, rewards, terminals, nextStates, err :=
		s.replay.Sample(s.batchSize)
	if err != nil {
		return fmt.Errorf("step: could not sample replay buffer: %v", err)
	}

	// Policy update on the sampled states
	logPdf, err := s.stepPolicy(states)
	if err != nil {
		return err
	}

	// Actions and log densities at the next states, from the freshly
	// updated policy
	nextActions, nextLogPdf, err := s.policyForward(nextStates)
	if err != nil {
		return err
	}

	// Critic update towards the bootstrap target
	backup, err := s.backup(rewards, terminals, nextStates, nextActions,
		nextLogPdf)
	if err != nil {
		return err
	}
	if err := s.stepCritics(states, actions, backup); err != nil {
		return err
	}

	// Target critics drift towards the updated critics
	if err := network.Polyak(s.targetQ1, s.q1, s.tau); err != nil {
		return fmt.Errorf("step: could not update first target "+
			"critic: %v", err)
	}
	if err := network.Polyak(s.targetQ2, s.q2, s.tau); err != nil {
		return fmt.Errorf("step: could not update second target "+
			"critic: %v", err)
	}

	if err := s.temperature.Step(logPdf); err != nil {
		return fmt.Errorf("step: could not step temperature: %v", err)
	}

	// The behaviour policy acts with the updated weights
	err = network.Set(s.behaviour.Network(), s.trainPolicy.Network())
	if err != nil {
		return fmt.Errorf("step: could not sync behaviour policy: %v", err)
	}

	s.gradientSteps++
	return nil
}

// stepPolicy performs one gradient update of the policy on the
// argument states, returning the log densities of the policy samples
func (s *SAC) stepPolicy(states []float64) ([]float64, error) {
	// The policy objective evaluates the current first critic
	if err := network.Set(s.policyCritic, s.q1); err != nil {
		return nil, fmt.Errorf("step: could not sync critic view: %v", err)
	}
	err := G.Let(s.alphaInput, s.temperature.Alpha())
	if err != nil {
		return nil, fmt.Errorf("step: could not set alpha: %v", err)
	}

	stateTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.features}, tensor.WithBacking(states))
	if err := G.Let(s.policyCriticStates, stateTensor); err != nil {
		return nil, fmt.Errorf("step: could not set critic states: %v", err)
	}

	logPdf, _, err := s.runPolicyGraph(states)
	if err != nil {
		return nil, err
	}
	s.lossPi = s.policyLossVal.Data().(float64)

	err = s.policySolver.Step(s.trainPolicy.Network().Model())
	s.policyVM.Reset()
	if err != nil {
		return nil, fmt.Errorf("step: could not step policy solver: %v",
			err)
	}
	return logPdf, nil
}

// policyForward runs the policy graph forward on the argument states
// without updating any weights, returning the sampled actions and
// their log densities
func (s *SAC) policyForward(states []float64) ([]float64, []float64,
	error) {
	logPdf, actions, err := s.runPolicyGraph(states)
	s.policyVM.Reset()
	return actions, logPdf, err
}

// runPolicyGraph runs the policy graph on the argument states with
// fresh noise. The caller must Reset the VM.
func (s *SAC) runPolicyGraph(states []float64) ([]float64, []float64,
	error) {
	if err := s.trainPolicy.Network().SetInput(states); err != nil {
		return nil, nil, fmt.Errorf("step: could not set policy "+
			"states: %v", err)
	}
	if err := s.trainPolicy.ResampleNoise(); err != nil {
		return nil, nil, fmt.Errorf("step: could not resample policy "+
			"noise: %v", err)
	}
	if err := s.policyVM.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("step: could not run policy "+
			"graph: %v", err)
	}

	logPdf := make([]float64, s.batchSize)
	copy(logPdf, s.trainPolicy.LogPdfVal().Data().([]float64))
	actions := make([]float64, s.batchSize*s.actionDims)
	copy(actions, s.trainPolicy.ActionsVal().Data().([]float64))
	return logPdf, actions, nil
}

// backup computes the critic regression target
//
//	r + γ (1 - done) (min(Q1', Q2')(s', a') - α log π(a'|s'))
//
// where a' is sampled from the current policy at the next state and
// Q1', Q2' are the target critics.
func (s *SAC) backup(rewards, terminals, nextStates, nextActions,
	nextLogPdf []float64) ([]float64, error) {
	nextStateTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.features}, tensor.WithBacking(nextStates))
	if err := G.Let(s.targetStates, nextStateTensor); err != nil {
		return nil, fmt.Errorf("step: could not set target states: %v", err)
	}
	nextActionTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.actionDims},
		tensor.WithBacking(nextActions))
	if err := G.Let(s.targetActions, nextActionTensor); err != nil {
		return nil, fmt.Errorf("step: could not set target actions: %v",
			err)
	}

	if err := s.targetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("step: could not run target critics: %v",
			err)
	}
	defer s.targetVM.Reset()

	q1Target := s.targetQ1.Output()[0].Data().([]float64)
	q2Target := s.targetQ2.Output()[0].Data().([]float64)

	alpha := s.temperature.Alpha()
	backup := make([]float64, s.batchSize)
	for i := range backup {
		softValue := floatutils.Min(q1Target[i], q2Target[i]) -
			alpha*nextLogPdf[i]
		backup[i] = rewards[i] + s.gamma*(1.0-terminals[i])*softValue
	}
	return backup, nil
}

// stepCritics performs one gradient update of both critics towards
// the argument backup
func (s *SAC) stepCritics(states, actions, backup []float64) error {
	stateTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.features}, tensor.WithBacking(states))
	if err := G.Let(s.valueStates, stateTensor); err != nil {
		return fmt.Errorf("step: could not set critic states: %v", err)
	}
	actionTensor := tensor.NewDense(tensor.Float64,
		[]int{s.batchSize, s.actionDims}, tensor.WithBacking(actions))
	if err := G.Let(s.valueActions, actionTensor); err != nil {
		return fmt.Errorf("step: could not set critic actions: %v", err)
	}
	backupTensor := tensor.NewDense(tensor.Float64, []int{s.batchSize},
		tensor.WithBacking(backup))
	if err := G.Let(s.qBackup, backupTensor); err != nil {
		return fmt.Errorf("step: could not set critic backup: %v", err)
	}

	if err := s.valueVM.RunAll(); err != nil {
		return fmt.Errorf("step: could not run critic graph: %v", err)
	}
	s.lossQ1 = s.q1LossVal.Data().(float64)
	s.lossQ2 = s.q2LossVal.Data().(float64)

	err := s.criticSolver.Step(s.valueModel)
	s.valueVM.Reset()
	if err != nil {
		return fmt.Errorf("step: could not step critic solver: %v", err)
	}
	return nil
}

// SelectAction selects an action at the argument timestep
func (s *SAC) SelectAction(t timestep.TimeStep) *mat.VecDense {
	return s.behaviour.SelectAction(t)
}

// Eval sets the agent to evaluation mode, where the deterministic
// mean action is selected
func (s *SAC) Eval() {
	s.evalMode = true
	s.behaviour.Eval()
}

// Train sets the agent to training mode, where actions are sampled
// from the policy distribution
func (s *SAC) Train() {
	s.evalMode = false
	s.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (s *SAC) IsEval() bool { return s.evalMode }

// GradientSteps returns the number of gradient updates performed
func (s *SAC) GradientSteps() int {
	return s.gradientSteps
}

// Losses returns the policy loss and both critic losses recorded at
// the most recent gradient update
func (s *SAC) Losses() (lossPi, lossQ1, lossQ2 float64) {
	return s.lossPi, s.lossQ1, s.lossQ2
}

// Alpha returns the current entropy coefficient
func (s *SAC) Alpha() float64 {
	return s.temperature.Alpha()
}

// TotalTransitions returns the number of transitions stored in the
// replay buffer
func (s *SAC) TotalTransitions() int {
	return s.replay.Capacity()
}

// Close cleans up the agent's resources
func (s *SAC) Close() error {
	if err := s.behaviour.Close(); err != nil {
		return err
	}
	if err := s.policyVM.Close(); err != nil {
		return err
	}
	if err := s.valueVM.Close(); err != nil {
		return err
	}
	if err := s.targetVM.Close(); err != nil {
		return err
	}
	return s.temperature.Close()
}

// gobNets returns the agent's networks in a stable order for
// serialization
func (s *SAC) gobNets() []network.NeuralNet {
	return []network.NeuralNet{
		s.trainPolicy.Network(),
		s.q1,
		s.q2,
		s.targetQ1,
		s.targetQ2,
	}
}

// GobEncode implements the gob.GobEncoder interface, serializing all
// network weights and the entropy coefficient
func (s *SAC) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	for _, net := range s.gobNets() {
		for _, learnable := range net.Learnables() {
			weights := learnable.Value().Data().([]float64)
			if err := enc.Encode(weights); err != nil {
				return nil, fmt.Errorf("gobencode: could not encode "+
					"%v: %v", learnable.Name(), err)
			}
		}
	}

	if err := enc.Encode(s.temperature.Alpha()); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode alpha: %v",
			err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The agent must
// have been constructed with the same configuration that produced the
// encoded data.
func (s *SAC) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))

	for _, net := range s.gobNets() {
		for _, learnable := range net.Learnables() {
			var weights []float64
			if err := dec.Decode(&weights); err != nil {
				return fmt.Errorf("gobdecode: could not decode %v: %v",
					learnable.Name(), err)
			}

			weightTensor := tensor.NewDense(tensor.Float64,
				learnable.Shape(), tensor.WithBacking(weights))
			if err := G.Let(learnable, weightTensor); err != nil {
				return fmt.Errorf("gobdecode: could not set %v: %v",
					learnable.Name(), err)
			}
		}
	}

	var alpha float64
	if err := dec.Decode(&alpha); err != nil {
		return fmt.Errorf("gobdecode: could not decode alpha: %v", err)
	}
	if err := s.temperature.set(alpha); err != nil {
		return fmt.Errorf("gobdecode: could not set alpha: %v", err)
	}

	return network.Set(s.behaviour.Network(), s.trainPolicy.Network())
}

// Interface compliance
var _ agent.Agent = (*SAC)(nil)
var _ agent.Closer = (*SAC)(nil)
