// Package walker provides an implementation of a planar bipedal
// walking environment.
package walker

import (
	"fmt"
	"image/color"
	"math"

	"golang.org/x/exp/rand"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distuv"
	"sfneuman.com/gosac/environment"
	"sfneuman.com/gosac/timestep"
	"sfneuman.com/gosac/utils/floatutils"
)

const (
	FPS float64 = 50

	// speed of simulation, adjusts forces as well
	Scale float64 = 30.0

	XGravity float64 = 0.0
	YGravity float64 = -10.0

	MotorsTorque float64 = 80.0
	SpeedHip     float64 = 4.0
	SpeedKnee    float64 = 6.0

	// Leg geometry, in pixels
	LegDown float64 = 8.0
	LegW    float64 = 8.0
	LegH    float64 = 34.0

	ViewportW float64 = 600
	ViewportH float64 = 400

	// Action
	MaxContinuousAction float64 = 1.0
	MinContinuousAction float64 = -MaxContinuousAction
	ActionDims          int     = 4

	// State observations
	StateObservations int     = 14
	MinAngle          float64 = -math.Pi
	MaxAngle          float64 = math.Pi
	// Box2D limits on velocity: 2.0 units per timestep
	MaxVelocity float64 = 2.0 / (1.0 / FPS) // In Box2D units
	MinVelocity float64 = -MaxVelocity      // In Box2D units

	// Joint limits
	MinHipAngle  float64 = -0.8
	MaxHipAngle  float64 = 1.1
	MinKneeAngle float64 = -1.6
	MaxKneeAngle float64 = -0.1

	// Terrain
	TerrainHeight  float64 = ViewportH / Scale / 4
	GroundFriction float64 = 2.5

	// Goal: walk the hull past this world x coordinate
	FinishX float64 = 0.95 * ViewportW / Scale

	// Default starting values
	InitialX      float64 = ViewportW / Scale / 10
	InitialY      float64 = TerrainHeight + (LegDown+2*LegH)/Scale
	InitialRandom float64 = 5.0
)

var (
	HullPoly [][]float64 = [][]float64{
		{-30, 9},
		{6, 9},
		{34, 1},
		{34, -8},
		{-30, -8},
	}
)

func WorldToPixelCoord(coords [2]float64) [2]float64 {
	x, y := coords[0], coords[1]

	pixelX := Scale * x

	pixelY := ViewportH - Scale*y

	return [2]float64{pixelX, pixelY}
}

// contactDetector listens to the physics world for the contacts that
// matter: the hull touching the ground ends the episode as a fall,
// and each lower leg's ground contact is part of the state
// observation.
type contactDetector struct {
	env *walker
}

func newContactDetector(e *walker) *contactDetector {
	return &contactDetector{e}
}

func (c *contactDetector) BeginContact(contact box2d.B2ContactInterface) {
	// Check if the hull touched the ground. Walkers cannot recover
	// from a fall.
	if c.env.hull == contact.GetFixtureA().GetBody() ||
		c.env.hull == contact.GetFixtureB().GetBody() {
		c.env.gameOver = true
	}

	// Check if the left lower leg touched the ground
	if c.env.legs[1] == contact.GetFixtureA().GetBody() ||
		c.env.legs[1] == contact.GetFixtureB().GetBody() {
		c.env.leg1GroundContact = true
	}

	// Check if the right lower leg touched the ground
	if c.env.legs[3] == contact.GetFixtureA().GetBody() ||
		c.env.legs[3] == contact.GetFixtureB().GetBody() {
		c.env.leg2GroundContact = true
	}
}

func (c *contactDetector) EndContact(contact box2d.B2ContactInterface) {
	// Check if the left lower leg left the ground
	if c.env.legs[1] == contact.GetFixtureA().GetBody() ||
		c.env.legs[1] == contact.GetFixtureB().GetBody() {
		c.env.leg1GroundContact = false
	}

	// Check if the right lower leg left the ground
	if c.env.legs[3] == contact.GetFixtureA().GetBody() ||
		c.env.legs[3] == contact.GetFixtureB().GetBody() {
		c.env.leg2GroundContact = false
	}
}

func (c *contactDetector) PreSolve(contact box2d.B2ContactInterface, oldManifold box2d.B2Manifold) {}
func (c *contactDetector) PostSolve(contact box2d.B2ContactInterface, impulse *box2d.B2ContactImpulse) {
}

// walker implements a planar bipedal walker. A hull is supported by
// two legs, each with an upper and a lower segment connected by
// motorized revolute joints at the hip and knee. Actions drive the
// four joint motors, and the task is to move the hull forward along
// flat terrain without letting it touch the ground.
type walker struct {
	environment.Task
	ender environment.Ender

	world box2d.B2World

	ground       *box2d.B2Body
	groundColour color.Color
	skyShade     color.Color
	xBounds      r1.Interval
	yBounds      r1.Interval

	hull       *box2d.B2Body
	hullColour color.Color

	legs              []*box2d.B2Body
	joints            []*box2d.B2RevoluteJoint
	leg1GroundContact bool
	leg2GroundContact bool
	legColour         color.Color

	gameOver bool
	seed     uint64
	rng      distuv.Uniform

	actionBounds r1.Interval
	angleBounds  r1.Interval

	discount float64
	prevStep timestep.TimeStep
}

// New returns a new walker environment with the argument task. The
// task must be a task constructed by this package, since rewards and
// episode endings depend on the physics state of the walker.
func New(task environment.Task, discount float64,
	seed uint64) (environment.Environment, timestep.TimeStep, error) {
	t, ok := task.(walkerTask)
	if !ok {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: task must be " +
			"a walker task")
	}

	w := walker{}
	w.world = box2d.MakeB2World(box2d.B2Vec2{X: XGravity, Y: YGravity})

	w.ground = nil
	w.groundColour = color.RGBA{R: 102, G: 153, B: 76, A: 255}
	w.skyShade = color.RGBA{R: 30, G: 30, B: 30, A: 255}

	w.hull = nil
	w.hullColour = color.RGBA{R: 128, G: 102, B: 230, A: 255}
	w.legColour = color.RGBA{R: 77, G: 77, B: 128, A: 255}

	w.seed = seed
	w.gameOver = false

	src := rand.NewSource(seed)
	w.rng = distuv.Uniform{Min: 0, Max: 1.0, Src: src}
	w.discount = discount

	w.actionBounds = r1.Interval{
		Min: MinContinuousAction,
		Max: MaxContinuousAction,
	}
	w.angleBounds = r1.Interval{Min: MinAngle, Max: MaxAngle}
	w.xBounds = r1.Interval{Min: 0.0, Max: ViewportW / Scale / 2}
	w.yBounds = r1.Interval{Min: TerrainHeight, Max: ViewportH / Scale}

	t.registerEnv(&w)
	w.Task = t
	w.ender = t

	step := w.Reset()
	return &w, step, nil
}

// Hull returns the body of the walker's hull
func (w *walker) Hull() *box2d.B2Body {
	return w.hull
}

// GroundContact returns whether each of the walker's lower legs has
// contact with the ground
func (w *walker) GroundContact() (bool, bool) {
	return w.leg1GroundContact, w.leg2GroundContact
}

// IsGameOver returns whether the walker has fallen over
func (w *walker) IsGameOver() bool {
	return w.gameOver
}

func (w *walker) destroy() {
	if w.hull == nil {
		return
	}
	w.world.SetContactListener(nil)

	w.world.DestroyBody(w.ground)
	w.ground = nil

	w.world.DestroyBody(w.hull)
	w.hull = nil

	for _, leg := range w.legs {
		w.world.DestroyBody(leg)
	}
	w.legs = nil
	w.joints = nil
}

// Reset rebuilds the physics world for a new episode, with the walker
// standing upright at the task's starting position
func (w *walker) Reset() timestep.TimeStep {
	w.destroy()
	w.world.SetContactListener(newContactDetector(w))
	w.gameOver = false
	w.leg1GroundContact = false
	w.leg2GroundContact = false

	t := w.Task.(walkerTask)
	t.reset()
	start := t.Start()
	err := validateStart(start, w.xBounds, w.yBounds)
	if err != nil {
		panic(fmt.Sprintf("reset: %v", err))
	}
	initialX := start.AtVec(0)
	initialY := start.AtVec(1)

	W := ViewportW / Scale

	// Terrain: flat ground with walls at both ends of the viewport
	groundDef := box2d.NewB2BodyDef()
	groundDef.Type = 0 // Static body
	w.ground = w.world.CreateBody(groundDef)

	edges := [][2]box2d.B2Vec2{
		{box2d.MakeB2Vec2(0.0, TerrainHeight),
			box2d.MakeB2Vec2(W, TerrainHeight)},
		{box2d.MakeB2Vec2(0.0, TerrainHeight),
			box2d.MakeB2Vec2(0.0, ViewportH/Scale)},
		{box2d.MakeB2Vec2(W, TerrainHeight),
			box2d.MakeB2Vec2(W, ViewportH/Scale)},
	}
	for _, edge := range edges {
		groundShape := box2d.NewB2EdgeShape()
		groundShape.Set(edge[0], edge[1])

		groundFix := box2d.MakeB2FixtureDef()
		groundFix.Shape = groundShape
		groundFix.Density = 0.0
		groundFix.Friction = GroundFriction
		w.ground.CreateFixtureFromDef(&groundFix)
	}

	// Hull body def
	hullDef := box2d.MakeB2BodyDef()
	hullDef.Type = 2 // Dynamic body
	hullDef.Position = box2d.MakeB2Vec2(initialX, initialY)
	hullDef.Angle = 0.0

	// Create hull body
	hullBody := w.world.CreateBody(&hullDef)
	w.hull = hullBody

	// Hull shape
	hullShape := box2d.NewB2PolygonShape()
	vertices := make([]box2d.B2Vec2, len(HullPoly))
	for i := 0; i < len(HullPoly); i++ {
		vertices[i] = box2d.MakeB2Vec2(
			HullPoly[i][0]/Scale,
			HullPoly[i][1]/Scale,
		)
	}
	hullShape.Set(vertices, len(vertices))

	// Hull fixture
	hullFix := box2d.MakeB2FixtureDef()
	hullFix.Shape = hullShape
	hullFix.Density = 5.0
	hullFix.Friction = 0.1
	hullFix.Restitution = 0.0
	filter := box2d.MakeB2Filter()
	filter.CategoryBits = 0x0020
	filter.MaskBits = 0x001
	hullFix.Filter = filter

	// Attach shape to body
	hullBody.CreateFixtureFromDef(&hullFix)

	// Apply a random horizontal force to the hull so that the agent
	// must learn a policy robust to its starting momentum
	initialRandom := start.AtVec(2)
	initialForceX := (w.rng.Rand() * 2 * initialRandom) - initialRandom
	w.hull.ApplyForceToCenter(box2d.MakeB2Vec2(initialForceX, 0.0), true)

	// Legs: for each side, an upper and a lower segment with
	// motorized revolute joints at the hip and knee
	w.legs = make([]*box2d.B2Body, 0, 4)
	w.joints = make([]*box2d.B2RevoluteJoint, 0, 4)
	for _, i := range []float64{-1.0, 1.0} {
		// Upper leg body
		upperDef := box2d.NewB2BodyDef()
		upperDef.Type = 2 // Dynamic body
		upperDef.Position = box2d.MakeB2Vec2(initialX,
			initialY-(LegDown+LegH/2)/Scale)
		upperDef.Angle = i * 0.05
		upper := w.world.CreateBody(upperDef)
		w.legs = append(w.legs, upper)

		upperShape := box2d.NewB2PolygonShape()
		upperShape.SetAsBox(LegW/2/Scale, LegH/2/Scale)

		upperFix := box2d.MakeB2FixtureDef()
		upperFix.Shape = upperShape
		upperFix.Density = 1.0
		upperFix.Restitution = 0.0
		legFilter := box2d.MakeB2Filter()
		legFilter.CategoryBits = 0x0020
		legFilter.MaskBits = 0x001
		upperFix.Filter = legFilter
		upper.CreateFixtureFromDef(&upperFix)

		// Hip joint
		hip := box2d.MakeB2RevoluteJointDef()
		hip.BodyA = w.hull
		hip.BodyB = upper
		hip.LocalAnchorA = box2d.MakeB2Vec2(0.0, -LegDown/Scale)
		hip.LocalAnchorB = box2d.MakeB2Vec2(0.0, LegH/2/Scale)
		hip.EnableMotor = true
		hip.EnableLimit = true
		hip.MaxMotorTorque = MotorsTorque
		hip.MotorSpeed = i
		hip.LowerAngle = MinHipAngle
		hip.UpperAngle = MaxHipAngle
		w.joints = append(w.joints,
			w.world.CreateJoint(&hip).(*box2d.B2RevoluteJoint))

		// Lower leg body
		lowerDef := box2d.NewB2BodyDef()
		lowerDef.Type = 2 // Dynamic body
		lowerDef.Position = box2d.MakeB2Vec2(initialX,
			initialY-(LegDown+3*LegH/2)/Scale)
		lowerDef.Angle = i * 0.05
		lower := w.world.CreateBody(lowerDef)
		w.legs = append(w.legs, lower)

		lowerShape := box2d.NewB2PolygonShape()
		lowerShape.SetAsBox(0.8*LegW/2/Scale, LegH/2/Scale)

		lowerFix := box2d.MakeB2FixtureDef()
		lowerFix.Shape = lowerShape
		lowerFix.Density = 1.0
		lowerFix.Restitution = 0.0
		lowerFix.Filter = legFilter
		lower.CreateFixtureFromDef(&lowerFix)

		// Knee joint
		knee := box2d.MakeB2RevoluteJointDef()
		knee.BodyA = upper
		knee.BodyB = lower
		knee.LocalAnchorA = box2d.MakeB2Vec2(0.0, -LegH/2/Scale)
		knee.LocalAnchorB = box2d.MakeB2Vec2(0.0, LegH/2/Scale)
		knee.EnableMotor = true
		knee.EnableLimit = true
		knee.MaxMotorTorque = MotorsTorque
		knee.MotorSpeed = 1.0
		knee.LowerAngle = MinKneeAngle
		knee.UpperAngle = MaxKneeAngle
		w.joints = append(w.joints,
			w.world.CreateJoint(&knee).(*box2d.B2RevoluteJoint))
	}

	step := timestep.New(timestep.First, 0.0, w.discount,
		w.stateObservation(), 0)
	w.prevStep = step
	return step
}

// stateObservation constructs the state observation vector from the
// physics state of the walker
func (w *walker) stateObservation() *mat.VecDense {
	vel := w.hull.GetLinearVelocity()

	var leg1GroundContact, leg2GroundContact float64
	if w.leg1GroundContact {
		leg1GroundContact = 1.0
	}
	if w.leg2GroundContact {
		leg2GroundContact = 1.0
	}

	state := []float64{
		floatutils.Wrap(w.hull.GetAngle(), w.angleBounds.Min,
			w.angleBounds.Max),
		2.0 * w.hull.GetAngularVelocity() / FPS,
		vel.X * (ViewportW / Scale / 2.0) / FPS,
		vel.Y * (ViewportH / Scale / 2.0) / FPS,
		w.joints[0].GetJointAngle(),
		w.joints[0].GetJointSpeed() / SpeedHip,
		w.joints[1].GetJointAngle(),
		w.joints[1].GetJointSpeed() / SpeedKnee,
		leg1GroundContact,
		w.joints[2].GetJointAngle(),
		w.joints[2].GetJointSpeed() / SpeedHip,
		w.joints[3].GetJointAngle(),
		w.joints[3].GetJointSpeed() / SpeedKnee,
		leg2GroundContact,
	}

	if len(state) != StateObservations {
		panic(fmt.Sprintf("stateObservation: illegal number of state "+
			"observations \n\twant(%v) \n\thave(%v)", StateObservations,
			len(state)))
	}
	return mat.NewVecDense(StateObservations, state)
}

// Step drives the four joint motors with the argument action and
// advances the physics world by one timestep
func (w *walker) Step(a *mat.VecDense) (timestep.TimeStep, bool) {
	// Clip into a copy so that the caller's action is left untouched
	action := mat.NewVecDense(a.Len(), nil)
	for i := 0; i < a.Len(); i++ {
		action.SetVec(i, floatutils.ClipInterval(a.AtVec(i),
			w.actionBounds))
	}

	for i, joint := range w.joints {
		speed := SpeedHip
		if i%2 == 1 {
			speed = SpeedKnee
		}
		joint.SetMotorSpeed(speed * floatutils.Sign(action.AtVec(i)))
		joint.SetMaxMotorTorque(MotorsTorque *
			floatutils.Clip(math.Abs(action.AtVec(i)), 0.0, 1.0))
	}

	w.world.Step(1.0/FPS, 6*int(Scale), 2*int(Scale))

	stateVec := w.stateObservation()

	reward := w.GetReward(w.prevStep.Observation, action, stateVec)
	t := timestep.New(timestep.Mid, reward, w.discount, stateVec,
		w.prevStep.Number+1)
	w.ender.End(&t)

	w.prevStep = t

	return t, t.Last()
}

func (w *walker) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{
		MinContinuousAction, MinContinuousAction, MinContinuousAction,
		MinContinuousAction,
	})
	upperBound := mat.NewVecDense(ActionDims, []float64{
		MaxContinuousAction, MaxContinuousAction, MaxContinuousAction,
		MaxContinuousAction,
	})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

func (w *walker) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(StateObservations, nil)

	lowerBound := mat.NewVecDense(StateObservations, []float64{
		MinAngle,
		MinVelocity,
		MinVelocity,
		MinVelocity,
		MinHipAngle,
		MinVelocity,
		MinKneeAngle,
		MinVelocity,
		0.,
		MinHipAngle,
		MinVelocity,
		MinKneeAngle,
		MinVelocity,
		0.,
	})

	upperBound := mat.NewVecDense(StateObservations, []float64{
		MaxAngle,
		MaxVelocity,
		MaxVelocity,
		MaxVelocity,
		MaxHipAngle,
		MaxVelocity,
		MaxKneeAngle,
		MaxVelocity,
		1.,
		MaxHipAngle,
		MaxVelocity,
		MaxKneeAngle,
		MaxVelocity,
		1.,
	})

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

func (w *walker) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{w.discount})

	return environment.NewSpec(shape, environment.Discount, lowerBound,
		lowerBound, environment.Continuous)
}

func (w *walker) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{-100.0})
	upperBound := mat.NewVecDense(1, []float64{math.Inf(1)})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}

// CurrentTimeStep returns the timestep of the last environmental step
func (w *walker) CurrentTimeStep() timestep.TimeStep {
	return w.prevStep
}

// Render draws the current state of the walker to a PNG file
func (w *walker) Render(j int) {
	dc := gg.NewContext(int(ViewportW), int(ViewportH))
	dc.SetColor(w.skyShade)
	dc.Clear()

	// Ground
	dc.ClearPath()
	dc.SetColor(w.groundColour)
	dc.SetLineWidth(5.0)
	for fix := w.ground.GetFixtureList(); fix != nil; fix = fix.M_next {
		sh := fix.M_shape.(*box2d.B2EdgeShape)

		pixelCoords1 := WorldToPixelCoord([2]float64{sh.M_vertex1.X,
			sh.M_vertex1.Y})
		pixelCoords2 := WorldToPixelCoord([2]float64{sh.M_vertex2.X,
			sh.M_vertex2.Y})

		dc.DrawLine(pixelCoords1[0], pixelCoords1[1], pixelCoords2[0],
			pixelCoords2[1])
	}
	dc.Stroke()

	// Hull
	w.renderBody(dc, w.hull, w.hullColour)

	// Legs
	for _, leg := range w.legs {
		w.renderBody(dc, leg, w.legColour)
	}

	dc.SavePNG(fmt.Sprintf("./Walker%v.png", j))
}

func (w *walker) renderBody(dc *gg.Context, body *box2d.B2Body,
	colour color.Color) {
	for fix := body.GetFixtureList(); fix != nil; fix = fix.M_next {
		shape := fix.M_shape.(*box2d.B2PolygonShape)
		path := make([][2]float64, 0, shape.M_count)
		for i, vertex := range shape.M_vertices {
			if i >= shape.M_count {
				break
			}
			trans := fix.M_body.M_xf
			vertex = box2d.B2TransformVec2Mul(trans, vertex)

			pixelCoords := WorldToPixelCoord([2]float64{vertex.X, vertex.Y})
			path = append(path, pixelCoords)
		}

		dc.ClearPath()
		for _, point := range path {
			dc.LineTo(point[0], point[1])
		}
		dc.LineTo(path[0][0], path[0][1])

		dc.SetColor(colour)
		dc.Fill()
	}
}

func validateStart(state mat.Vector, xBounds, yBounds r1.Interval) error {
	if state.Len() != 3 {
		return fmt.Errorf("starting values should be 3-dimensional")
	}

	if state.AtVec(0) > xBounds.Max || state.AtVec(0) < xBounds.Min {
		return fmt.Errorf("x position out of bounds, expected x ϵ (%v, %v) "+
			"but got x = %v", xBounds.Min, xBounds.Max, state.AtVec(0))
	}

	if state.AtVec(1) > yBounds.Max || state.AtVec(1) < yBounds.Min {
		return fmt.Errorf("y position out of bounds, expected y ϵ (%v, %v) "+
			"but got y = %v", yBounds.Min, yBounds.Max, state.AtVec(1))
	}

	return nil
}
