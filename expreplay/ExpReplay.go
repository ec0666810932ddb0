// Package expreplay implements experience replay for off-policy agents
package expreplay

import (
	"golang.org/x/exp/rand"

	"sfneuman.com/gosac/timestep"
)

// ExperienceReplayer implements a fixed-capacity experience replay
// buffer of environmental transitions
type ExperienceReplayer interface {
	// Add adds a transition to the buffer, overwriting the oldest
	// transition once the buffer is full
	Add(t timestep.Transition) error

	// Sample samples a batch of transitions from the buffer uniformly
	// at random with replacement, returning parallel slices of states,
	// actions, rewards, terminal flags, and next states
	Sample(batchSize int) ([]float64, []float64, []float64, []float64,
		[]float64, error)

	// Capacity returns the current number of transitions in the buffer
	Capacity() int

	// MaxCapacity returns the maximum number of transitions the buffer
	// can hold
	MaxCapacity() int
}

// cache implements a concrete ExperienceReplayer as a ring over
// parallel flat slices. A write cursor advances modulo the maximum
// capacity on every insertion, silently overwriting the oldest
// transition once the buffer has filled. The logical size only grows,
// saturating at the maximum capacity.
type cache struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	terminalCache  []float64
	nextStateCache []float64

	ptr  int
	size int

	maxCapacity int
	featureSize int
	actionSize  int

	rng *rand.Rand
}

// New creates and returns a new ExperienceReplayer with storage for
// maxCapacity transitions. The featureSize and actionSize parameters
// define the lengths of the state and action vectors. The seed
// parameter seeds the buffer's sampler.
//
// Pixel observations should be flattened before adding to the buffer.
func New(maxCapacity, featureSize, actionSize int,
	seed uint64) (ExperienceReplayer, error) {
	if maxCapacity < 1 {
		return nil, &ExpReplayError{
			Op:  "new",
			Err: errInvalidCapacity(maxCapacity),
		}
	}

	return &cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]float64, maxCapacity*actionSize),
		rewardCache:    make([]float64, maxCapacity),
		terminalCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,

		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Add adds a transition to the cache, overwriting the transition under
// the write cursor. Overwrite is intentional, not an error: once the
// cache is full the oldest transition is always the one replaced.
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return &ExpReplayError{Op: "add", Err: errInvalidFeatures}
	}
	if t.Action.Len() != c.actionSize {
		return &ExpReplayError{Op: "add", Err: errInvalidActions}
	}

	stateInd := c.ptr * c.featureSize
	for i := 0; i < c.featureSize; i++ {
		c.stateCache[stateInd+i] = t.State.AtVec(i)
		c.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}

	actionInd := c.ptr * c.actionSize
	for i := 0; i < c.actionSize; i++ {
		c.actionCache[actionInd+i] = t.Action.AtVec(i)
	}

	c.rewardCache[c.ptr] = t.Reward
	if t.Terminal {
		c.terminalCache[c.ptr] = 1.0
	} else {
		c.terminalCache[c.ptr] = 0.0
	}

	c.ptr = (c.ptr + 1) % c.maxCapacity
	if c.size < c.maxCapacity {
		c.size++
	}
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer. Indices are drawn independently and uniformly with
// replacement, so a single batch may contain duplicate transitions.
func (c *cache) Sample(batchSize int) ([]float64, []float64, []float64,
	[]float64, []float64, error) {
	if c.size == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyBuffer,
		}
		return nil, nil, nil, nil, nil, err
	}

	indices := make([]int, batchSize)
	for i := range indices {
		indices[i] = c.rng.Intn(c.size)
	}

	stateBatch := make([]float64, batchSize*c.featureSize)
	nextStateBatch := make([]float64, batchSize*c.featureSize)
	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize],
		)
		copy(nextStateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize],
		)
	}

	actionBatch := make([]float64, batchSize*c.actionSize)
	for i, index := range indices {
		batchStartInd := i * c.actionSize
		expStartInd := index * c.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+c.actionSize],
			c.actionCache[expStartInd:expStartInd+c.actionSize],
		)
	}

	rewardBatch := make([]float64, batchSize)
	terminalBatch := make([]float64, batchSize)
	for i, index := range indices {
		rewardBatch[i] = c.rewardCache[index]
		terminalBatch[i] = c.terminalCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, terminalBatch,
		nextStateBatch, nil
}

// Capacity returns the current number of transitions in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	return c.size
}

// MaxCapacity returns the maximum number of transitions that are
// allowed in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}
