package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmptyBuffer     = errors.New("no transitions in buffer")
	errInvalidFeatures = errors.New("invalid feature size")
	errInvalidActions  = errors.New("invalid action size")
)

// errInvalidCapacity describes an illegal maximum buffer capacity
func errInvalidCapacity(capacity int) error {
	return fmt.Errorf("maximum capacity must be >= 1 \n\thave(%v)", capacity)
}

// ExpReplayError describes an error that occurred during some operation
// on an experience replay buffer
type ExpReplayError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *ExpReplayError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// IsEmptyBuffer returns whether err indicates sampling from a buffer
// that holds no transitions
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyBuffer)
}
