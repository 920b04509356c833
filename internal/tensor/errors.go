package tensor

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports incompatible input, weight or gradient dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrStatePrecedence reports a Backward call that has no matching
	// training-mode Forward on the same layer.
	ErrStatePrecedence = errors.New("backward without a preceding training-mode forward")

	// ErrOptimizerShapeMismatch reports a gradient whose shape differs from the
	// shape an optimizer's state was bound to on its first call.
	ErrOptimizerShapeMismatch = errors.New("optimizer state bound to another shape")

	// ErrInvalidConfiguration reports unusable training parameters or data.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// NumericDomainWarning is raised when a loss clips probabilities to keep
// log and division finite. It is delivered to observers and never returned
// as an error.
type NumericDomainWarning struct {
	Loss    string // loss name, e.g. "CrossEntropy"
	Clipped int    // number of clipped elements in the batch
	Total   int    // number of elements in the batch
}

func (w NumericDomainWarning) String() string {
	return fmt.Sprintf("%s: clipped %d/%d probabilities to avoid log(0)", w.Loss, w.Clipped, w.Total)
}
