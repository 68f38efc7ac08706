package domain

import (
	"errors"
	"fmt"
)

var ErrDuplicateRequest = errors.New("request already processed")

// InfrastructureError marks a failure of the store or transport, as opposed to a business rejection.
// The operation that returned it has been rolled back.
type InfrastructureError struct {
	Op  string
	Err error
}

func NewInfrastructureError(op string, err error) error {
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func IsInfrastructure(err error) bool {
	var infraErr *InfrastructureError
	return errors.As(err, &infraErr)
}
