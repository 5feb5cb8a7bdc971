// Package deepcopy hands out independent copies of cached or shared values so
// callers can mutate what they receive.
package deepcopy

import (
	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"
)

// Copy returns a deep copy of *src. A nil src yields (nil, nil).
func Copy[T any](src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}

	var dst T
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, errors.Wrapf(err, "failed to deep copy type %T", src)
	}
	return &dst, nil
}

// Slice returns a deep copy of src. A nil src yields a nil slice.
func Slice[T any](src []T) ([]T, error) {
	if src == nil {
		return nil, nil
	}

	dst := make([]T, 0, len(src))
	if err := deepcopy.Copy(&dst, src); err != nil {
		return nil, errors.Wrapf(err, "failed to deep copy %T", src)
	}
	return dst, nil
}
