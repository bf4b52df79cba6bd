package hmc

import "errors"

var (
	// ErrDimension reports inconsistent vector or matrix dimensions.
	ErrDimension = errors.New("dimension mismatch")

	// ErrNotSPD reports a matrix that is not symmetric positive definite.
	ErrNotSPD = errors.New("matrix is not positive definite")
)
