package errors

import "errors"

var (
	ErrNotFound            = errors.New("allocation not found in tree")
	ErrEmptyAllocations    = errors.New("allocation list is empty")
	ErrInvalidAllocation   = errors.New("invalid allocation")
	ErrUnsupportedFormat   = errors.New("unsupported allocation format")
	ErrInvalidDistribution = errors.New("invalid distribution artifact")
)
