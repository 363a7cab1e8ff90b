package addr

import "github.com/pkg/errors"

var (
	ErrAddressOutOfBounds = errors.New("address out of bounds")
	ErrDuplicateSpace     = errors.New("duplicate address space")
	ErrUnknownSpace       = errors.New("unknown address space")
	ErrInvalidSpace       = errors.New("invalid address space")
	ErrSyntax             = errors.New("invalid address syntax")
)
