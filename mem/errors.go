package mem

import (
	"github.com/pkg/errors"

	"memmap/addr"
)

var (
	ErrOverlap        = errors.New("memory conflict")
	ErrDuplicateName  = errors.New("duplicate block name")
	ErrNoBlock        = errors.New("no memory block")
	ErrAccessDenied   = errors.New("access denied")
	ErrInvalidMapping = errors.New("invalid mapping")
	ErrUninitialized  = errors.New("uninitialized memory")
	ErrInvalidBlock   = errors.New("invalid block")
	ErrInvalidCount   = errors.New("invalid byte count")

	// ErrAddressOutOfBounds is re-exported so that callers of this package
	// need not import addr to check bounds failures.
	ErrAddressOutOfBounds = addr.ErrAddressOutOfBounds
)
