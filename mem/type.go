package mem

import (
	"strings"

	"github.com/pkg/errors"
)

//go:generate go tool stringer -type=Type

// Type is the kind of a memory block, it determines where the bytes of the
// block come from.
type Type int

const (
	Default    Type = iota // bytes are stored in the block
	BitMapped              // each byte is one bit of another range
	ByteMapped             // bytes are those of another range
	Overlay                // stored bytes, in a dedicated overlay space
)

// IsMapped reports whether blocks of type t take their bytes from another
// address range.
func (t Type) IsMapped() bool {
	return t == BitMapped || t == ByteMapped
}

// ParseType parses a block type, as written in program descriptions.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "_", "-")) {
	case "", "default":
		return Default, nil
	case "bit-mapped", "bitmapped":
		return BitMapped, nil
	case "byte-mapped", "bytemapped":
		return ByteMapped, nil
	case "overlay":
		return Overlay, nil
	}
	return 0, errors.Wrapf(ErrInvalidBlock, "unknown block type %q", s)
}

// SourceLength returns the number of source bytes a mapped block of the
// given type and size spans.
func SourceLength(t Type, size uint64) uint64 {
	switch t {
	case BitMapped:
		return size/8 + min(size%8, 1)
	case ByteMapped:
		return size
	}
	return 0
}
