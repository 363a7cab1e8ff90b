// Package addr implements address spaces and the addresses living in them.
//
// A Space is a bounded coordinate system of a given byte width. An Address
// is a (space, offset) pair; two addresses can only be compared or
// subtracted when they share the same space.
package addr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Space is a named, bounded coordinate system. A Space never changes once
// created.
type Space struct {
	name      string
	id        int
	byteWidth int
	min, max  uint64

	// overlayed space, nil for physical spaces.
	base *Space
}

func checkByteWidth(w int) error {
	switch w {
	case 1, 2, 4, 8:
		return nil
	}
	return errors.Wrapf(ErrInvalidSpace, "unsupported byte width %d", w)
}

// widthMax returns the highest offset representable with w bytes.
func widthMax(w int) uint64 {
	return math.MaxUint64 >> (64 - 8*uint(w))
}

// NewSpace creates a space covering every offset representable with
// byteWidth bytes.
func NewSpace(name string, id, byteWidth int) (*Space, error) {
	if err := checkByteWidth(byteWidth); err != nil {
		return nil, err
	}
	return NewSpaceRange(name, id, byteWidth, 0, widthMax(byteWidth))
}

// NewSpaceRange creates a space restricted to [min, max].
func NewSpaceRange(name string, id, byteWidth int, min, max uint64) (*Space, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidSpace, "empty name")
	}
	if err := checkByteWidth(byteWidth); err != nil {
		return nil, err
	}
	if min > max {
		return nil, errors.Wrapf(ErrInvalidSpace, "%s: min offset 0x%x > max offset 0x%x", name, min, max)
	}
	if max > widthMax(byteWidth) {
		return nil, errors.Wrapf(ErrInvalidSpace, "%s: max offset 0x%x does not fit in %d bytes", name, max, byteWidth)
	}
	return &Space{
		name:      name,
		id:        id,
		byteWidth: byteWidth,
		min:       min,
		max:       max,
	}, nil
}

func (s *Space) Name() string   { return s.name }
func (s *Space) ID() int        { return s.id }
func (s *Space) ByteWidth() int { return s.byteWidth }
func (s *Space) Min() uint64    { return s.min }
func (s *Space) Max() uint64    { return s.max }

// IsOverlay reports whether s is an overlay of another space.
func (s *Space) IsOverlay() bool { return s.base != nil }

// Overlayed returns the space s overlays, or nil.
func (s *Space) Overlayed() *Space { return s.base }

// Contains reports whether off is a valid offset in s.
func (s *Space) Contains(off uint64) bool {
	return off >= s.min && off <= s.max
}

// Equal reports whether s and o designate the same space.
func (s *Space) Equal(o *Space) bool {
	if s == o {
		return true
	}
	return s != nil && o != nil && s.id == o.id && s.name == o.name
}

// Address returns the address at offset off in s.
func (s *Space) Address(off uint64) (Address, error) {
	if !s.Contains(off) {
		return Address{}, errors.Wrapf(ErrAddressOutOfBounds, "offset 0x%x not in %s", off, s)
	}
	return Address{space: s, offset: off}, nil
}

// MustAddress is like Address but panics if off is out of bounds.
func (s *Space) MustAddress(off uint64) Address {
	a, err := s.Address(off)
	if err != nil {
		panic(err)
	}
	return a
}

func (s *Space) MinAddress() Address { return Address{space: s, offset: s.min} }
func (s *Space) MaxAddress() Address { return Address{space: s, offset: s.max} }

// ParseAddress parses an hexadecimal offset, with or without 0x prefix, into
// an address of s.
func (s *Space) ParseAddress(str string) (Address, error) {
	off, err := parseOffset(str)
	if err != nil {
		return Address{}, err
	}
	return s.Address(off)
}

func parseOffset(str string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if digits == "" {
		return 0, errors.Wrapf(ErrSyntax, "%q", str)
	}
	off, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "%q", str)
	}
	return off, nil
}

func (s *Space) String() string {
	if s == nil {
		return "<nil space>"
	}
	return fmt.Sprintf("%s[0x%x-0x%x]", s.name, s.min, s.max)
}
