package addr

import (
	"cmp"
	"fmt"

	"github.com/pkg/errors"
)

// Address is an offset in a Space. The zero value is not a valid address.
type Address struct {
	space  *Space
	offset uint64
}

func (a Address) Space() *Space   { return a.space }
func (a Address) Offset() uint64  { return a.offset }
func (a Address) IsValid() bool   { return a.space != nil }
func (a Address) IsOverlay() bool { return a.space != nil && a.space.IsOverlay() }

// Add returns a+delta. It fails if the result falls outside the space.
func (a Address) Add(delta uint64) (Address, error) {
	if a.space == nil {
		return Address{}, errors.Wrap(ErrInvalidSpace, "address has no space")
	}
	if delta > a.space.max-a.offset {
		return Address{}, errors.Wrapf(ErrAddressOutOfBounds, "%s + 0x%x", a, delta)
	}
	return Address{space: a.space, offset: a.offset + delta}, nil
}

// Sub returns a-delta. It fails if the result falls outside the space.
func (a Address) Sub(delta uint64) (Address, error) {
	if a.space == nil {
		return Address{}, errors.Wrap(ErrInvalidSpace, "address has no space")
	}
	if delta > a.offset-a.space.min {
		return Address{}, errors.Wrapf(ErrAddressOutOfBounds, "%s - 0x%x", a, delta)
	}
	return Address{space: a.space, offset: a.offset - delta}, nil
}

func (a Address) mustMatch(b Address) {
	if !a.space.Equal(b.space) {
		panic(fmt.Sprintf("addr: comparing addresses of different spaces: %s and %s", a, b))
	}
}

// Compare returns -1, 0 or +1 depending on whether a is before, equal to,
// or after b. It panics if a and b are not in the same space.
func (a Address) Compare(b Address) int {
	a.mustMatch(b)
	return cmp.Compare(a.offset, b.offset)
}

// Less is Compare(b) < 0.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// Distance returns the number of addresses from b to a (a-b). It panics if
// a and b are not in the same space or a is before b.
func (a Address) Distance(b Address) uint64 {
	a.mustMatch(b)
	if a.offset < b.offset {
		panic(fmt.Sprintf("addr: negative distance from %s to %s", b, a))
	}
	return a.offset - b.offset
}

// Equal reports whether a and b are the same address. Unlike Compare, it
// accepts addresses of different spaces.
func (a Address) Equal(b Address) bool {
	return a.offset == b.offset && a.space.Equal(b.space)
}

// String formats the address as space:offset, the offset being zero-padded
// to the space byte width.
func (a Address) String() string {
	if a.space == nil {
		return "<invalid>"
	}
	return fmt.Sprintf("%s:%0*x", a.space.name, a.space.byteWidth*2, a.offset)
}
