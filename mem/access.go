package mem

import (
	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/log"
)

// maxMappingDepth bounds the chain of mapped blocks followed to resolve a
// single byte, which also breaks mapping cycles.
const maxMappingDepth = 16

// Read8 returns the byte at a.
func (m *Map) Read8(a addr.Address) (uint8, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read8(a, 0)
}

// ReadBytes reads n bytes starting at a. On error, the bytes read so far
// are returned along with the error.
func (m *Map) ReadBytes(a addr.Address, n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidCount, "%d bytes", n)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		cur, err := a.Add(uint64(i))
		if err != nil {
			return buf, err
		}
		v, err := m.read8(cur, 0)
		if err != nil {
			return buf, err
		}
		buf = append(buf, v)
	}
	return buf, nil
}

// Write8 writes val at a.
func (m *Map) Write8(a addr.Address, val uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write8(a, val, 0)
}

func (m *Map) read8(a addr.Address, depth int) (uint8, error) {
	if !a.IsValid() {
		return 0, errors.Wrap(ErrNoBlock, "invalid address")
	}
	b := m.findBlock(a)
	if b == nil {
		return 0, errors.Wrapf(ErrNoBlock, "read at %s", a)
	}
	return m.read(b, a.Offset()-b.start.Offset(), depth)
}

func (m *Map) write8(a addr.Address, val uint8, depth int) error {
	if !a.IsValid() {
		return errors.Wrap(ErrNoBlock, "invalid address")
	}
	b := m.findBlock(a)
	if b == nil {
		return errors.Wrapf(ErrNoBlock, "write at %s", a)
	}
	return m.write(b, a.Offset()-b.start.Offset(), val, depth)
}

// sourceOf translates off, an offset in the mapped block b, into the source
// address and, for bit-mapped blocks, the bit number.
func sourceOf(b *Block, off uint64, depth int) (addr.Address, uint, error) {
	if depth >= maxMappingDepth {
		return addr.Address{}, 0, errors.Wrapf(ErrInvalidMapping, "%s: mapping chain deeper than %d", b.name, maxMappingDepth)
	}

	var (
		src addr.Address
		bit uint
		err error
	)
	switch b.typ {
	case ByteMapped:
		src, err = b.source.Add(off)
	case BitMapped:
		src, err = b.source.Add(off / 8)
		bit = uint(off % 8)
	}
	if err != nil {
		return addr.Address{}, 0, errors.Wrapf(ErrInvalidMapping, "%s: %v", b.name, err)
	}
	return src, bit, nil
}

// read returns the byte at offset off of b. Caller must hold m.mu.
func (m *Map) read(b *Block, off uint64, depth int) (uint8, error) {
	switch b.typ {
	case Default, Overlay:
		if b.data == nil {
			return 0, errors.Wrapf(ErrUninitialized, "read in %s", b)
		}
		return b.data[off], nil

	case ByteMapped:
		src, _, err := sourceOf(b, off, depth)
		if err != nil {
			return 0, err
		}
		return m.read8(src, depth+1)

	case BitMapped:
		src, bit, err := sourceOf(b, off, depth)
		if err != nil {
			return 0, err
		}
		v, err := m.read8(src, depth+1)
		if err != nil {
			return 0, err
		}
		return getBiti8(v, bit), nil
	}
	return 0, errors.Wrapf(ErrInvalidBlock, "%s: unknown block type %s", b.name, b.typ)
}

// write writes val at offset off of b. Caller must hold m.mu for writing.
func (m *Map) write(b *Block, off uint64, val uint8, depth int) error {
	if !b.perms.Has(Write) {
		log.ModMem.DebugZ("write to read-only block").
			String("name", b.name).
			Hex64("off", off).
			Hex8("val", val).
			End()
		return errors.Wrapf(ErrAccessDenied, "%s is not writable", b.name)
	}

	switch b.typ {
	case Default, Overlay:
		if b.data == nil {
			return errors.Wrapf(ErrUninitialized, "write in %s", b)
		}
		m.journal(b, off)
		b.data[off] = val
		return nil

	case ByteMapped:
		src, _, err := sourceOf(b, off, depth)
		if err != nil {
			return err
		}
		return m.write8(src, val, depth+1)

	case BitMapped:
		src, bit, err := sourceOf(b, off, depth)
		if err != nil {
			return err
		}
		v, err := m.read8(src, depth+1)
		if err != nil {
			return err
		}
		if val != 0 {
			setBit8(&v, bit)
		} else {
			clearBit8(&v, bit)
		}
		return m.write8(src, v, depth+1)
	}
	return errors.Wrapf(ErrInvalidBlock, "%s: unknown block type %s", b.name, b.typ)
}
