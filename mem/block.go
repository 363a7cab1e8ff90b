package mem

import (
	"fmt"

	"github.com/pkg/errors"

	"memmap/addr"
)

// MaxBlockSize is the largest block that can have its bytes stored in
// memory.
const MaxBlockSize = 1 << 30

// Block is a named, contiguous range of addresses [Start, End] in a single
// space. Every block type shares this structure, Type tells how its bytes
// are obtained.
//
// A Block is built with one of the New*Block functions, configured with the
// setters, then inserted in a Map. It should not be modified after that.
type Block struct {
	name    string
	comment string
	srcName string

	typ         Type
	start, end  addr.Address
	size        uint64
	perms       Perm
	volatile    bool
	initialized bool

	data   []byte       // stored bytes (Default and Overlay), nil if uninitialized
	source addr.Address // overlay source, zero for Default blocks

	m *Map // owning map, set on insertion
}

func newBlock(typ Type, name string, start addr.Address, size uint64) (*Block, error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidBlock, "empty block name")
	}
	if size == 0 {
		return nil, errors.Wrapf(ErrInvalidBlock, "%s: length must be positive", name)
	}
	if !start.IsValid() {
		return nil, errors.Wrapf(ErrInvalidBlock, "%s: invalid start address", name)
	}
	end, err := start.Add(size - 1)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: block end", name)
	}
	return &Block{
		name:  name,
		typ:   typ,
		start: start,
		end:   end,
		size:  size,
		perms: Read,
	}, nil
}

func (b *Block) allocate(fill byte) error {
	if b.size > MaxBlockSize {
		return errors.Wrapf(ErrInvalidBlock, "%s: size 0x%x exceeds maximum of 0x%x", b.name, b.size, MaxBlockSize)
	}
	b.data = make([]byte, b.size)
	if fill != 0 {
		for i := range b.data {
			b.data[i] = fill
		}
	}
	b.initialized = true
	return nil
}

// NewInitializedBlock creates a Default block whose bytes are all set to
// fill.
func NewInitializedBlock(name string, start addr.Address, size uint64, fill byte) (*Block, error) {
	b, err := newBlock(Default, name, start, size)
	if err != nil {
		return nil, err
	}
	if err := b.allocate(fill); err != nil {
		return nil, err
	}
	return b, nil
}

// NewUninitializedBlock creates a Default block with no bytes: reading or
// writing them fails with ErrUninitialized.
func NewUninitializedBlock(name string, start addr.Address, size uint64) (*Block, error) {
	return newBlock(Default, name, start, size)
}

func newMappedBlock(typ Type, name string, start addr.Address, size uint64, source addr.Address) (*Block, error) {
	if !source.IsValid() {
		return nil, errors.Wrapf(ErrInvalidMapping, "%s: %s block requires a source address", name, typ)
	}
	b, err := newBlock(typ, name, start, size)
	if err != nil {
		return nil, err
	}
	if _, err := source.Add(SourceLength(typ, size) - 1); err != nil {
		return nil, errors.Wrapf(err, "%s: mapped source range", name)
	}
	b.source = source
	return b, nil
}

// NewBitMappedBlock creates a block whose byte i is bit i%8 of the byte at
// source+i/8.
func NewBitMappedBlock(name string, start addr.Address, size uint64, source addr.Address) (*Block, error) {
	return newMappedBlock(BitMapped, name, start, size, source)
}

// NewByteMappedBlock creates a block whose byte i is the byte at source+i.
func NewByteMappedBlock(name string, start addr.Address, size uint64, source addr.Address) (*Block, error) {
	return newMappedBlock(ByteMapped, name, start, size, source)
}

// NewOverlayBlock creates a block in an overlay space. start must belong to
// that overlay space. The block overlays the range starting at the same
// offset in the overlayed space, which is reported as its source.
func NewOverlayBlock(name string, start addr.Address, size uint64, fill byte, initialized bool) (*Block, error) {
	if !start.IsOverlay() {
		return nil, errors.Wrapf(ErrInvalidMapping, "%s: %s is not in an overlay space", name, start)
	}
	b, err := newBlock(Overlay, name, start, size)
	if err != nil {
		return nil, err
	}
	b.source, err = start.Space().Overlayed().Address(start.Offset())
	if err != nil {
		return nil, errors.Wrapf(err, "%s: overlayed address", name)
	}
	if initialized {
		if err := b.allocate(fill); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Block) SetComment(comment string) { b.comment = comment }
func (b *Block) SetSourceName(src string)  { b.srcName = src }
func (b *Block) SetPermissions(p Perm)     { b.perms = p }
func (b *Block) SetVolatile(volatile bool) { b.volatile = volatile }
func (b *Block) Name() string              { return b.name }
func (b *Block) Comment() string           { return b.comment }
func (b *Block) SourceName() string        { return b.srcName }
func (b *Block) Type() Type                { return b.typ }
func (b *Block) Start() addr.Address       { return b.start }
func (b *Block) End() addr.Address         { return b.end }
func (b *Block) Size() uint64              { return b.size }
func (b *Block) Permissions() Perm         { return b.perms }
func (b *Block) IsRead() bool              { return b.perms.Has(Read) }
func (b *Block) IsWrite() bool             { return b.perms.Has(Write) }
func (b *Block) IsExecute() bool           { return b.perms.Has(Execute) }
func (b *Block) IsVolatile() bool          { return b.volatile }
func (b *Block) IsInitialized() bool       { return b.initialized }
func (b *Block) IsMapped() bool            { return b.typ.IsMapped() }
func (b *Block) IsOverlay() bool           { return b.typ == Overlay }
func (b *Block) Space() *addr.Space        { return b.start.Space() }

// OverlaySource returns the first address of the range the block maps or
// overlays. It is invalid for Default blocks.
func (b *Block) OverlaySource() addr.Address { return b.source }

// SourceEnd returns the last source address of a mapped block.
func (b *Block) SourceEnd() addr.Address {
	if !b.IsMapped() {
		return addr.Address{}
	}
	end, _ := b.source.Add(SourceLength(b.typ, b.size) - 1)
	return end
}

// Contains reports whether a lies within the block.
func (b *Block) Contains(a addr.Address) bool {
	return a.Space().Equal(b.start.Space()) &&
		a.Offset() >= b.start.Offset() &&
		a.Offset() <= b.end.Offset()
}

// Read8 reads the byte at a, which must be inside the block.
func (b *Block) Read8(a addr.Address) (uint8, error) {
	if b.m == nil {
		return 0, errors.Wrapf(ErrNoBlock, "%s is not in a memory map", b.name)
	}
	if !b.Contains(a) {
		return 0, errors.Wrapf(ErrAddressOutOfBounds, "%s not in %s", a, b)
	}

	b.m.mu.RLock()
	defer b.m.mu.RUnlock()
	return b.m.read(b, a.Offset()-b.start.Offset(), 0)
}

func (b *Block) String() string {
	return fmt.Sprintf("%s[%s-%s]", b.name, b.start, b.end)
}
