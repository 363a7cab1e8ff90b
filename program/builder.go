package program

import (
	"github.com/pkg/errors"

	"memmap/mem"
)

// Builder helps creating programs with some initial memory.
type Builder struct {
	p *Program
}

func NewBuilder(name, langID string) (*Builder, error) {
	p, err := New(name, langID)
	if err != nil {
		return nil, err
	}
	return &Builder{p: p}, nil
}

// CreateMemory adds an initialized, zero-filled, read-write-execute block
// of the given size at addrStr (see addr.Factory.ParseAddress).
func (b *Builder) CreateMemory(name, addrStr string, size uint64) (*mem.Block, error) {
	start, err := b.p.spaces.ParseAddress(addrStr)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %q", name)
	}

	var blk *mem.Block
	err = b.p.WithTransaction("Create Memory", func() error {
		var err error
		if blk, err = mem.NewInitializedBlock(name, start, size, 0); err != nil {
			return err
		}
		blk.SetPermissions(mem.PermAll)
		if err := b.p.memory.Insert(blk); err != nil {
			return err
		}
		return b.p.listing.TrackBlock(name, blk.Start(), blk.End())
	})
	if err != nil {
		return nil, err
	}
	return blk, nil
}

// Program returns the program being built.
func (b *Builder) Program() *Program { return b.p }
