// Package mem models the memory of a program as a set of non-overlapping
// blocks spread over one or more address spaces.
package mem

import (
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/log"
)

const btreeDegree = 16

// key orders blocks by space, then by start offset.
type key struct {
	space int
	start uint64
	b     *Block
}

func keyLess(a, b key) bool {
	if a.space != b.space {
		return a.space < b.space
	}
	return a.start < b.start
}

func keyOf(b *Block) key {
	return key{space: b.start.Space().ID(), start: b.start.Offset(), b: b}
}

// Map owns all the blocks of a program. Within a space, blocks never
// overlap; across the whole map, block names are unique.
//
// Map is safe for concurrent readers. Mutations must be serialized by the
// caller, Map only guarantees a mutation is not observed half-done.
type Map struct {
	mu    sync.RWMutex
	index *btree.BTreeG[key]
	names map[string]*Block
	cp    *Checkpoint // active checkpoint, if any
}

func NewMap() *Map {
	return &Map{
		index: btree.NewG(btreeDegree, keyLess),
		names: make(map[string]*Block),
	}
}

// Len returns the number of blocks in the map.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Len()
}

// Blocks returns all blocks, ordered by space id then start address.
func (m *Map) Blocks() []*Block {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]*Block, 0, m.index.Len())
	m.index.Ascend(func(k key) bool {
		blocks = append(blocks, k.b)
		return true
	})
	return blocks
}

// Block returns the block containing a, or nil.
func (m *Map) Block(a addr.Address) *Block {
	if !a.IsValid() {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findBlock(a)
}

// BlockByName returns the block with the given name, or nil.
func (m *Map) BlockByName(name string) *Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[name]
}

// findBlock returns the block containing a. Caller must hold m.mu.
func (m *Map) findBlock(a addr.Address) *Block {
	sp := a.Space()
	off := a.Offset()

	var found *Block
	m.index.DescendLessOrEqual(key{space: sp.ID(), start: off}, func(k key) bool {
		if k.space == sp.ID() && off <= k.b.end.Offset() && k.b.start.Space().Equal(sp) {
			found = k.b
		}
		return false
	})
	return found
}

// Overlaps reports whether any block of sp intersects [start, end].
func (m *Map) Overlaps(sp *addr.Space, start, end uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlapping(sp, start, end) != nil
}

// overlapping returns a block of sp that intersects [start, end]. Since
// blocks don't overlap, it's enough to look at the last block starting at
// or before end. Caller must hold m.mu.
func (m *Map) overlapping(sp *addr.Space, start, end uint64) *Block {
	if start > end {
		start, end = end, start
	}

	var found *Block
	m.index.DescendLessOrEqual(key{space: sp.ID(), start: end}, func(k key) bool {
		if k.space == sp.ID() && k.b.end.Offset() >= start {
			found = k.b
		}
		return false
	})
	return found
}

// Insert adds b to the map. It fails if the name of b is already used, if b
// exceeds the bounds of its space or if it intersects an existing block.
func (m *Map) Insert(b *Block) error {
	if b == nil {
		return errors.Wrap(ErrInvalidBlock, "nil block")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b.m != nil && b.m != m {
		return errors.Wrapf(ErrInvalidBlock, "%s already belongs to another map", b.name)
	}

	sp := b.start.Space()
	if !sp.Contains(b.start.Offset()) || !sp.Contains(b.end.Offset()) || b.end.Offset() < b.start.Offset() {
		return errors.Wrapf(ErrAddressOutOfBounds, "%s exceeds %s", b, sp)
	}
	if _, ok := m.names[b.name]; ok {
		return errors.Wrapf(ErrDuplicateName, "%q", b.name)
	}
	if other := m.overlapping(sp, b.start.Offset(), b.end.Offset()); other != nil {
		return errors.Wrapf(ErrOverlap, "%s intersects %s", b, other)
	}

	m.index.ReplaceOrInsert(keyOf(b))
	m.names[b.name] = b
	b.m = m

	log.ModMem.DebugZ("inserted block").
		String("name", b.name).
		Stringer("type", b.typ).
		Stringer("start", b.start).
		Uint("size", b.size).
		End()
	return nil
}

// Remove takes b back out of the map. It is meant to undo an Insert whose
// enclosing operation could not complete.
func (m *Map) Remove(b *Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.names[b.name] != b {
		return errors.Wrapf(ErrNoBlock, "%s is not in the map", b)
	}
	m.index.Delete(keyOf(b))
	delete(m.names, b.name)
	b.m = nil

	log.ModMem.DebugZ("removed block").String("name", b.name).End()
	return nil
}
