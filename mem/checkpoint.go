package mem

import (
	"maps"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// ErrCheckpointActive is returned when taking a checkpoint of a map that
// already has one.
var ErrCheckpointActive = errors.New("checkpoint already active")

type undoWrite struct {
	b   *Block
	off uint64
	old uint8
}

// Checkpoint is a saved state of a Map. Blocks inserted or removed after
// the checkpoint, as well as bytes written, can be reverted with Rollback.
type Checkpoint struct {
	m       *Map
	index   *btree.BTreeG[key]
	names   map[string]*Block
	journal []undoWrite
}

// Checkpoint saves the current state of m. Only one checkpoint can be
// active at a time.
func (m *Map) Checkpoint() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cp != nil {
		return nil, ErrCheckpointActive
	}
	m.cp = &Checkpoint{
		m:     m,
		index: m.index.Clone(),
		names: maps.Clone(m.names),
	}
	return m.cp, nil
}

// journal records the byte at off in b before it gets overwritten. Caller
// must hold m.mu for writing.
func (m *Map) journal(b *Block, off uint64) {
	if m.cp != nil {
		m.cp.journal = append(m.cp.journal, undoWrite{b: b, off: off, old: b.data[off]})
	}
}

// Rollback restores the map as it was when cp was taken, and deactivates cp.
func (cp *Checkpoint) Rollback() {
	m := cp.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cp != cp {
		return
	}
	for i := len(cp.journal) - 1; i >= 0; i-- {
		u := cp.journal[i]
		u.b.data[u.off] = u.old
	}

	// Blocks inserted since cp are not part of the map anymore.
	m.index.Ascend(func(k key) bool {
		if cp.names[k.b.name] != k.b {
			k.b.m = nil
		}
		return true
	})
	cp.index.Ascend(func(k key) bool {
		k.b.m = m
		return true
	})

	m.index = cp.index
	m.names = cp.names
	m.cp = nil
}

// Release deactivates cp, keeping all changes made since it was taken.
func (cp *Checkpoint) Release() {
	m := cp.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cp == cp {
		m.cp = nil
	}
	cp.journal = nil
}
