package listing

import (
	"slices"
	"sync"

	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/log"
)

// DefaultTreeName is the name of the tree every listing starts with.
const DefaultTreeName = "Program Tree"

// Listing holds the trees of a program. The first tree is the default one,
// new memory blocks are tracked there.
type Listing struct {
	mu       sync.RWMutex
	rootName string
	trees    []*Tree
}

// New returns a listing holding the default tree, whose root module is
// named after the program.
func New(programName string) *Listing {
	return &Listing{
		rootName: programName,
		trees:    []*Tree{newTree(DefaultTreeName, programName)},
	}
}

// CreateTree adds an empty tree.
func (l *Listing) CreateTree(name string) (*Tree, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tree(name) != nil {
		return nil, errors.Wrapf(ErrDuplicateName, "tree %q", name)
	}
	t := newTree(name, l.rootName)
	l.trees = append(l.trees, t)
	return t, nil
}

// Tree returns the tree with the given name, or nil.
func (l *Listing) Tree(name string) *Tree {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree(name)
}

func (l *Listing) tree(name string) *Tree {
	for _, t := range l.trees {
		if t.name == name {
			return t
		}
	}
	return nil
}

// TreeNames returns the names of all trees, the default one first.
func (l *Listing) TreeNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, len(l.trees))
	for i, t := range l.trees {
		names[i] = t.name
	}
	return names
}

// Fragment returns the fragment of the named tree containing a, or nil.
func (l *Listing) Fragment(treeName string, a addr.Address) *Fragment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := l.tree(treeName)
	if t == nil {
		return nil
	}
	return t.Fragment(a)
}

// TrackBlock registers the range [start, end] of a new memory block as a
// fragment named after the block, under the root of the default tree.
func (l *Listing) TrackBlock(name string, start, end addr.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.trees[0]
	if _, err := t.CreateFragment(t.root, name, Range{Start: start, End: end}); err != nil {
		return errors.Wrapf(err, "tracking block %q", name)
	}

	log.ModListing.DebugZ("tracked block").
		String("tree", t.name).
		String("name", name).
		Stringer("start", start).
		Stringer("end", end).
		End()
	return nil
}

// Checkpoint is a saved state of a Listing.
type Checkpoint struct {
	l     *Listing
	trees []*Tree
}

func (l *Listing) Checkpoint() *Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := &Checkpoint{l: l, trees: make([]*Tree, len(l.trees))}
	for i, t := range l.trees {
		cp.trees[i] = t.clone()
	}
	return cp
}

// Rollback restores the trees as they were when cp was taken.
func (cp *Checkpoint) Rollback() {
	l := cp.l
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trees = slices.Clone(cp.trees)
}

// Release discards cp.
func (cp *Checkpoint) Release() {
	cp.trees = nil
}
