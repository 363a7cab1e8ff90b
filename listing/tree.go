// Package listing organizes the address ranges of a program into trees of
// modules and fragments, the browsable units of a program listing.
package listing

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"memmap/addr"
)

var (
	ErrDuplicateName = errors.New("duplicate group name")
	ErrRangeInUse    = errors.New("address range already in a fragment")
	ErrNotFound      = errors.New("not found")
)

// Range is the inclusive address range [Start, End].
type Range struct {
	Start, End addr.Address
}

func (r Range) Contains(a addr.Address) bool {
	return a.Space().Equal(r.Start.Space()) &&
		a.Offset() >= r.Start.Offset() &&
		a.Offset() <= r.End.Offset()
}

func (r Range) Intersects(o Range) bool {
	return r.Start.Space().Equal(o.Start.Space()) &&
		r.Start.Offset() <= o.End.Offset() &&
		o.Start.Offset() <= r.End.Offset()
}

func (r Range) String() string {
	return fmt.Sprintf("[%s-%s]", r.Start, r.End)
}

// Group is either a Module or a Fragment.
type Group interface {
	Name() string
	Parent() *Module
}

// Fragment is a leaf of a tree, it owns address ranges.
type Fragment struct {
	name   string
	ranges []Range
	parent *Module
}

func (f *Fragment) Name() string    { return f.name }
func (f *Fragment) Parent() *Module { return f.parent }
func (f *Fragment) Ranges() []Range { return slices.Clone(f.ranges) }
func (f *Fragment) IsEmpty() bool   { return len(f.ranges) == 0 }
func (f *Fragment) String() string  { return f.name }

// Contains reports whether a is in one of the fragment ranges.
func (f *Fragment) Contains(a addr.Address) bool {
	for _, r := range f.ranges {
		if r.Contains(a) {
			return true
		}
	}
	return false
}

// Module is an inner node of a tree.
type Module struct {
	name     string
	parent   *Module
	children []Group
}

func (m *Module) Name() string      { return m.name }
func (m *Module) Parent() *Module   { return m.parent }
func (m *Module) Children() []Group { return slices.Clone(m.children) }

// Tree is a named hierarchy of modules and fragments. Group names are
// unique within a tree and an address belongs to at most one fragment.
type Tree struct {
	name   string
	root   *Module
	groups map[string]Group
}

func newTree(name, rootName string) *Tree {
	root := &Module{name: rootName}
	return &Tree{
		name:   name,
		root:   root,
		groups: map[string]Group{rootName: root},
	}
}

func (t *Tree) Name() string  { return t.name }
func (t *Tree) Root() *Module { return t.root }

// Module returns the module with the given name, or nil.
func (t *Tree) Module(name string) *Module {
	m, _ := t.groups[name].(*Module)
	return m
}

// FragmentByName returns the fragment with the given name, or nil.
func (t *Tree) FragmentByName(name string) *Fragment {
	f, _ := t.groups[name].(*Fragment)
	return f
}

// Fragment returns the fragment containing a, or nil.
func (t *Tree) Fragment(a addr.Address) *Fragment {
	for _, g := range t.groups {
		if f, ok := g.(*Fragment); ok && f.Contains(a) {
			return f
		}
	}
	return nil
}

// Fragments returns all fragments of the tree, depth first.
func (t *Tree) Fragments() []*Fragment {
	var frags []*Fragment
	var walk func(m *Module)
	walk = func(m *Module) {
		for _, g := range m.children {
			switch g := g.(type) {
			case *Fragment:
				frags = append(frags, g)
			case *Module:
				walk(g)
			}
		}
	}
	walk(t.root)
	return frags
}

func (t *Tree) checkName(name string) error {
	if name == "" {
		return errors.Wrap(ErrDuplicateName, "empty name")
	}
	if _, ok := t.groups[name]; ok {
		return errors.Wrapf(ErrDuplicateName, "%q in tree %q", name, t.name)
	}
	return nil
}

func (t *Tree) checkParent(parent *Module) error {
	if parent == nil || t.groups[parent.name] != parent {
		return errors.Wrapf(ErrNotFound, "module is not part of tree %q", t.name)
	}
	return nil
}

// CreateModule adds an empty module under parent.
func (t *Tree) CreateModule(parent *Module, name string) (*Module, error) {
	if err := t.checkParent(parent); err != nil {
		return nil, err
	}
	if err := t.checkName(name); err != nil {
		return nil, err
	}
	m := &Module{name: name, parent: parent}
	parent.children = append(parent.children, m)
	t.groups[name] = m
	return m, nil
}

// CreateFragment adds a fragment owning the given ranges under parent. None
// of the ranges may already belong to another fragment.
func (t *Tree) CreateFragment(parent *Module, name string, ranges ...Range) (*Fragment, error) {
	if err := t.checkParent(parent); err != nil {
		return nil, err
	}
	if err := t.checkName(name); err != nil {
		return nil, err
	}
	for _, r := range ranges {
		for _, g := range t.groups {
			f, ok := g.(*Fragment)
			if !ok {
				continue
			}
			for _, fr := range f.ranges {
				if fr.Intersects(r) {
					return nil, errors.Wrapf(ErrRangeInUse, "%s intersects fragment %q", r, f.name)
				}
			}
		}
	}

	f := &Fragment{name: name, parent: parent, ranges: slices.Clone(ranges)}
	parent.children = append(parent.children, f)
	t.groups[name] = f
	return f, nil
}

// clone returns a deep copy of t.
func (t *Tree) clone() *Tree {
	c := &Tree{name: t.name, groups: make(map[string]Group, len(t.groups))}

	var cloneModule func(m, parent *Module) *Module
	cloneModule = func(m, parent *Module) *Module {
		cm := &Module{name: m.name, parent: parent}
		c.groups[cm.name] = cm
		for _, g := range m.children {
			switch g := g.(type) {
			case *Fragment:
				cf := &Fragment{name: g.name, parent: cm, ranges: slices.Clone(g.ranges)}
				c.groups[cf.name] = cf
				cm.children = append(cm.children, cf)
			case *Module:
				cm.children = append(cm.children, cloneModule(g, cm))
			}
		}
		return cm
	}
	c.root = cloneModule(t.root, nil)
	return c
}
