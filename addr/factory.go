package addr

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"

	"memmap/log"
)

// Factory is the registry of the address spaces of a program. Space names
// and ids are unique within a Factory. The first registered space is the
// default space.
type Factory struct {
	mu     sync.RWMutex
	spaces []*Space
	byName map[string]*Space
}

// NewFactory returns a Factory holding the given spaces, the first being
// the default one.
func NewFactory(spaces ...*Space) (*Factory, error) {
	f := &Factory{byName: make(map[string]*Space)}
	for _, sp := range spaces {
		if err := f.Register(sp); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// CreateSpace creates and registers a physical space, assigning it the next
// free id.
func (f *Factory) CreateSpace(name string, byteWidth int, min, max uint64) (*Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sp, err := NewSpaceRange(name, f.nextID(), byteWidth, min, max)
	if err != nil {
		return nil, err
	}
	if err := f.register(sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// Register makes sp visible in f.
func (f *Factory) Register(sp *Space) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.register(sp)
}

func (f *Factory) register(sp *Space) error {
	if sp == nil {
		return errors.Wrap(ErrInvalidSpace, "nil space")
	}
	if _, ok := f.byName[sp.name]; ok {
		return errors.Wrapf(ErrDuplicateSpace, "name %q", sp.name)
	}
	for _, s := range f.spaces {
		if s.id == sp.id {
			return errors.Wrapf(ErrDuplicateSpace, "id %d used by %q", sp.id, s.name)
		}
	}
	f.spaces = append(f.spaces, sp)
	f.byName[sp.name] = sp

	log.ModAddr.DebugZ("registered space").
		String("name", sp.name).
		Int("id", sp.id).
		Bool("overlay", sp.IsOverlay()).
		End()
	return nil
}

// Unregister removes an overlay space from f. Physical spaces live as long
// as the program.
func (f *Factory) Unregister(sp *Space) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !sp.IsOverlay() {
		return errors.Wrapf(ErrInvalidSpace, "%q is not an overlay space", sp.name)
	}
	idx := slices.Index(f.spaces, sp)
	if idx < 0 {
		return errors.Wrapf(ErrUnknownSpace, "%q", sp.name)
	}
	f.spaces = slices.Delete(f.spaces, idx, idx+1)
	delete(f.byName, sp.name)

	log.ModAddr.DebugZ("unregistered space").String("name", sp.name).End()
	return nil
}

func (f *Factory) nextID() int {
	id := 0
	for _, sp := range f.spaces {
		if sp.id >= id {
			id = sp.id + 1
		}
	}
	return id
}

// NewOverlaySpace stages an overlay of base for the block named blockName.
// The returned space is not registered: it has a name and id that are
// unique at the time of the call, and base's bounds.
func (f *Factory) NewOverlaySpace(blockName string, base *Space) (*Space, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if base == nil || !f.has(base) {
		return nil, errors.Wrapf(ErrUnknownSpace, "overlayed space %s", base)
	}
	if base.IsOverlay() {
		return nil, errors.Wrapf(ErrInvalidSpace, "cannot overlay overlay space %q", base.name)
	}

	sp, err := NewSpaceRange(f.uniqueName(blockName), f.nextID(), base.byteWidth, base.min, base.max)
	if err != nil {
		return nil, err
	}
	sp.base = base
	return sp, nil
}

// uniqueName derives a space name from a block name. Characters that would
// break address parsing are replaced, and a .N suffix is appended if needed.
func (f *Factory) uniqueName(blockName string) string {
	name := strings.Map(func(r rune) rune {
		if r == ':' || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, blockName)
	if name == "" {
		name = "overlay"
	}

	if _, ok := f.byName[name]; !ok {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d", name, i)
		if _, ok := f.byName[candidate]; !ok {
			return candidate
		}
	}
}

// DefaultSpace returns the first registered space, or nil.
func (f *Factory) DefaultSpace() *Space {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.spaces) == 0 {
		return nil
	}
	return f.spaces[0]
}

// Space returns the space with the given name, or nil.
func (f *Factory) Space(name string) *Space {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.byName[name]
}

// SpaceByID returns the space with the given id, or nil.
func (f *Factory) SpaceByID(id int) *Space {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sp := range f.spaces {
		if sp.id == id {
			return sp
		}
	}
	return nil
}

// Spaces returns all registered spaces, in registration order.
func (f *Factory) Spaces() []*Space {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.spaces)
}

// Has reports whether sp is registered in f.
func (f *Factory) Has(sp *Space) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.has(sp)
}

func (f *Factory) has(sp *Space) bool {
	if sp == nil {
		return false
	}
	reg, ok := f.byName[sp.name]
	return ok && reg.Equal(sp)
}

// ParseAddress parses "space:offset" or a bare offset, which then refers to
// the default space.
func (f *Factory) ParseAddress(str string) (Address, error) {
	name, off, found := strings.Cut(str, ":")
	if !found {
		def := f.DefaultSpace()
		if def == nil {
			return Address{}, errors.Wrap(ErrUnknownSpace, "no default space")
		}
		return def.ParseAddress(str)
	}

	sp := f.Space(name)
	if sp == nil {
		return Address{}, errors.Wrapf(ErrUnknownSpace, "%q", name)
	}
	return sp.ParseAddress(off)
}

// Checkpoint records the set of registered spaces.
type Checkpoint struct {
	f      *Factory
	spaces []*Space
}

func (f *Factory) Checkpoint() *Checkpoint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &Checkpoint{f: f, spaces: slices.Clone(f.spaces)}
}

// Rollback restores the spaces registered when cp was taken.
func (cp *Checkpoint) Rollback() {
	f := cp.f
	f.mu.Lock()
	defer f.mu.Unlock()

	f.spaces = cp.spaces
	f.byName = make(map[string]*Space, len(cp.spaces))
	for _, sp := range cp.spaces {
		f.byName[sp.name] = sp
	}
}

// Release discards cp, keeping the current spaces.
func (cp *Checkpoint) Release() {
	cp.spaces = nil
}
