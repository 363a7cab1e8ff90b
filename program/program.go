// Package program ties together the address spaces, the memory map and the
// listing of an analyzed program, and provides the transactions under
// which they are modified.
package program

import (
	"sync"

	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/listing"
	"memmap/log"
	"memmap/mem"
)

// Program is an analyzed binary.
//
// Mutations happen inside a transaction (see StartTransaction and Execute),
// through the objects returned by AddressFactory, Memory and Listing. The
// Read8, Block and Blocks methods are meant for readers outside of any
// transaction: they wait for the open transaction, if any, to end so they
// never observe uncommitted state.
type Program struct {
	name string
	lang *Language

	// mu is held for writing while a transaction is open.
	mu      sync.RWMutex
	spaces  *addr.Factory
	memory  *mem.Map
	listing *listing.Listing

	txmu   sync.Mutex
	tx     *transaction
	nextTx int
}

// New creates an empty program for the given language.
func New(name, langID string) (*Program, error) {
	if name == "" {
		return nil, errors.New("program name must not be empty")
	}
	lang, err := LanguageByID(langID)
	if err != nil {
		return nil, err
	}
	spaces, err := lang.newFactory()
	if err != nil {
		return nil, err
	}

	log.ModProgram.DebugZ("new program").
		String("name", name).
		String("lang", lang.ID).
		End()

	return &Program{
		name:    name,
		lang:    lang,
		spaces:  spaces,
		memory:  mem.NewMap(),
		listing: listing.New(name),
	}, nil
}

func (p *Program) Name() string                  { return p.name }
func (p *Program) Language() *Language           { return p.lang }
func (p *Program) AddressFactory() *addr.Factory { return p.spaces }
func (p *Program) Memory() *mem.Map              { return p.memory }
func (p *Program) Listing() *listing.Listing     { return p.listing }

// AddSpace creates an additional physical address space. It is meant to be
// used while building a program, before any block is added.
func (p *Program) AddSpace(name string, byteWidth int, min, max uint64) (*addr.Space, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spaces.CreateSpace(name, byteWidth, min, max)
}

// MinAddress returns the lowest address of the memory of p, which is the
// minimum address of the default space if p has no memory.
func (p *Program) MinAddress() addr.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	def := p.spaces.DefaultSpace()
	for _, b := range p.memory.Blocks() {
		if b.Space().Equal(def) {
			return b.Start()
		}
	}
	return def.MinAddress()
}

// Read8 returns the byte at a.
func (p *Program) Read8(a addr.Address) (uint8, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memory.Read8(a)
}

// ReadBytes returns up to n bytes starting at a. On error, the bytes read
// before the failing address are returned along with the error.
func (p *Program) ReadBytes(a addr.Address, n int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memory.ReadBytes(a, n)
}

// Block returns the memory block containing a, or nil.
func (p *Program) Block(a addr.Address) *mem.Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memory.Block(a)
}

// BlockByName returns the memory block with the given name, or nil.
func (p *Program) BlockByName(name string) *mem.Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memory.BlockByName(name)
}

// Blocks returns all memory blocks of p.
func (p *Program) Blocks() []*mem.Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.memory.Blocks()
}

// Spaces returns all address spaces of p.
func (p *Program) Spaces() []*addr.Space {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.spaces.Spaces()
}
