package memcmd

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"memmap/addr"
	"memmap/listing"
	"memmap/mem"
	"memmap/program"
)

func notepad(t *testing.T) *program.Program {
	t.Helper()
	b, err := program.NewBuilder("notepad", "toy")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateMemory("test2", "0x1001010", 100); err != nil {
		t.Fatal(err)
	}
	return b.Program()
}

func x08(t *testing.T) *program.Program {
	t.Helper()
	b, err := program.NewBuilder("x08", "8051")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.CreateMemory("test1", "CODE:0", 1); err != nil {
		t.Fatal(err)
	}
	return b.Program()
}

func address(t *testing.T, p *program.Program, off uint64) addr.Address {
	t.Helper()
	a, err := p.AddressFactory().DefaultSpace().Address(off)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func blockNames(p *program.Program) []string {
	var names []string
	for _, b := range p.Blocks() {
		names = append(names, b.Name())
	}
	return names
}

func spaceNames(p *program.Program) []string {
	var names []string
	for _, sp := range p.Spaces() {
		names = append(names, sp.Name())
	}
	return names
}

func wantRead8(t *testing.T, p *program.Program, a addr.Address, want uint8) {
	t.Helper()
	got, err := p.Read8(a)
	if err != nil {
		t.Fatalf("Read8(%s) error: %v", a, err)
	}
	if got != want {
		t.Errorf("Read8(%s) = %#02x, want %#02x", a, got, want)
	}
}

func TestAddInitializedBlock(t *testing.T) {
	p := notepad(t)

	ok, msg := AddMemoryBlock(p, "test", "comments", "test", address(t, p, 0x1001000), 0x100,
		true, true, true, false, 0xa, mem.Default, addr.Address{}, true)
	if ok || msg == "" {
		t.Errorf("overlapping block: ok=%t msg=%q, want failure with a message", ok, msg)
	}
	if diff := cmp.Diff([]string{"test2"}, blockNames(p)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	start := address(t, p, 0x100)
	ok, msg = AddMemoryBlock(p, ".test", "comments", "test", start, 100,
		true, true, true, false, 0xa, mem.Default, addr.Address{}, true)
	if !ok || msg != "" {
		t.Fatalf("AddMemoryBlock: ok=%t msg=%q", ok, msg)
	}

	b := p.Block(start)
	if b == nil {
		t.Fatalf("no block at %s", start)
	}
	if b.Name() != ".test" || b.Comment() != "comments" || b.SourceName() != "test" {
		t.Errorf("block = %q, %q, %q", b.Name(), b.Comment(), b.SourceName())
	}
	if b.Type() != mem.Default || !b.IsInitialized() || b.Permissions() != mem.PermAll {
		t.Errorf("block %s: type=%s initialized=%t perms=%s", b, b.Type(), b.IsInitialized(), b.Permissions())
	}
	wantRead8(t, p, start, 0xa)
	wantRead8(t, p, b.End(), 0xa)

	f := p.Listing().Fragment(listing.DefaultTreeName, start)
	if f == nil || f.Name() != b.Name() {
		t.Errorf("fragment at %s = %v, want %q", start, f, b.Name())
	}
	if got := p.MinAddress(); !got.Equal(start) {
		t.Errorf("MinAddress() = %s, want %s", got, start)
	}
}

func TestAddUninitializedBlock(t *testing.T) {
	p := notepad(t)
	start := address(t, p, 0x2000)

	ok, msg := AddMemoryBlock(p, ".bss", "", "", start, 0x10,
		true, true, false, true, 0xa, mem.Default, addr.Address{}, false)
	if !ok {
		t.Fatalf("AddMemoryBlock: %s", msg)
	}
	b := p.Block(start)
	if b.IsInitialized() || !b.IsVolatile() {
		t.Errorf("block %s: initialized=%t volatile=%t", b, b.IsInitialized(), b.IsVolatile())
	}
	if _, err := p.Read8(start); !errors.Is(err, mem.ErrUninitialized) {
		t.Errorf("Read8(%s) error = %v, want %v", start, err, mem.ErrUninitialized)
	}
}

func TestAddMappedBlocks(t *testing.T) {
	tests := []struct {
		typ  mem.Type
		want []uint8 // bytes from 0x3000
	}{
		{typ: mem.BitMapped, want: []uint8{0, 1, 0, 1, 1, 0, 1, 0}},
		{typ: mem.ByteMapped, want: []uint8{0x5a}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			p := x08(t)
			src := address(t, p, 0)
			err := p.WithTransaction("init", func() error {
				return p.Memory().Write8(src, 0x5a)
			})
			if err != nil {
				t.Fatal(err)
			}

			start := address(t, p, 0x3000)
			ok, msg := AddMemoryBlock(p, "test", "comments", "test", start, 100,
				true, true, true, false, 0, tt.typ, src, false)
			if !ok {
				t.Fatalf("AddMemoryBlock: %s", msg)
			}

			b := p.Block(start)
			if b == nil || b.Name() != "test" {
				t.Fatalf("Block(%s) = %v", start, b)
			}
			if b.Type() != tt.typ {
				t.Errorf("type = %s, want %s", b.Type(), tt.typ)
			}
			if !b.OverlaySource().Equal(src) {
				t.Errorf("OverlaySource() = %s, want %s", b.OverlaySource(), src)
			}
			if !b.Space().Equal(start.Space()) {
				t.Errorf("block space = %s, want %s", b.Space(), start.Space())
			}
			for i, want := range tt.want {
				a, _ := start.Add(uint64(i))
				wantRead8(t, p, a, want)
			}
		})
	}
}

func TestAddOverlayBlock(t *testing.T) {
	p := x08(t)
	start := address(t, p, 0x3000)
	code := start.Space()

	ok, msg := AddMemoryBlock(p, ".overlay", "comments", "test", start, 100,
		true, true, true, false, 0xa, mem.Overlay, address(t, p, 0), true)
	if !ok {
		t.Fatalf("AddMemoryBlock: %s", msg)
	}

	b := p.BlockByName(".overlay")
	if b == nil {
		t.Fatal("no .overlay block")
	}
	if b.Type() != mem.Overlay || !b.IsOverlay() {
		t.Errorf("type = %s, want %s", b.Type(), mem.Overlay)
	}
	sp := b.Space()
	if sp.Equal(code) || !sp.IsOverlay() || sp.Overlayed() != code {
		t.Errorf("block space = %s (overlay of %v), want an overlay of %s", sp, sp.Overlayed(), code)
	}
	if sp.Name() != ".overlay" {
		t.Errorf("overlay space name = %q, want %q", sp.Name(), ".overlay")
	}
	if got := b.Start().Offset(); got != start.Offset() {
		t.Errorf("start offset = %#x, want %#x", got, start.Offset())
	}
	if !b.OverlaySource().Equal(start) {
		t.Errorf("OverlaySource() = %s, want %s", b.OverlaySource(), start)
	}
	if p.Block(start) != nil {
		t.Errorf("overlay block visible in %s", code)
	}
	wantRead8(t, p, b.Start(), 0xa)

	// A second overlay with the same block name gets another space.
	ok, msg = AddMemoryBlock(p, ".overlay", "", "", start, 100,
		true, false, false, false, 0, mem.Overlay, address(t, p, 0), true)
	if ok || msg == "" {
		t.Fatalf("duplicate block name: ok=%t msg=%q, want failure with a message", ok, msg)
	}
	if diff := cmp.Diff([]string{"CODE", "INTMEM", "EXTMEM", ".overlay"}, spaceNames(p)); diff != "" {
		t.Errorf("spaces mismatch (-want +got):\n%s", diff)
	}
	ok, msg = AddMemoryBlock(p, ".overlay 2", "", "", start, 100,
		true, false, false, false, 0, mem.Overlay, address(t, p, 0), true)
	if !ok {
		t.Fatalf("AddMemoryBlock: %s", msg)
	}
	if sp := p.BlockByName(".overlay 2").Space(); sp.Name() != ".overlay_2" {
		t.Errorf("overlay space name = %q, want %q", sp.Name(), ".overlay_2")
	}
}

func TestAddBlockSourceInUnknownSpace(t *testing.T) {
	other, err := addr.NewSpace("other", 99, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []mem.Type{mem.ByteMapped, mem.BitMapped, mem.Overlay} {
		t.Run(typ.String(), func(t *testing.T) {
			p := x08(t)
			ok, msg := AddMemoryBlock(p, "test", "", "", address(t, p, 0x3000), 0x10,
				true, false, false, false, 0, typ, other.MustAddress(0), true)
			if ok || !strings.Contains(msg, mem.ErrInvalidMapping.Error()) {
				t.Errorf("AddMemoryBlock: ok=%t msg=%q, want an invalid mapping failure", ok, msg)
			}
			if diff := cmp.Diff([]string{"test1"}, blockNames(p)); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRollbackOnFragmentFailure(t *testing.T) {
	p := x08(t)

	// A fragment named like the new block exists already.
	err := p.WithTransaction("fragment", func() error {
		a := address(t, p, 0x8000)
		return p.Listing().TrackBlock(".overlay", a, a)
	})
	if err != nil {
		t.Fatal(err)
	}

	spaces := spaceNames(p)
	blocks := blockNames(p)

	c := NewAddMemoryBlockCmd(Request{
		Name:          ".overlay",
		Start:         address(t, p, 0x3000),
		Length:        100,
		Perms:         mem.PermAll,
		Type:          mem.Overlay,
		Fill:          0xa,
		Initialized:   true,
		OverlaySource: address(t, p, 0),
	})
	err = p.Execute(c)

	var operr *OpError
	if !errors.As(err, &operr) {
		t.Fatalf("Execute error = %v, want *OpError", err)
	}
	if operr.State != FragmentTracking {
		t.Errorf("failed in state %s, want %s", operr.State, FragmentTracking)
	}
	if !errors.Is(err, listing.ErrDuplicateName) {
		t.Errorf("error = %v, want %v", err, listing.ErrDuplicateName)
	}
	if c.StatusMsg() == "" || c.Block() != nil {
		t.Errorf("StatusMsg() = %q, Block() = %v", c.StatusMsg(), c.Block())
	}
	if diff := cmp.Diff(spaces, spaceNames(p)); diff != "" {
		t.Errorf("spaces mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(blocks, blockNames(p)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}
}

type failingTracker struct{ calls int }

var errTracking = errors.New("tracking failed")

func (ft *failingTracker) TrackBlock(string, addr.Address, addr.Address) error {
	ft.calls++
	return errTracking
}

func TestAddBlockOpUndo(t *testing.T) {
	p := x08(t)
	spaces := spaceNames(p)
	blocks := blockNames(p)

	ft := &failingTracker{}
	op := NewAddBlockOp(Request{
		Name:          "ovl",
		Start:         address(t, p, 0x100),
		Length:        0x10,
		Type:          mem.Overlay,
		Initialized:   true,
		OverlaySource: address(t, p, 0x100),
	}, p.AddressFactory(), p.Memory(), ft)

	if op.State() != Validating {
		t.Errorf("initial state = %s, want %s", op.State(), Validating)
	}
	b, err := op.Run()
	if b != nil || !errors.Is(err, errTracking) {
		t.Fatalf("Run() = %v, %v, want nil, %v", b, err, errTracking)
	}
	if ft.calls != 1 {
		t.Errorf("tracker called %d times, want 1", ft.calls)
	}
	if op.State() != Failed {
		t.Errorf("state = %s, want %s", op.State(), Failed)
	}
	if diff := cmp.Diff(spaces, spaceNames(p)); diff != "" {
		t.Errorf("spaces mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(blocks, blockNames(p)); diff != "" {
		t.Errorf("blocks mismatch (-want +got):\n%s", diff)
	}

	// An operation runs only once.
	if _, err := op.Run(); err == nil {
		t.Errorf("second Run() should fail")
	}
}

func TestAddBlockOpCommitted(t *testing.T) {
	p := x08(t)
	op := NewAddBlockOp(Request{
		Name:        "rom",
		Start:       address(t, p, 0x100),
		Length:      0x10,
		Perms:       mem.Read | mem.Execute,
		Initialized: true,
	}, p.AddressFactory(), p.Memory(), nil)

	b, err := op.Run()
	if err != nil {
		t.Fatal(err)
	}
	if op.State() != Committed {
		t.Errorf("state = %s, want %s", op.State(), Committed)
	}
	if err := p.Memory().Write8(b.Start(), 1); !errors.Is(err, mem.ErrAccessDenied) {
		t.Errorf("Write8 on read-only block error = %v, want %v", err, mem.ErrAccessDenied)
	}
}

func TestAddBlockOpErrors(t *testing.T) {
	p := x08(t)
	other, err := addr.NewSpace("other", 99, 2)
	if err != nil {
		t.Fatal(err)
	}
	at := func(off uint64) addr.Address { return address(t, p, off) }
	intmem := func(off uint64) addr.Address { return p.AddressFactory().Space("INTMEM").MustAddress(off) }

	tests := []struct {
		name  string
		req   Request
		state State
		want  error
	}{
		{
			name:  "empty name",
			req:   Request{Start: at(0x100), Length: 1},
			state: Validating,
			want:  mem.ErrInvalidBlock,
		},
		{
			name:  "zero length",
			req:   Request{Name: "b", Start: at(0x100)},
			state: Validating,
			want:  mem.ErrInvalidBlock,
		},
		{
			name:  "no start",
			req:   Request{Name: "b", Length: 1},
			state: Validating,
			want:  mem.ErrInvalidBlock,
		},
		{
			name:  "unknown start space",
			req:   Request{Name: "b", Start: other.MustAddress(0), Length: 1},
			state: Validating,
			want:  addr.ErrUnknownSpace,
		},
		{
			name:  "end out of bounds",
			req:   Request{Name: "b", Start: at(0xfff0), Length: 0x20},
			state: Validating,
			want:  addr.ErrAddressOutOfBounds,
		},
		{
			name:  "duplicate name",
			req:   Request{Name: "test1", Start: at(0x100), Length: 1},
			state: Validating,
			want:  mem.ErrDuplicateName,
		},
		{
			name:  "mapped without source",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.BitMapped},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "overlay without source",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.Overlay},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "source in unknown space",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.ByteMapped, OverlaySource: other.MustAddress(0)},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "bit-mapped source in unknown space",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.BitMapped, OverlaySource: other.MustAddress(0)},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "overlay source in unknown space",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.Overlay, OverlaySource: other.MustAddress(0)},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "overlay source in another space",
			req:   Request{Name: "b", Start: at(0x100), Length: 1, Type: mem.Overlay, OverlaySource: intmem(0)},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "source out of bounds",
			req:   Request{Name: "b", Start: at(0x100), Length: 0x20, Type: mem.ByteMapped, OverlaySource: at(0xfff0)},
			state: Validating,
			want:  addr.ErrAddressOutOfBounds,
		},
		{
			name:  "bit-mapped source out of bounds",
			req:   Request{Name: "b", Start: at(0x100), Length: 0x21, Type: mem.BitMapped, OverlaySource: at(0xfffc)},
			state: Validating,
			want:  addr.ErrAddressOutOfBounds,
		},
		{
			name:  "source covers block",
			req:   Request{Name: "b", Start: at(0x10), Length: 0x10, Type: mem.ByteMapped, OverlaySource: at(0x18)},
			state: Validating,
			want:  mem.ErrInvalidMapping,
		},
		{
			name:  "overlap",
			req:   Request{Name: "b", Start: at(0), Length: 0x10, Initialized: true},
			state: Inserting,
			want:  mem.ErrOverlap,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spaces := spaceNames(p)
			blocks := blockNames(p)

			op := NewAddBlockOp(tt.req, p.AddressFactory(), p.Memory(), p.Listing())
			_, err := op.Run()

			var operr *OpError
			if !errors.As(err, &operr) {
				t.Fatalf("Run() error = %v, want *OpError", err)
			}
			if operr.State != tt.state {
				t.Errorf("failed in state %s, want %s", operr.State, tt.state)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Run() error = %v, want %v", err, tt.want)
			}
			if diff := cmp.Diff(spaces, spaceNames(p)); diff != "" {
				t.Errorf("spaces mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(blocks, blockNames(p)); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
