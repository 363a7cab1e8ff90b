package mem

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestMapInsertOverlap(t *testing.T) {
	tm := newTestMem(t)
	tm.insert(NewInitializedBlock("test2", tm.ram.MustAddress(0x1001010), 100, 0))

	// test2 covers [0x1001010, 0x1001073]
	tests := []struct {
		name  string
		start uint64
		size  uint64
		err   error
	}{
		{"same range", 0x1001010, 100, ErrOverlap},
		{"inside", 0x1001020, 4, ErrOverlap},
		{"straddle start", 0x1001000, 0x20, ErrOverlap},
		{"straddle end", 0x1001070, 0x10, ErrOverlap},
		{"covering", 0x1000000, 0x10000, ErrOverlap},
		{"last byte", 0x1001073, 1, ErrOverlap},
		{"just before", 0x1001000, 0x10, nil},
		{"just after", 0x1001074, 0x10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewInitializedBlock(tt.name, tm.ram.MustAddress(tt.start), tt.size, 0)
			if err != nil {
				t.Fatal(err)
			}
			err = tm.Insert(b)
			if !errors.Is(err, tt.err) {
				t.Fatalf("Insert error = %v, want %v", err, tt.err)
			}
			if err == nil {
				if err := tm.Remove(b); err != nil {
					t.Fatal(err)
				}
			}
		})
	}

	// Same offsets in another space don't conflict.
	tm.insert(NewInitializedBlock("code", tm.cod.MustAddress(0x1010), 100, 0))
}

func TestMapInsertErrors(t *testing.T) {
	tm := newTestMem(t)
	tm.insert(NewInitializedBlock(".text", tm.ram.MustAddress(0x1000), 0x100, 0))

	b, err := NewInitializedBlock(".text", tm.ram.MustAddress(0x5000), 0x100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := tm.Insert(b); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Insert duplicate name error = %v, want ErrDuplicateName", err)
	}

	if _, err := NewInitializedBlock("big", tm.cod.MustAddress(0xFF00), 0x101, 0); !errors.Is(err, ErrAddressOutOfBounds) {
		t.Errorf("block exceeding space error = %v, want ErrAddressOutOfBounds", err)
	}
	if _, err := NewInitializedBlock("", tm.cod.MustAddress(0), 1, 0); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("empty name error = %v, want ErrInvalidBlock", err)
	}
	if _, err := NewInitializedBlock("empty", tm.cod.MustAddress(0), 0, 0); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("zero length error = %v, want ErrInvalidBlock", err)
	}
	if _, err := NewInitializedBlock("huge", tm.ram.MustAddress(0), MaxBlockSize+1, 0); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("huge block error = %v, want ErrInvalidBlock", err)
	}
}

func TestMapLookup(t *testing.T) {
	tm := newTestMem(t)
	tm.insert(NewInitializedBlock("c", tm.cod.MustAddress(0x10), 0x10, 0))
	tm.insert(NewInitializedBlock("b", tm.ram.MustAddress(0x200), 0x100, 0))
	tm.insert(NewUninitializedBlock("a", tm.ram.MustAddress(0x100), 0x100))

	tests := []struct {
		off  uint64
		want string
	}{
		{0x0ff, ""},
		{0x100, "a"},
		{0x1ff, "a"},
		{0x200, "b"},
		{0x2ff, "b"},
		{0x300, ""},
	}
	for _, tt := range tests {
		got := ""
		if b := tm.Block(tm.ram.MustAddress(tt.off)); b != nil {
			got = b.Name()
		}
		if got != tt.want {
			t.Errorf("Block(%x) = %q, want %q", tt.off, got, tt.want)
		}
	}

	if b := tm.Block(tm.cod.MustAddress(0x100)); b != nil {
		t.Errorf("Block(CODE:0100) = %s, want nil", b)
	}
	if b := tm.BlockByName("c"); b == nil || b.Start().String() != "CODE:0010" {
		t.Errorf("BlockByName(c) = %v", b)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, blockNames(tm.Blocks())); diff != "" {
		t.Errorf("Blocks() mismatch (-want +got):\n%s", diff)
	}
	if tm.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tm.Len())
	}

	if !tm.Overlaps(tm.ram, 0x50, 0x100) {
		t.Errorf("Overlaps(0x50, 0x100) = false")
	}
	if !tm.Overlaps(tm.ram, 0x2ff, 0x250) {
		t.Errorf("Overlaps with reversed bounds = false")
	}
	if tm.Overlaps(tm.ram, 0x300, 0x1000) {
		t.Errorf("Overlaps(0x300, 0x1000) = true")
	}
}

func TestMapRemove(t *testing.T) {
	tm := newTestMem(t)
	b := tm.insert(NewInitializedBlock("a", tm.ram.MustAddress(0x100), 0x100, 0))

	if err := tm.Remove(b); err != nil {
		t.Fatal(err)
	}
	if tm.Block(tm.ram.MustAddress(0x100)) != nil || tm.BlockByName("a") != nil {
		t.Errorf("removed block still reachable")
	}
	if err := tm.Remove(b); !errors.Is(err, ErrNoBlock) {
		t.Errorf("second Remove error = %v, want ErrNoBlock", err)
	}

	// The range is free again.
	tm.insert(NewInitializedBlock("a", tm.ram.MustAddress(0x100), 0x100, 0))
}

func TestBlockAttributes(t *testing.T) {
	tm := newTestMem(t)
	b, err := NewInitializedBlock(".data", tm.ram.MustAddress(0x1000), 0x20, 0)
	if err != nil {
		t.Fatal(err)
	}
	b.SetComment("A Test")
	b.SetSourceName("new block")
	b.SetPermissions(Perms(true, false, true))
	b.SetVolatile(true)

	if b.Comment() != "A Test" || b.SourceName() != "new block" {
		t.Errorf("comment/source = %q/%q", b.Comment(), b.SourceName())
	}
	if !b.IsRead() || b.IsWrite() || !b.IsExecute() || b.Permissions().String() != "r-x" {
		t.Errorf("permissions = %s, want r-x", b.Permissions())
	}
	if !b.IsVolatile() || !b.IsInitialized() || b.IsMapped() || b.IsOverlay() {
		t.Errorf("bad flags for %s", b)
	}
	if b.End().Offset() != 0x101f || b.Size() != 0x20 {
		t.Errorf("end = %s, size = %x", b.End(), b.Size())
	}
	if b.OverlaySource().IsValid() {
		t.Errorf("default block has an overlay source")
	}
	if b.String() != ".data[ram:00001000-ram:0000101f]" {
		t.Errorf("String() = %q", b.String())
	}
}

func TestParseType(t *testing.T) {
	for s, want := range map[string]Type{
		"":            Default,
		"default":     Default,
		"bit-mapped":  BitMapped,
		"BIT_MAPPED":  BitMapped,
		"byte-mapped": ByteMapped,
		"bytemapped":  ByteMapped,
		"Overlay":     Overlay,
	} {
		got, err := ParseType(s)
		if err != nil || got != want {
			t.Errorf("ParseType(%q) = %s, %v; want %s", s, got, err, want)
		}
	}
	if _, err := ParseType("ram"); !errors.Is(err, ErrInvalidBlock) {
		t.Errorf("ParseType(ram) error = %v", err)
	}
}

func TestPerm(t *testing.T) {
	for s, want := range map[string]Perm{
		"rwx": PermAll,
		"r--": Read,
		"-w-": Write,
		"xr":  Read | Execute,
		"":    PermNone,
	} {
		got, err := ParsePerm(s)
		if err != nil || got != want {
			t.Errorf("ParsePerm(%q) = %s, %v; want %s", s, got, err, want)
		}
	}
	if _, err := ParsePerm("rwz"); err == nil {
		t.Errorf("ParsePerm(rwz) should fail")
	}
}

func TestSourceLength(t *testing.T) {
	tests := []struct {
		typ  Type
		size uint64
		want uint64
	}{
		{BitMapped, 1, 1},
		{BitMapped, 8, 1},
		{BitMapped, 9, 2},
		{BitMapped, 100, 13},
		{ByteMapped, 100, 100},
		{Default, 100, 0},
	}
	for _, tt := range tests {
		if got := SourceLength(tt.typ, tt.size); got != tt.want {
			t.Errorf("SourceLength(%s, %d) = %d, want %d", tt.typ, tt.size, got, tt.want)
		}
	}
}
