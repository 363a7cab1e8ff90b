package mem

import (
	"testing"

	"memmap/addr"
)

type testMem struct {
	t   testing.TB
	ram *addr.Space // 32-bit
	cod *addr.Space // 16-bit
	*Map
}

func newTestMem(tb testing.TB) *testMem {
	tb.Helper()

	ram, err := addr.NewSpace("ram", 0, 4)
	if err != nil {
		tb.Fatal(err)
	}
	cod, err := addr.NewSpace("CODE", 1, 2)
	if err != nil {
		tb.Fatal(err)
	}
	return &testMem{t: tb, ram: ram, cod: cod, Map: NewMap()}
}

func (tm *testMem) insert(b *Block, err error) *Block {
	tm.t.Helper()

	if err != nil {
		tm.t.Fatal(err)
	}
	if err := tm.Insert(b); err != nil {
		tm.t.Fatal(err)
	}
	return b
}

func (tm *testMem) wantRead8(a addr.Address, want uint8) {
	tm.t.Helper()

	got, err := tm.Read8(a)
	if err != nil {
		tm.t.Errorf("Read8(%s) error: %v", a, err)
		return
	}
	if got != want {
		tm.t.Errorf("Read8(%s) = %02X, want %02X", a, got, want)
	}
}

func (tm *testMem) write8(a addr.Address, val uint8) {
	tm.t.Helper()

	if err := tm.Write8(a, val); err != nil {
		tm.t.Errorf("Write8(%s, %02X) error: %v", a, val, err)
	}
}

func blockNames(blocks []*Block) []string {
	names := make([]string, 0, len(blocks))
	for _, b := range blocks {
		names = append(names, b.Name())
	}
	return names
}
