package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-faster/jx"

	"memmap/addr"
	"memmap/mem"
	"memmap/progfile"
	"memmap/program"
)

// writeInfo writes a human readable description of the spaces and blocks
// of p.
func writeInfo(w io.Writer, p *program.Program) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintf(tw, "Program:\t%s\n", p.Name())
	fmt.Fprintf(tw, "Language:\t%s (%s)\n", p.Language().ID, p.Language().Description)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "SPACE\tID\tWIDTH\tRANGE\tOVERLAYS")
	for _, sp := range p.Spaces() {
		overlayed := "-"
		if sp.IsOverlay() {
			overlayed = sp.Overlayed().Name()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s-%s\t%s\n",
			sp.Name(), sp.ID(), sp.ByteWidth(), sp.MinAddress(), sp.MaxAddress(), overlayed)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "BLOCK\tSTART\tEND\tSIZE\tTYPE\tPERMS\tFLAGS\tSOURCE\tCOMMENT")
	for _, b := range p.Blocks() {
		src := "-"
		if b.Type() != mem.Default {
			src = b.OverlaySource().String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t0x%x\t%s\t%s\t%s\t%s\t%s\n",
			b.Name(), b.Start(), b.End(), b.Size(), b.Type(), b.Permissions(), blockFlags(b), src, b.Comment())
	}
	return tw.Flush()
}

func blockFlags(b *mem.Block) string {
	flags := []byte("--")
	if b.IsInitialized() {
		flags[0] = 'i'
	}
	if b.IsVolatile() {
		flags[1] = 'v'
	}
	return string(flags)
}

// writeInfoJSON writes the spaces and blocks of p as a JSON object.
func writeInfoJSON(w io.Writer, p *program.Program) error {
	var e jx.Encoder
	e.SetIdent(2)

	e.ObjStart()
	e.FieldStart("name")
	e.Str(p.Name())
	e.FieldStart("language")
	e.Str(p.Language().ID)

	e.FieldStart("spaces")
	e.ArrStart()
	for _, sp := range p.Spaces() {
		encodeSpace(&e, sp)
	}
	e.ArrEnd()

	e.FieldStart("blocks")
	e.ArrStart()
	for _, b := range p.Blocks() {
		encodeBlock(&e, b)
	}
	e.ArrEnd()
	e.ObjEnd()

	if _, err := w.Write(e.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeSpace(e *jx.Encoder, sp *addr.Space) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(sp.Name())
	e.FieldStart("id")
	e.Int(sp.ID())
	e.FieldStart("width")
	e.Int(sp.ByteWidth())
	e.FieldStart("min")
	e.UInt64(sp.Min())
	e.FieldStart("max")
	e.UInt64(sp.Max())
	if sp.IsOverlay() {
		e.FieldStart("overlays")
		e.Str(sp.Overlayed().Name())
	}
	e.ObjEnd()
}

func encodeBlock(e *jx.Encoder, b *mem.Block) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(b.Name())
	e.FieldStart("type")
	e.Str(b.Type().String())
	e.FieldStart("start")
	e.Str(b.Start().String())
	e.FieldStart("end")
	e.Str(b.End().String())
	e.FieldStart("size")
	e.UInt64(b.Size())
	e.FieldStart("perms")
	e.Str(b.Permissions().String())
	e.FieldStart("initialized")
	e.Bool(b.IsInitialized())
	e.FieldStart("volatile")
	e.Bool(b.IsVolatile())
	if b.Type() != mem.Default {
		e.FieldStart("source")
		e.Str(b.OverlaySource().String())
	}
	if c := b.Comment(); c != "" {
		e.FieldStart("comment")
		e.Str(c)
	}
	if s := b.SourceName(); s != "" {
		e.FieldStart("source_name")
		e.Str(s)
	}
	e.ObjEnd()
}

// writeCheck writes one line per checked file and returns the number of
// failures.
func writeCheck(w io.Writer, results []progfile.Result) int {
	nfail := 0
	for _, r := range results {
		if r.Err != nil {
			nfail++
			fmt.Fprintf(w, "FAIL\t%s: %v\n", r.Path, r.Err)
			continue
		}
		fmt.Fprintf(w, "ok\t%s\n", r.Path)
	}
	return nfail
}
