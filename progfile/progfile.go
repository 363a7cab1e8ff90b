// Package progfile builds programs from TOML descriptions.
//
// A description names the program and its language, then lists extra
// address spaces and memory blocks:
//
//	name = "firmware"
//	language = "8051"
//
//	[[block]]
//	name = "code"
//	start = "CODE:0"
//	length = 0x2000
//	perms = "r-x"
//
//	[[block]]
//	name = "flags"
//	type = "bit-mapped"
//	start = "CODE:3000"
//	length = 0x40
//	source = "INTMEM:20"
//
// Blocks are added in order, each one through memcmd, so that a description
// is subject to the same validation as interactive additions.
package progfile

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"memmap/log"
	"memmap/mem"
	"memmap/memcmd"
	"memmap/program"
)

// ErrSyntax is returned for descriptions that can't be decoded.
var ErrSyntax = errors.New("invalid program description")

const defaultLanguage = "toy"

type Description struct {
	Name     string      `toml:"name"`
	Language string      `toml:"language"`
	Spaces   []SpaceDesc `toml:"space"`
	Blocks   []BlockDesc `toml:"block"`
}

type SpaceDesc struct {
	Name  string `toml:"name"`
	Width int    `toml:"width"`
	Min   uint64 `toml:"min"`
	Max   uint64 `toml:"max"`
}

type BlockDesc struct {
	Name       string `toml:"name"`
	Comment    string `toml:"comment"`
	SourceName string `toml:"source_name"`
	Start      string `toml:"start"`
	Length     uint64 `toml:"length"`
	Type       string `toml:"type"`
	Fill       uint8  `toml:"fill"`
	Perms      string `toml:"perms"`
	Volatile   bool   `toml:"volatile"`
	Source     string `toml:"source"`

	// Initialized defaults to true.
	Initialized *bool `toml:"initialized"`
}

// Decode reads a description from r and builds the program it describes.
func Decode(r io.Reader) (*program.Program, error) {
	var desc Description
	md, err := toml.NewDecoder(r).Decode(&desc)
	if err != nil {
		return nil, errors.Wrap(ErrSyntax, err.Error())
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	return Build(desc)
}

// Load reads the description in the file at path and builds the program it
// describes.
func Load(path string) (*program.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return p, nil
}

// Result is the outcome of loading one description.
type Result struct {
	Path    string
	Program *program.Program
	Err     error
}

// LoadEach loads all descriptions concurrently, and reports the outcome of
// each, in the order of paths.
func LoadEach(paths ...string) []Result {
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			p, err := Load(path)
			results[i] = Result{Path: path, Program: p, Err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// LoadAll loads all descriptions concurrently. Programs are returned in the
// order of paths. If any fails, the error of the first failing path is
// returned.
func LoadAll(paths ...string) ([]*program.Program, error) {
	progs := make([]*program.Program, len(paths))
	for i, r := range LoadEach(paths...) {
		if r.Err != nil {
			return nil, r.Err
		}
		progs[i] = r.Program
	}
	return progs, nil
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return errors.Wrapf(ErrSyntax, "unknown keys: %s", strings.Join(keys, ", "))
}

// Build creates the program described by desc.
func Build(desc Description) (*program.Program, error) {
	lang := desc.Language
	if lang == "" {
		lang = defaultLanguage
	}
	p, err := program.New(desc.Name, lang)
	if err != nil {
		return nil, err
	}

	for _, sd := range desc.Spaces {
		if _, err := p.AddSpace(sd.Name, sd.Width, sd.Min, sd.Max); err != nil {
			return nil, errors.Wrapf(err, "space %q", sd.Name)
		}
	}

	for i, bd := range desc.Blocks {
		req, err := request(p, bd)
		if err != nil {
			return nil, errors.Wrapf(err, "block #%d (%q)", i, bd.Name)
		}
		if err := p.Execute(memcmd.NewAddMemoryBlockCmd(req)); err != nil {
			return nil, errors.Wrapf(err, "block #%d", i)
		}
	}

	log.ModProgram.DebugZ("program loaded").
		String("name", p.Name()).
		String("lang", lang).
		Int("blocks", len(desc.Blocks)).
		End()
	return p, nil
}

func request(p *program.Program, bd BlockDesc) (memcmd.Request, error) {
	req := memcmd.Request{
		Name:        bd.Name,
		Comment:     bd.Comment,
		SourceName:  bd.SourceName,
		Length:      bd.Length,
		Volatile:    bd.Volatile,
		Fill:        bd.Fill,
		Initialized: bd.Initialized == nil || *bd.Initialized,
		Perms:       mem.Read,
	}

	var err error
	if req.Type, err = mem.ParseType(bd.Type); err != nil {
		return req, err
	}
	if bd.Perms != "" {
		if req.Perms, err = mem.ParsePerm(bd.Perms); err != nil {
			return req, err
		}
	}
	if req.Start, err = p.AddressFactory().ParseAddress(bd.Start); err != nil {
		return req, errors.Wrap(err, "start")
	}
	if bd.Source != "" {
		if req.OverlaySource, err = p.AddressFactory().ParseAddress(bd.Source); err != nil {
			return req, errors.Wrap(err, "source")
		}
	}
	return req, nil
}
