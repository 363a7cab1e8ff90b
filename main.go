package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/bradleyjkemp/memviz"
	"golang.org/x/term"

	"memmap/addr"
	"memmap/log"
	"memmap/mem"
	"memmap/memcmd"
	"memmap/progfile"
	"memmap/program"
)

func main() {
	appcfg := LoadConfigOrDefault()
	log.Configure(os.Stderr, appcfg.Output.Color && term.IsTerminal(int(os.Stderr.Fd())))

	cfg := parseArgs(os.Args[1:])
	if cfg.Log == 0 && appcfg.General.Log != "" {
		_, err := enableLogModules(appcfg.General.Log)
		checkf(err, "invalid log modules in config")
	}

	var out io.Writer = os.Stdout
	if cfg.Out != nil {
		out = cfg.Out
		defer cfg.Out.Close()
	}
	jsonOut := cfg.JSON || appcfg.Output.Format == "json"

	switch cfg.mode {
	case infoMode:
		p := loadProgram(cfg.Info.Program)
		checkf(printInfo(out, p, jsonOut), "failed to write program infos")
	case addBlockMode:
		p := loadProgram(cfg.AddBlock.Program)
		addBlock(p, cfg.AddBlock, appcfg.Blocks)
		checkf(printInfo(out, p, jsonOut), "failed to write program infos")
	case readMode:
		p := loadProgram(cfg.Read.Program)
		a := parseAddress(p, cfg.Read.Address)
		buf, err := p.ReadBytes(a, cfg.Read.Count)
		fmt.Fprint(out, hex.Dump(buf))
		checkf(err, "read stopped after %d bytes", len(buf))
	case writeMode:
		p := loadProgram(cfg.Write.Program)
		a := parseAddress(p, cfg.Write.Address)
		buf, err := hex.DecodeString(cfg.Write.Bytes)
		checkf(err, "invalid bytes %q", cfg.Write.Bytes)
		checkf(writeBytes(p, a, buf), "write failed")
		buf, err = p.ReadBytes(a, len(buf))
		fmt.Fprint(out, hex.Dump(buf))
		checkf(err, "read back failed")
	case checkMode:
		if n := writeCheck(out, progfile.LoadEach(cfg.Check.Programs...)); n != 0 {
			fatalf("%d of %d program descriptions are invalid", n, len(cfg.Check.Programs))
		}
	case graphMode:
		p := loadProgram(cfg.Graph.Program)
		memviz.Map(out, p.Blocks())
	case configMode:
		if cfg.Config.Save {
			checkf(SaveConfig(appcfg), "failed to save config")
		}
		checkf(toml.NewEncoder(out).Encode(appcfg), "failed to encode config")
	case versionMode:
		printVersion(out)
	}
}

func loadProgram(path string) *program.Program {
	p, err := progfile.Load(path)
	checkf(err, "failed to load program")
	return p
}

func parseAddress(p *program.Program, s string) addr.Address {
	a, err := p.AddressFactory().ParseAddress(s)
	checkf(err, "invalid address")
	return a
}

func printInfo(w io.Writer, p *program.Program, jsonOut bool) error {
	if jsonOut {
		return writeInfoJSON(w, p)
	}
	return writeInfo(w, p)
}

func addBlock(p *program.Program, args AddBlock, defaults BlocksConfig) {
	length, err := strconv.ParseUint(args.Length, 0, 64)
	checkf(err, "invalid length %q", args.Length)
	typ, err := mem.ParseType(args.Type)
	checkf(err, "invalid block type")

	perms := args.Perms
	if perms == "" {
		perms = defaults.Perms
	}
	perm, err := mem.ParsePerm(perms)
	checkf(err, "invalid permissions")

	var src addr.Address
	if args.Source != "" {
		src = parseAddress(p, args.Source)
	}

	ok, msg := memcmd.AddMemoryBlock(p, args.Name, args.Comment, args.SourceName,
		parseAddress(p, args.Start), length,
		perm.Has(mem.Read), perm.Has(mem.Write), perm.Has(mem.Execute), args.Volatile,
		args.Fill, typ, src, !args.Uninitialized)
	if !ok {
		fatalf("failed to add block %q: %s", args.Name, msg)
	}
	log.ModCLI.InfoZ("block added").String("name", args.Name).End()
}

// writeBytes writes buf from a, in a single transaction.
func writeBytes(p *program.Program, a addr.Address, buf []byte) error {
	return p.WithTransaction("Write Bytes", func() error {
		for i, v := range buf {
			cur, err := a.Add(uint64(i))
			if err != nil {
				return err
			}
			if err := p.Memory().Write8(cur, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func printVersion(w io.Writer) {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Fprintf(w, "memmap %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
}
