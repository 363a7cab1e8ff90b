package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"memmap/log"
)

type mode byte

const (
	infoMode     mode = iota // Show spaces and blocks
	addBlockMode             // Add a block and show the result
	readMode                 // Dump bytes
	writeMode                // Write bytes and dump them
	checkMode                // Validate program descriptions
	graphMode                // Dump block structures as a graphviz graph
	configMode               // Show or save configuration
	versionMode              // Show memmap version
)

type (
	CLI struct {
		Info     Info      `cmd:"" help:"Show address spaces and memory blocks of a program."`
		AddBlock AddBlock  `cmd:"" help:"Add a memory block to a program and show the resulting map." name:"add-block"`
		Read     Read      `cmd:"" help:"Dump program bytes."`
		Write    Write     `cmd:"" help:"Write bytes in a transaction and dump them."`
		Check    Check     `cmd:"" help:"Validate program descriptions."`
		Graph    Graph     `cmd:"" help:"Write a graphviz graph of the memory blocks."`
		Config   ConfigCmd `cmd:"" help:"Show or save memmap configuration."`
		Version  Version   `cmd:"" help:"Show memmap version."`

		Log  logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Out  *outfile   `help:"Write output to file." placeholder:"FILE|stdout|stderr"`
		JSON bool       `name:"json" help:"Output JSON instead of text, for info and add-block."`

		mode mode
	}

	Info struct {
		Program string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`
	}

	AddBlock struct {
		Program string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`

		Name          string `name:"name" help:"Block name." required:""`
		Start         string `name:"start" help:"${addr_help}" required:""`
		Length        string `name:"length" help:"Block length, decimal or 0x prefixed." required:""`
		Type          string `name:"type" help:"Block type." enum:"default,bit-mapped,byte-mapped,overlay" default:"default"`
		Source        string `name:"source" help:"Source address of mapped and overlay blocks. ${addr_help}"`
		Fill          uint8  `name:"fill" help:"Initial value of the bytes of initialized blocks."`
		Perms         string `name:"perms" help:"Block permissions, as rwx. (default from config)"`
		Volatile      bool   `name:"volatile" help:"Mark block as volatile."`
		Uninitialized bool   `name:"uninitialized" help:"Do not allocate block bytes."`
		Comment       string `name:"comment" help:"Block comment."`
		SourceName    string `name:"source-name" help:"Name of the file the block comes from."`
	}

	Read struct {
		Program string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`
		Address string `arg:"" name:"address" help:"${addr_help}"`
		Count   int    `name:"count" short:"n" help:"Number of bytes to dump." default:"64"`
	}

	Write struct {
		Program string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`
		Address string `arg:"" name:"address" help:"${addr_help}"`
		Bytes   string `arg:"" name:"hexbytes" help:"Bytes to write, as an hexadecimal string."`
	}

	Check struct {
		Programs []string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`
	}

	Graph struct {
		Program string `arg:"" name:"program.toml" help:"${program_help}" type:"existingfile"`
	}

	ConfigCmd struct {
		Save bool `name:"save" help:"Write current configuration to the config directory."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"program_help": "TOML program description.",
	"addr_help":    "Address, as SPACE:OFFSET or OFFSET in the default space, hexadecimal.",
	"log_help":     "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("memmap"),
		kong.Description("Inspect and build memory maps of analyzed programs."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	// Only the command name matters, not its arguments.
	switch strings.Fields(ctx.Command())[0] {
	case "info":
		cfg.mode = infoMode
	case "add-block":
		cfg.mode = addBlockMode
	case "read":
		cfg.mode = readMode
	case "write":
		cfg.mode = writeMode
	case "check":
		cfg.mode = checkMode
	case "graph":
		cfg.mode = graphMode
	case "config":
		cfg.mode = configMode
	case "version":
		cfg.mode = versionMode
	default:
		fatalf("unexpected command %q", ctx.Command())
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}

	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm *logModMask) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	mask, err := enableLogModules(tok.Value.(string))
	if err != nil {
		return err
	}
	*lm = logModMask(mask)
	return nil
}

// enableLogModules enables debug logs for a comma-separated list of modules
// and returns the corresponding mask. "no" disables all logs.
func enableLogModules(list string) (log.ModuleMask, error) {
	nolog := false
	allLogs := false

	var mask log.ModuleMask
	for _, v := range strings.Split(list, ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return 0, fmt.Errorf("unknown log module %s", v)
			}
			mask |= mod.Mask()
		}
	}

	if nolog {
		if allLogs {
			return 0, fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if mask != 0 {
			return 0, fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return 0, nil
	}

	if allLogs {
		mask = log.ModuleMaskAll
	}

	log.EnableDebugModules(mask)
	return mask, nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
