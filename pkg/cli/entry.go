package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/funvibe/monc/internal/backend"
	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/logger"
	"github.com/funvibe/monc/internal/pipeline"
)

// Command names
const (
	cmdRun   = "run"
	cmdDis   = "dis"
	cmdStore = "store"
	cmdHelp  = "help"
)

var errUsage = errors.New("usage error")

// env is the process environment a command runs in
type env struct {
	ctx    context.Context
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Main runs the monc command line and returns the process exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	e := &env{ctx: context.Background(), stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case cmdRun:
		err = e.handleRun(args[1:])
	case cmdDis:
		err = e.handleDis(args[1:])
	case cmdStore:
		err = e.handleStore(args[1:])
	case cmdHelp, "-h", "-help", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: monc <command> [flags] [arguments]

Commands:
  run [flags] module... [-- args]   link modules and run the entry function
  dis [flags] module...             print the listing of IL modules
  store put <name> <file>           add a module to the store
  store get <name> <file>           write a stored module to a file
  store ls                          list stored modules
  store rm <name>                   delete a stored module
  help                              show this message

Modules are IL bundle files (`+config.ModuleFileExt+`) or `+config.StoreModulePrefix+`name references
to the module store. Run "monc <command> -h" for command flags.
`)
}

// stringList collects a repeatable string flag
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// commonFlags are shared by every command that touches modules
type commonFlags struct {
	configPath string
	storePath  string
	verbose    bool
	noColor    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "project config file (monc.yaml or monc.toml)")
	fs.StringVar(&c.storePath, "store", "", "module store database")
	fs.BoolVar(&c.verbose, "v", false, "enable debug logging")
	fs.BoolVar(&c.noColor, "no-color", false, "disable colored log output")
}

// loadConfig reads the explicit config, or the nearest one above the
// working directory, or falls back to defaults
func (c *commonFlags) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.storePath != "" {
		abs, err := filepath.Abs(c.storePath)
		if err != nil {
			return nil, err
		}
		cfg.Store = abs
	}
	return cfg, nil
}

func (e *env) initLogging(debug, noColor bool) {
	if f, ok := e.stderr.(*os.File); ok && f == os.Stderr {
		logger.Init(debug, noColor)
		return
	}
	log.SetDefault(logger.New(e.stderr, debug, true))
}

func (e *env) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// moduleRefs makes command-line module paths absolute so they do not
// resolve against the config directory
func moduleRefs(args []string) ([]string, error) {
	refs := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, config.StoreModulePrefix) {
			refs = append(refs, a)
			continue
		}
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, err
		}
		refs = append(refs, abs)
	}
	return refs, nil
}

// splitArgs separates module arguments from program arguments after "--"
func splitArgs(args []string) (modules, program []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

func parseProgramArgs(args []string) ([]int32, error) {
	out := make([]int32, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("program argument %q is not a 32-bit integer", a)
		}
		out = append(out, int32(v))
	}
	return out, nil
}

func (e *env) handleRun(args []string) error {
	fs := e.newFlagSet(cmdRun)
	var (
		common         commonFlags
		breakpoints    stringList
		entry          = fs.String("entry", "", "exported function to call")
		debug          = fs.Bool("debug", false, "run under the interactive debugger")
		maxCycles      = fs.Int("max-cycles", -1, "abort after this many VM cycles (0 disables)")
		maxDepth       = fs.Int("max-call-depth", 0, "bound the VM call stack")
		allowUndefined = fs.Bool("allow-undefined", false, "link even when callees are missing")
		printResult    = fs.Bool("print-result", false, "print the entry function's result")
	)
	common.register(fs)
	fs.Var(&breakpoints, "break", "set a breakpoint at [file:]line (repeatable)")

	flagArgs, programArgs := splitArgs(args)
	if err := parseFlags(fs, flagArgs); err != nil {
		return err
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	e.initLogging(common.verbose, common.noColor || cfg.NoColor)

	if fs.NArg() > 0 {
		if cfg.Modules, err = moduleRefs(fs.Args()); err != nil {
			return err
		}
	}
	if programArgs != nil {
		if cfg.Args, err = parseProgramArgs(programArgs); err != nil {
			return err
		}
	}
	if *entry != "" {
		cfg.Entry = *entry
	}
	if *maxCycles >= 0 {
		cfg.MaxCycles = *maxCycles
	}
	if *maxDepth > 0 {
		cfg.MaxCallDepth = *maxDepth
	}
	cfg.AllowUndefined = cfg.AllowUndefined || *allowUndefined
	cfg.Debug = cfg.Debug || *debug
	cfg.Breakpoints = append(cfg.Breakpoints, breakpoints...)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := e.newContext(cfg)
	defer ctx.Close()
	ctx = pipeline.New(
		pipeline.LoadProcessor{},
		pipeline.LinkProcessor{},
		backend.NewExecutionProcessor(backend.NewVM(cfg.Debug)),
	).Run(ctx)
	if err := e.reportErrors(ctx); err != nil {
		return err
	}
	if *printResult {
		fmt.Fprintf(e.stdout, "%d\n", ctx.Result)
	}
	return nil
}

func (e *env) handleDis(args []string) error {
	fs := e.newFlagSet(cmdDis)
	var common commonFlags
	common.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	e.initLogging(common.verbose, common.noColor || cfg.NoColor)
	if fs.NArg() > 0 {
		if cfg.Modules, err = moduleRefs(fs.Args()); err != nil {
			return err
		}
	}

	ctx := e.newContext(cfg)
	defer ctx.Close()
	ctx = pipeline.New(
		pipeline.LoadProcessor{},
		backend.NewExecutionProcessor(backend.NewListing()),
	).Run(ctx)
	return e.reportErrors(ctx)
}

func (e *env) newContext(cfg *config.Config) *pipeline.PipelineContext {
	ctx := pipeline.NewContext(e.ctx, cfg)
	ctx.Input = e.stdin
	ctx.Output = e.stdout
	ctx.Logger = log.Default()
	return ctx
}

var errProcessing = errors.New("processing failed")

func (e *env) reportErrors(ctx *pipeline.PipelineContext) error {
	if !ctx.Failed() {
		return nil
	}
	fmt.Fprintln(e.stderr, "Processing failed with errors:")
	for _, err := range ctx.Errors {
		fmt.Fprintf(e.stderr, "- %s\n", err.Error())
	}
	return errProcessing
}
