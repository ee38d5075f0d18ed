package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"clusterops/internal/config"
	"clusterops/internal/logger"
	"clusterops/internal/ops"
	"clusterops/internal/redisx"
	"clusterops/internal/spool"
)

const version = "clusterops 0.1.0"

// Execute runs one action and returns the process exit code.
func Execute(args []string) int {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[clusterops] ")

	// Writes to a closed pipe (e.g. `clusterops source dups | head`) return
	// EPIPE instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	return run(args, os.Stdout)
}

type options struct {
	configPath string
	debug      bool
	dryRun     bool
	yes        bool
	table      bool
	noColor    bool
	version    bool
}

func newFlagSet(opts *options, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("clusterops", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Settings file (KEY=value env file, or .yaml/.yml)")
	fs.StringVar(&opts.configPath, "c", config.DefaultPath, "Settings file (shorthand)")
	fs.BoolVar(&opts.debug, "debug", false, "Log every command line before it runs")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print per-node commands without running them")
	fs.BoolVar(&opts.yes, "yes", false, "Confirm destructive actions (flush)")
	fs.BoolVar(&opts.table, "table", false, "Render keys, memory and dups reports as tables")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&opts.version, "version", false, "Show version info")
	fs.Usage = func() { printUsage(out) }
	return fs
}

// parseArgs accepts flags before, between and after the two positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func run(args []string, out io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, out)

	positional, err := parseArgs(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(positional) == 1 {
		switch positional[0] {
		case "help":
			printUsage(out)
			return 0
		case "version":
			opts.version = true
		}
	}
	if opts.version {
		fmt.Fprintln(out, version)
		return 0
	}
	if opts.noColor {
		color.NoColor = true
	}

	cl, action, err := parsePositional(positional)
	if err != nil {
		log.Printf("%v", err)
		printUsage(out)
		return 1
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	if opts.debug {
		cfg.Debug = true
	}
	codec, err := spool.ParseCodec(cfg.Dups.Compression)
	if err != nil {
		log.Printf("Config validation failed: %v", err)
		return 1
	}

	runID := newRunID()
	if err := logger.Init(logger.Options{
		Level: cfg.LogLevel(),
		File:  cfg.Log.File,
		RunID: runID,
	}); err != nil {
		log.Printf("Failed to initialize logging: %v", err)
		return 1
	}
	defer logger.Close()
	log.SetOutput(logger.Writer())
	if path := logger.GetLogFilePath(); path != "" {
		logger.Info("Log file: %s", path)
	}

	logger.Debug("Config loaded from %s", cfg.Path())
	logger.Debug("%s", cfg.Summary(cl))

	client, err := redisx.New(cfg.Endpoint(cl), cfg.ClientOptions())
	if err != nil {
		logger.Error("Failed to create client: %v", err)
		return 1
	}
	defer client.Close()

	runner := ops.NewRunner(client, cfg.Endpoint(cl), out, ops.Options{
		DryRun:           opts.dryRun,
		Confirmed:        opts.yes,
		Table:            opts.table,
		CommandTimeout:   cfg.Client.Timeout,
		DiscoveryTimeout: cfg.Client.DiscoveryTimeout,
		SpoolDir:         cfg.Dups.TempDir,
		Codec:            codec,
		RunID:            runID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx, action); err != nil {
		return errorToExitCode(cl, action, err)
	}
	return 0
}

func parsePositional(positional []string) (config.Cluster, ops.Action, error) {
	if len(positional) != 2 {
		return 0, 0, &config.UsageError{Msg: fmt.Sprintf("expected <source|target> <action>, got %d argument(s)", len(positional))}
	}
	cl, err := config.ParseCluster(positional[0])
	if err != nil {
		return 0, 0, err
	}
	action, err := ops.ParseAction(positional[1])
	if err != nil {
		return 0, 0, err
	}
	return cl, action, nil
}

// errorToExitCode logs err and maps it to an exit code. Every failure,
// including a partially failed run, exits 1.
func errorToExitCode(cl config.Cluster, action ops.Action, err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("%s %s interrupted", cl, action)
	case errors.Is(err, ops.ErrFlushNotConfirmed):
		logger.Error("%v", err)
	default:
		logger.Error("%s %s: %v", cl, action, err)
	}
	return 1
}

// newRunID returns a short identifier attached to log entries and spool
// directories of one invocation.
func newRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func printUsage(w io.Writer) {
	binary := filepath.Base(os.Args[0])
	fmt.Fprintf(w, `clusterops - Redis Cluster administration for migration source and target

Usage:
  %[1]s [options] <source|target> <action>

Actions:
  bgsave     Trigger a background save on every primary
  flush      Erase all keys on every primary (requires --yes)
  primaries  List primary node hosts
  replicas   List replica node hosts
  keys       Count keys per primary and in total
  memory     Sum used memory (MB) across primaries
  dups       Report keys present on more than one primary

Options:
  -c, --config FILE  Settings file (default %[2]s; .yaml/.yml for YAML)
  --debug            Log every command line before it runs
  --dry-run          Print per-node commands without running them
  --yes              Confirm destructive actions
  --table            Render reports as tables
  --no-color         Disable colored output
  --version          Show version info

Examples:
  %[1]s source primaries
  %[1]s -c target.env target keys --table
  %[1]s target flush --dry-run
`, binary, config.DefaultPath)
}
