// Package main is the entry point for fdbridge, a console front end for the
// Flex command-line debugger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/fdbridge/internal/config"
	"github.com/dshills/fdbridge/internal/console"
	"github.com/dshills/fdbridge/internal/hook"
	"github.com/dshills/fdbridge/internal/integration/debug"
	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
	"github.com/dshills/fdbridge/internal/integration/debug/value"
	"github.com/dshills/fdbridge/internal/integration/process"
	"github.com/dshills/fdbridge/internal/log"
	"github.com/dshills/fdbridge/internal/project/index"
	"github.com/dshills/fdbridge/internal/project/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130

	// breakpointsFile holds the breakpoints of the working directory.
	breakpointsFile = ".fdbridge/breakpoints.json"

	shutdownTimeout = 3 * time.Second
)

// options are the command-line settings. Empty values leave the
// configuration untouched.
type options struct {
	ConfigPath string
	FDBPath    string
	Player     string
	URL        string
	Sources    stringList
	LogFile    string
	Debug      bool
	NoColor    bool
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	level, _ := cfg.LogLevel()
	logger, err := log.New(log.Options{Level: level, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer logger.Close()
	if cfg.Source != "" {
		logger.Debug("configuration loaded", "file", cfg.Source)
	}

	mode, _ := console.ParseMode(cfg.Console.Color)
	out := console.New(os.Stdout, mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		out.Errorf("Error: %v", err)
		return exitError
	}
	defer idx.Close()

	app, err := newApp(cfg, logger, out, idx)
	if err != nil {
		out.Errorf("Error: %v", err)
		return exitError
	}
	defer app.shutdown()

	// Handle signals: the first interrupt pauses a running player, a
	// second one, or any interrupt while halted, ends the session.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	interrupted := make(chan struct{})
	go app.handleSignals(signals, interrupted)

	out.Infof("Waiting for the player to connect...")
	if err := app.session.Start(ctx); err != nil {
		select {
		case <-interrupted:
			return exitInterrupted
		default:
		}
		out.Errorf("Error: %v", err)
		return exitError
	}

	if err := newTerm(app).Run(ctx); err != nil {
		out.Errorf("Error: %v", err)
		return exitError
	}
	select {
	case <-interrupted:
		return exitInterrupted
	default:
	}
	if err := app.session.Err(); err != nil && !errors.Is(err, debug.ErrSessionTerminated) {
		out.Errorf("Session ended: %v", err)
		return exitError
	}
	return exitOK
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.FDBPath, "fdb", "", "Path to the fdb executable")
	flag.StringVar(&opts.Player, "player", "", "Flash player executable")
	flag.StringVar(&opts.URL, "url", "", "SWF or page to open once fdb listens")
	flag.Var(&opts.Sources, "src", "Source root (repeatable)")
	flag.StringVar(&opts.LogFile, "log", "", "Write the log to this file")
	flag.BoolVar(&opts.Debug, "debug", false, "Log the fdb conversation")
	flag.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fdbridge - console debugger for Flash and AIR applications\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fdbridge [options] [swf-or-url]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fdbridge bin/Main.swf                  Debug a SWF with the default player\n")
		fmt.Fprintf(os.Stderr, "  fdbridge -src src -src lib/src app.swf Index two source roots\n")
		fmt.Fprintf(os.Stderr, "  fdbridge -fdb ~/sdk/bin/fdb -debug     Use a specific SDK and log fdb traffic\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(exitOK)
	}

	if showVersion {
		fmt.Printf("fdbridge %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(exitOK)
	}

	if opts.URL == "" && flag.NArg() > 0 {
		opts.URL = flag.Arg(0)
	}
	return opts
}

// loadConfig reads the configuration and applies the command line on top.
func loadConfig(opts options) (*config.Config, error) {
	var loadOpts []config.Option
	if opts.ConfigPath != "" {
		loadOpts = append(loadOpts, config.WithFile(opts.ConfigPath))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.FDBPath != "" {
		cfg.FDB.Path = opts.FDBPath
	}
	if opts.Player != "" {
		cfg.Player.Command = opts.Player
	}
	if opts.URL != "" {
		cfg.Player.URL = opts.URL
	}
	if len(opts.Sources) > 0 {
		cfg.Project.SourceRoots = append([]string(nil), opts.Sources...)
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	if opts.NoColor {
		cfg.Console.Color = string(console.ModeNever)
	}
}

// openIndex indexes the source roots and keeps the index current while
// ctx lives. Missing roots are logged and skipped.
func openIndex(ctx context.Context, cfg *config.Config, logger *log.Logger) (*index.FileIndex, error) {
	idx := index.NewFileIndex()
	var roots []string
	for _, root := range cfg.Project.SourceRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		if err := idx.AddRoot(abs); err != nil {
			logger.Warn("source root skipped", "root", abs, "error", err)
			continue
		}
		roots = append(roots, abs)
	}
	logger.Debug("sources indexed", "roots", len(roots), "files", idx.Count())

	if !cfg.Project.Watch || len(roots) == 0 {
		return idx, nil
	}
	w, err := watcher.New(watcher.WithLogger(logger.Logger))
	if err != nil {
		logger.Warn("source watcher unavailable", "error", err)
		return idx, nil
	}
	for _, root := range roots {
		if err := w.WatchRecursive(root); err != nil {
			logger.Warn("cannot watch source root", "root", root, "error", err)
		}
	}
	go func() {
		watcher.Sync(ctx, w, idx)
		_ = w.Close()
	}()
	return idx, nil
}

// app holds what one run of the debugger owns.
type app struct {
	cfg         *config.Config
	logger      *log.Logger
	out         *console.Console
	supervisor  *process.Supervisor
	fdbProc     *process.Process
	hooks       *hook.Hooks
	session     *debug.Session
	reporter    *consoleReporter
	store       *debug.BreakpointStore
	index       *index.FileIndex
	interruptAt time.Time
}

func newApp(cfg *config.Config, logger *log.Logger, out *console.Console, idx *index.FileIndex) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: out, index: idx}

	charset, err := fdb.LookupCharset(cfg.FDB.Charset)
	if err != nil {
		return nil, err
	}

	var sessionConsole debug.Console = out
	a.reporter = &consoleReporter{out: out}
	var reporter debug.Reporter = a.reporter
	if cfg.Hooks.Script != "" {
		h, err := hook.Load(cfg.Hooks.Script, hook.WithLogger(logger.Logger))
		if err != nil {
			return nil, err
		}
		a.hooks = h
		sessionConsole = h.Console(sessionConsole)
		reporter = h.Reporter(reporter)
	}

	a.supervisor = process.NewSupervisor(
		process.WithLogger(logger.Logger),
		process.WithProcessExitCallback(a.processExited),
	)
	a.fdbProc, err = a.supervisor.StartFDB(cfg.FDB.Path, cfg.FDB.Args...)
	if err != nil {
		a.shutdown()
		return nil, err
	}

	sessionOpts := []debug.Option{
		debug.WithLogger(logger.Logger),
		debug.WithConsole(sessionConsole),
		debug.WithReporter(reporter),
		debug.WithScope(debug.ProjectScope{Files: idx}),
		debug.WithFinder(idx),
		debug.WithFileExists(index.Exists),
		debug.WithValueSettings(valueSettings(cfg)),
		debug.WithCharset(charset),
		debug.WithIdlePoll(cfg.FDB.IdlePoll.D()),
		debug.WithFilterSWF(cfg.Session.FilterSWFMessages),
	}
	if cfg.Player.Command != "" || cfg.Player.URL != "" {
		sessionOpts = append(sessionOpts, debug.WithPlayerLauncher(&process.PlayerLauncher{
			Supervisor: a.supervisor,
			Command:    cfg.Player.Command,
			Args:       cfg.Player.Args,
			URL:        cfg.Player.URL,
		}))
	}
	a.session = debug.NewSession(a.fdbProc, sessionOpts...)

	a.store = debug.NewBreakpointStore()
	a.store.SetPersistPath(breakpointsFile)
	if err := a.store.Load(); err != nil {
		logger.Warn("saved breakpoints ignored", "file", breakpointsFile, "error", err)
	}
	if err := a.store.SyncToSession(a.session); err != nil {
		a.shutdown()
		return nil, err
	}
	return a, nil
}

// valueSettings derives how values are decoded from the SDK settings.
func valueSettings(cfg *config.Config) value.Settings {
	base := value.Settings{
		MaxLength:    cfg.Value.MaxLength,
		PendingDelay: cfg.Value.PendingDelay.D(),
		XMLDelay:     cfg.Value.XMLDelay.D(),
	}
	return debug.ValueSettings(sdkVersion(cfg.Session), cfg.Session.IDEMode, base)
}

// sdkVersion returns the version string the value settings key on. AIR
// SDKs are told apart by their name.
func sdkVersion(s config.SessionConfig) string {
	if strings.HasPrefix(s.SDKName, "AIR SDK") {
		return strings.TrimSpace(s.SDKName + " " + s.SDKVersion)
	}
	return s.SDKVersion
}

// handleSignals pauses on the first interrupt and ends the session on a
// second interrupt within two seconds, on any interrupt while the player
// is halted, and on SIGTERM. It returns once the supervisor shuts down.
func (a *app) handleSignals(signals <-chan os.Signal, interrupted chan<- struct{}) {
	for {
		var sig os.Signal
		select {
		case sig = <-signals:
		case <-a.supervisor.ShutdownChan():
			return
		}
		if sig == os.Interrupt && a.session.State() == debug.StateRunning &&
			time.Since(a.interruptAt) > 2*time.Second {
			a.interruptAt = time.Now()
			if err := a.session.Pause(); err == nil {
				continue
			}
		}
		close(interrupted)
		a.logger.Info("interrupted", "signal", sig.String())
		_ = a.session.Close()
		return
	}
}

// processExited reports a player or fdb that ends while the debugger is
// still up. Exits caused by shutdown are only logged.
func (a *app) processExited(p *process.Process) {
	a.logger.Info("process exited", "name", p.Name, "code", p.ExitCode(),
		"runtime", p.Runtime().Round(time.Millisecond), "error", p.ExitError())
	if a.supervisor.IsShuttingDown() {
		return
	}
	switch p.Name {
	case process.PlayerName:
		a.out.Infof("Player exited with code %d after %s", p.ExitCode(), p.Runtime().Round(time.Second))
	case process.FDBName:
		if err := p.ExitError(); err != nil {
			a.out.Errorf("fdb exited: %v", err)
		}
	}
}

// shutdown saves breakpoints and stops every subprocess. It may run more
// than once.
func (a *app) shutdown() {
	if a.session != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.session.Quit(ctx)
		cancel()
		_ = a.session.Close()
	}
	if a.store != nil {
		if err := a.store.Save(); err != nil {
			a.logger.Warn("cannot save breakpoints", "error", err)
		}
	}
	if a.fdbProc != nil {
		_ = a.fdbProc.Close()
	}
	if a.supervisor != nil {
		a.supervisor.Shutdown(shutdownTimeout)
	}
	if a.hooks != nil {
		_ = a.hooks.Close()
	}
}
