package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/erazemk/garderoba/internal/client"
	"github.com/erazemk/garderoba/internal/config"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/session"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	level  slog.Leveler
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		level:  lr.level,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	cleanup := func() {}

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	logger := slog.New(&levelRouter{
		level:  lvl,
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

const usage = `Usage: garderoba [flags] <command> [args]

Commands:
  login                   sign in and remember the session
  logout                  forget the session and cached data
  whoami                  show the signed-in account
  items [list|add|delete|fav|refresh]
                          manage wardrobe items
  outfits [list|add|delete|fav|check]
                          manage saved outfits
  suggest                 generate an outfit for an occasion
  thumb <item-id>         write an item's thumbnail to a file
  watch                   keep caches fresh and serve metrics

Flags:
  -a, -api <url>          API base URL (default: $GARDEROBA_API_URL)
  -d, -db <path>          SQLite database path (default: $GARDEROBA_DB)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -v, -verbose            log debug messages
  -h, -help               show this help and exit
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("garderoba", flag.ContinueOnError)

	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "")
	fs.StringVar(&cfg.APIURL, "a", cfg.APIURL, "")

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")

	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "")

	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.BoolVar(&verbose, "v", false, "")

	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.run(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		report(err)
		a.Close()
		closeLog()
		os.Exit(1)
	}
}

// report prints a command failure in terms the user can act on.
func report(err error) {
	var verr *model.ValidationError
	var apiErr *client.APIError

	switch {
	case errors.Is(err, session.ErrNotAuthenticated), client.IsUnauthorized(err):
		fmt.Fprintln(os.Stderr, "Your session has expired, please log in again: garderoba login")
	case errors.As(err, &verr):
		fmt.Fprintf(os.Stderr, "Error: %s\n", verr)
	case errors.As(err, &apiErr):
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimSpace(apiErr.Message))
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
