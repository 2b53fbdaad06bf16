// Command ct is the command-line client for civictrack.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/civictrack/internal/config"
	"github.com/and161185/civictrack/internal/errs"
	"github.com/and161185/civictrack/internal/gateway"
	"github.com/and161185/civictrack/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, `ct - civictrack client
Usage:
  ct [-api URL] [-store file|redis|postgres|memory] [-dir DIR] [-log-level LEVEL] <cmd> [args]

Commands:
  version
  register  -name <name> -email <email> -password <pw> [-document <id>]
  login     -email <email> -password <pw|->          (password "-" reads stdin)
  logout
  whoami
  passwd    -email <email> -document <id> -new <pw>
  submit    -category <c> -description <d> -phone <p> -city <c> -neighborhood <n> -address <a>
            [-department <d>] [-image <file>]
  list                                              (all requests)
  mine                                              (requests you submitted)
  advance   -id <request id>
  progress  -id <request id>
  rm        -id <request id>

Every flag can also be set through CT_* environment variables or a .env file.
`)
}

// main loads configuration and dispatches the subcommand.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// global flags override the environment
	fs := flag.NewFlagSet("ct", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	api := fs.String("api", cfg.APIBaseURL, "backend base URL")
	store := fs.String("store", cfg.Store, "session store backend")
	dir := fs.String("dir", cfg.Dir, "config dir for the file store and device key")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.APIBaseURL, cfg.Store, cfg.Dir, cfg.LogLevel = *api, *store, *dir, *logLevel
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}
	cmd := fs.Arg(0)
	if cmd == "version" {
		fmt.Fprintf(stdout, "ct %s (%s)\n", version, buildDate)
		return 0
	}

	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	shutdown := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "ct",
		Version:     version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Debug("telemetry shutdown", zap.Error(err))
		}
	}()

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(stderr, "open session store:", err)
		return 1
	}
	defer closeStore()

	a := newApp(cfg, st, log, stdin, stdout)
	a.sess.Restore(ctx)

	ctx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout)
	defer cancel()

	if err := a.dispatch(ctx, cmd, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage(stderr)
			return 2
		}
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

// describe turns an error into a user-facing line.
func describe(err error) string {
	var ae *gateway.APIError
	msg := err.Error()
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated):
		return "not signed in; run: ct login -email <email> -password <pw>"
	case errors.Is(err, errs.ErrLoginInProgress):
		return "a login is already in progress"
	case errors.Is(err, errs.ErrNetwork):
		return "backend unreachable: " + msg
	case errors.Is(err, errs.ErrRateLimited):
		return "too many attempts, try again later"
	case errors.Is(err, errs.ErrAuthentication):
		return "sign in failed: " + msg
	case errors.Is(err, errs.ErrAdvanceInProgress):
		return "this request is already being updated"
	case errors.Is(err, errs.ErrUpdate):
		return "status update rejected: " + msg
	case errors.Is(err, errs.ErrValidation):
		return "invalid input: " + msg
	case errors.Is(err, errs.ErrNotFound):
		return "not found: " + msg
	}
	return msg
}
