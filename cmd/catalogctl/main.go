// Command catalogctl administers the product catalog: sign in, browse, create and edit products.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/and161185/catalog-admin/internal/config"
	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/logger"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usageText = `catalogctl - product catalog administration

Usage:
  catalogctl [--config file] [--log-level level] <command> [flags]

Commands:
  version
  login    --email <email> [--password-file file]
  logout
  whoami
  list     [--search term] [--page n] [--size n]
  show     <id>
  create   --title t --price p [--description d] [--image url] [--category c]
  edit     <id> [--title t] [--price p] [--description d] [--image url] [--category c]
  console  interactive session (serves /metrics when metrics.addr is set)
`

// errUsage marks command-line mistakes; main exits with status 2 for them.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fail(err)
	}
}

// run parses global flags, wires the app and dispatches one subcommand.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("catalogctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.Usage = func() { fmt.Fprint(stderr, usageText) }
	cfgPath := fs.StringP("config", "c", "", "config file (default ./catalogctl.yaml or the config dir)")
	logLevel := fs.String("log-level", "", "override log.level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errUsage
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "catalogctl %s (%s)\n", version, buildDate)
		return nil
	}
	if cmd == "help" {
		fs.Usage()
		return nil
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	cio := cmdIO{in: stdin, out: stdout, err: stderr}
	switch cmd {
	case "login":
		return cmdLogin(ctx, a, cio, cmdArgs)
	case "logout":
		return cmdLogout(ctx, a, cio)
	case "whoami":
		return cmdWhoami(ctx, a, cio)
	case "list":
		return cmdList(ctx, a, cio, cmdArgs)
	case "show":
		return cmdShow(ctx, a, cio, cmdArgs)
	case "create":
		return cmdCreate(ctx, a, cio, cmdArgs)
	case "edit":
		return cmdEdit(ctx, a, cio, cmdArgs)
	case "console":
		return cmdConsole(ctx, a, cio)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func fail(err error) {
	var ve *errs.ValidationError
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	case errors.Is(err, errs.ErrNoSession):
		fmt.Fprintln(os.Stderr, "not signed in (run: catalogctl login --email <email>)")
	case errors.As(err, &ve):
		fmt.Fprintf(os.Stderr, "invalid %s: %s\n", ve.Field, ve.Reason)
	default:
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
