// sheetsctl — терминальный клиент Sheets Console.
// Сессия хранится в YAML-файле пользователя, пароль вводится без эха.
//
//	sheetsctl login [--email EMAIL]
//	sheetsctl logout
//	sheetsctl whoami
//	sheetsctl list
//	sheetsctl show DATASET_ID [--filter COL=VALUE]... [--query TEXT]
//	sheetsctl export DATASET_ID --format csv|pdf [--output FILE]
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/config"
	"github.com/bigkaa/sheetsconsole/internal/directory"
	"github.com/bigkaa/sheetsconsole/internal/filter"
	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/session"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("sheetsctl", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(stderr)
	sessionFile := flags.String("session-file", "", "session file (default: user config dir)")
	verbose := flags.BoolP("verbose", "v", false, "debug logging to stderr")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sheetsctl [flags] <login|logout|whoami|list|show|export> [args]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}

	path := *sessionFile
	if path == "" {
		path, err = session.DefaultFilePath()
		if err != nil {
			fmt.Fprintf(stderr, "session file: %v\n", err)
			return 1
		}
	}

	api, err := apiclient.New(cfg.APIURL, cfg.APICACertPath, cfg.APITimeout, logger)
	if err != nil {
		fmt.Fprintf(stderr, "api client: %v\n", err)
		return 1
	}
	idp := identity.NewClient(identity.Config{
		KeycloakURL: cfg.KeycloakURL,
		Realm:       cfg.KeycloakRealm,
		ClientID:    cfg.KeycloakClientID,
	}, nil, logger)

	a := &app{
		store:     session.NewStore("sheetsctl", session.NewFileStorage(path), idp, logger),
		idp:       idp,
		api:       api,
		dir:       directory.New(api, nil, cfg.PlaceholderDataset, logger),
		engine:    filter.New(cfg.NotAvailable),
		exporter:  service.NewExportService(nil, nil, logger),
		validator: validation.New(),
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		readPassword: func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(stderr)
			return string(b), err
		},
		logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.store.Hydrate(ctx); err != nil {
		logger.Debug("Не удалось прочитать сессию", slog.String("error", err.Error()))
	}

	if err := a.dispatch(ctx, flags.Arg(0), flags.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "sheetsctl: %v\n", err)
		return 1
	}
	return 0
}
