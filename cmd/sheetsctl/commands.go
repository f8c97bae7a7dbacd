package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bigkaa/sheetsconsole/internal/apiclient"
	"github.com/bigkaa/sheetsconsole/internal/directory"
	"github.com/bigkaa/sheetsconsole/internal/domain/model"
	"github.com/bigkaa/sheetsconsole/internal/export"
	"github.com/bigkaa/sheetsconsole/internal/filter"
	"github.com/bigkaa/sheetsconsole/internal/identity"
	"github.com/bigkaa/sheetsconsole/internal/service"
	"github.com/bigkaa/sheetsconsole/internal/session"
	"github.com/bigkaa/sheetsconsole/internal/validation"
)

// errNotLoggedIn — команда требует входа.
var errNotLoggedIn = errors.New("not logged in, run: sheetsctl login")

// signInProvider — вход и обновление токенов у Keycloak.
type signInProvider interface {
	SignIn(ctx context.Context, email, password string) (*identity.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenResponse, error)
}

// remoteAPI — операции remote API, нужные клиенту.
type remoteAPI interface {
	Login(ctx context.Context, idToken string) (*model.User, error)
}

// exporter формирует документ выгрузки.
type exporter interface {
	Export(ctx context.Context, req service.ExportRequest) (export.Document, error)
}

type app struct {
	store     *session.Store
	idp       signInProvider
	api       remoteAPI
	dir       *directory.Directory
	engine    *filter.Engine
	exporter  exporter
	validator *validation.Validator

	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	readPassword func() (string, error)
	logger       *slog.Logger
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "list":
		return a.list(ctx)
	case "show":
		return a.show(ctx, args)
	case "export":
		return a.export(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	flags := a.flagSet("login")
	email := flags.String("email", "", "account email")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Fprint(a.stderr, "Email: ")
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read email: %w", err)
		}
		*email = line
	}
	fmt.Fprint(a.stderr, "Password: ")
	password, err := a.readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	form := validation.LoginForm{Email: strings.TrimSpace(*email), Password: password}
	if err := a.validator.Check(form); err != nil {
		return errors.New(validation.MessageOf(err))
	}

	tokens, err := a.idp.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		a.logger.Debug("Неудачный вход",
			slog.String("code", identity.CodeOf(err)),
			slog.String("error", err.Error()),
		)
		return errors.New(identity.LoginMessage(err))
	}
	profile, err := a.api.Login(ctx, tokens.IDToken)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if err := a.store.Login(ctx, tokens.IDToken, tokens.RefreshToken, *profile); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Fprintf(a.stdout, "Logged in as %s (%s)\n", profile.Email, profile.Role)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if !a.store.Authenticated() {
		fmt.Fprintln(a.stdout, "Not logged in")
		return nil
	}
	if err := a.store.Logout(ctx); err != nil {
		// Локальная сессия уже очищена
		a.logger.Warn("Keycloak не завершил сессию", slog.String("error", err.Error()))
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func (a *app) whoami() error {
	if !a.store.Authenticated() {
		return errNotLoggedIn
	}
	p := a.store.Profile()

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", p.Role)
	fmt.Fprintf(tw, "Department:\t%s\n", p.Department)
	return tw.Flush()
}

func (a *app) list(ctx context.Context) error {
	var groups []directory.Group
	err := a.withToken(ctx, func(token string) error {
		var err error
		groups, err = a.dir.List(ctx, token)
		return err
	})
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(a.stdout, "No datasets")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPARTMENT\tID\tDATASET")
	for _, g := range groups {
		for _, ds := range g.Datasets {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Department, ds.ID, ds.DisplayName())
		}
	}
	return tw.Flush()
}

// query — выборка строк разблокированного набора.
type query struct {
	password string
	filters  []string
	text     string
}

func (q *query) bind(flags *pflag.FlagSet) {
	flags.StringVar(&q.password, "password", "", "dataset password (prompted when empty)")
	flags.StringArrayVar(&q.filters, "filter", nil, "column filter COL=VALUE, repeatable")
	flags.StringVarP(&q.text, "query", "q", "", "free-text search")
}

func (a *app) show(ctx context.Context, args []string) error {
	flags := a.flagSet("show")
	var q query
	q.bind(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: sheetsctl show DATASET_ID [--filter COL=VALUE]... [--query TEXT]")
	}

	snap, rows, err := a.unlocked(ctx, flags.Arg(0), q)
	if err != nil {
		return err
	}
	return a.printRows(snap.Columns, rows)
}

func (a *app) export(ctx context.Context, args []string) error {
	flags := a.flagSet("export")
	var q query
	q.bind(flags)
	format := flags.String("format", string(export.FormatCSV), "csv or pdf")
	output := flags.StringP("output", "o", "", "output file (default: generated name)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("usage: sheetsctl export DATASET_ID --format csv|pdf [--output FILE]")
	}
	f := export.Format(strings.ToLower(*format))
	if f != export.FormatCSV && f != export.FormatPDF {
		return fmt.Errorf("unsupported format %q", *format)
	}

	snap, rows, err := a.unlocked(ctx, flags.Arg(0), q)
	if err != nil {
		return err
	}
	doc, err := a.exporter.Export(ctx, service.ExportRequest{
		Format:  f,
		Dataset: *snap.Selected,
		Rows:    rows,
		Columns: snap.Columns,
		User:    a.store.Profile(),
	})
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = doc.FileName
	}
	if err := os.WriteFile(path, doc.Body, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "%d rows written to %s\n", len(rows), path)
	return nil
}

// unlocked загружает каталог, разблокирует набор и применяет фильтры.
func (a *app) unlocked(ctx context.Context, id string, q query) (directory.Snapshot, []model.Row, error) {
	filters, err := parseFilters(q.filters)
	if err != nil {
		return directory.Snapshot{}, nil, err
	}
	if !a.store.Authenticated() {
		return directory.Snapshot{}, nil, errNotLoggedIn
	}

	if q.password == "" {
		fmt.Fprint(a.stderr, "Dataset password: ")
		if q.password, err = a.readPassword(); err != nil {
			return directory.Snapshot{}, nil, fmt.Errorf("read password: %w", err)
		}
	}

	err = a.withToken(ctx, func(token string) error {
		if _, err := a.dir.List(ctx, token); err != nil {
			return err
		}
		return a.dir.Unlock(ctx, token, id, q.password)
	})
	switch {
	case errors.Is(err, directory.ErrIncorrectPassword):
		return directory.Snapshot{}, nil, errors.New("incorrect password")
	case errors.Is(err, directory.ErrUnknownDataset):
		return directory.Snapshot{}, nil, fmt.Errorf("dataset %q not found", id)
	case err != nil:
		return directory.Snapshot{}, nil, err
	}

	snap := a.dir.Snapshot()
	for col := range filters {
		if !slices.Contains(snap.Columns, col) {
			return directory.Snapshot{}, nil, fmt.Errorf("unknown column %q", col)
		}
	}
	return snap, a.engine.Apply(snap.Rows, filters, q.text), nil
}

// withToken выполняет fn с токеном сессии. Ответ 401 обновляет токен
// по refresh token и повторяет fn один раз.
func (a *app) withToken(ctx context.Context, fn func(token string) error) error {
	if !a.store.Authenticated() {
		return errNotLoggedIn
	}
	err := fn(a.store.Token())
	if !apiclient.IsStatus(err, http.StatusUnauthorized) || a.store.RefreshToken() == "" {
		return err
	}

	tokens, refreshErr := a.idp.Refresh(ctx, a.store.RefreshToken())
	if refreshErr != nil {
		a.logger.Debug("Не удалось обновить токен", slog.String("error", refreshErr.Error()))
		return errors.New("session expired, run: sheetsctl login")
	}
	if err := a.store.SetToken(ctx, tokens.IDToken, tokens.RefreshToken); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return fn(a.store.Token())
}

func (a *app) printRows(columns []string, rows []model.Row) error {
	if len(rows) == 0 {
		fmt.Fprintln(a.stdout, "No rows")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = a.engine.Normalize(row, col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func (a *app) flagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	return flags
}

// parseFilters разбирает значения --filter вида COL=VALUE.
func parseFilters(raw []string) (map[string]string, error) {
	filters := make(map[string]string, len(raw))
	for _, f := range raw {
		col, value, ok := strings.Cut(f, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q, expected COL=VALUE", f)
		}
		filters[col] = value
	}
	return filters, nil
}
