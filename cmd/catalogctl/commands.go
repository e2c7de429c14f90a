package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/and161185/catalog-admin/internal/console"
	"github.com/and161185/catalog-admin/internal/metrics"
	"github.com/and161185/catalog-admin/internal/model"
	"github.com/and161185/catalog-admin/internal/service"
)

type cmdIO struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func newFlagSet(name string, cio cmdIO) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(cio.err)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// ---- session ----

func cmdLogin(ctx context.Context, a *app, cio cmdIO, args []string) error {
	fs := newFlagSet("login", cio)
	email := fs.StringP("email", "e", "", "account email")
	pwFile := fs.String("password-file", "", "read the password from file ('-' or empty prompts)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%w: login needs --email", errUsage)
	}

	password, err := readPassword(cio, *pwFile)
	if err != nil {
		return err
	}
	if err := a.sessions.SignIn(ctx, *email, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintf(cio.out, "Login successful. Signed in as %s\n", a.sessions.Session().Email())
	return nil
}

func readPassword(cio cmdIO, file string) (string, error) {
	if file != "" && file != "-" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}

	if f, ok := cio.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cio.err, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cio.err)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	// piped input: first line
	line, err := bufio.NewReader(cio.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdLogout(ctx context.Context, a *app, cio cmdIO) error {
	if _, err := a.sessions.WaitReady(ctx); err != nil {
		return err
	}
	if err := a.sessions.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cio.out, "Signed out.")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, cio cmdIO) error {
	s, err := a.sessions.WaitReady(ctx)
	if err != nil {
		return err
	}
	if s.State != service.StateAuthenticated {
		fmt.Fprintln(cio.out, "not signed in")
		return nil
	}
	fmt.Fprintln(cio.out, s.Email())
	return nil
}

// ---- catalog ----

func cmdList(ctx context.Context, a *app, cio cmdIO, args []string) error {
	fs := newFlagSet("list", cio)
	search := fs.StringP("search", "s", "", "filter by title")
	page := fs.IntP("page", "p", model.FirstPage, "page number")
	size := fs.Int("size", a.cfg.Catalog.PageSize, "page size")
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.sessions.RequireAuth(ctx); err != nil {
		return err
	}

	q := model.NewSearchQuery().WithTerm(*search).WithPage(*page, *size)
	result, err := a.catalog.SetQuery(ctx, q)
	if err != nil {
		return err
	}
	return console.RenderPage(cio.out, result)
}

func cmdShow(ctx context.Context, a *app, cio cmdIO, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: show <id>", errUsage)
	}
	actx, err := a.authorized(ctx)
	if err != nil {
		return err
	}
	p, err := a.repo.Get(actx, args[0])
	if err != nil {
		return err
	}
	return console.RenderProduct(cio.out, p)
}

// draftFlags binds the editable product fields.
type draftFlags struct {
	fs          *pflag.FlagSet
	title       *string
	price       *string
	description *string
	image       *string
	category    *string
}

func bindDraftFlags(fs *pflag.FlagSet) draftFlags {
	return draftFlags{
		fs:          fs,
		title:       fs.StringP("title", "t", "", "product title"),
		price:       fs.String("price", "", "price, e.g. 25000000"),
		description: fs.StringP("description", "d", "", "description (HTML allowed)"),
		image:       fs.String("image", "", "image URL"),
		category:    fs.String("category", "", "category"),
	}
}

// apply copies flags that were given on the command line into d.
func (f draftFlags) apply(d *model.MutationDraft) error {
	if f.fs.Changed("title") {
		d.Title = *f.title
	}
	if f.fs.Changed("price") {
		p, err := decimal.NewFromString(strings.TrimSpace(*f.price))
		if err != nil {
			return fmt.Errorf("%w: --price %q is not a number", errUsage, *f.price)
		}
		d.SetPrice(p)
	}
	if f.fs.Changed("description") {
		d.Description = *f.description
	}
	if f.fs.Changed("image") {
		d.ImageURL = *f.image
	}
	if f.fs.Changed("category") {
		d.Category = *f.category
	}
	return nil
}

func cmdCreate(ctx context.Context, a *app, cio cmdIO, args []string) error {
	fs := newFlagSet("create", cio)
	flags := bindDraftFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if _, err := a.sessions.RequireAuth(ctx); err != nil {
		return err
	}

	d := a.catalog.BeginCreate()
	if err := flags.apply(&d); err != nil {
		return err
	}
	if err := a.catalog.Submit(ctx, d); err != nil {
		return err
	}
	fmt.Fprintln(cio.out, "Product created.")
	return console.RenderPage(cio.out, a.catalog.Page())
}

func cmdEdit(ctx context.Context, a *app, cio cmdIO, args []string) error {
	fs := newFlagSet("edit", cio)
	flags := bindDraftFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: edit <id> [flags]", errUsage)
	}
	if _, err := a.sessions.RequireAuth(ctx); err != nil {
		return err
	}

	d, err := a.catalog.BeginEdit(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := flags.apply(&d); err != nil {
		return err
	}
	if err := a.catalog.Submit(ctx, d); err != nil {
		return err
	}
	fmt.Fprintln(cio.out, "Product updated.")
	return console.RenderPage(cio.out, a.catalog.Page())
}

// ---- console ----

func cmdConsole(ctx context.Context, a *app, cio cmdIO) error {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metrics.Handler(a.registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics listener", zap.String("addr", addr), zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		a.log.Info("serving metrics", zap.String("addr", addr))
	}

	return console.New(a.sessions, a.catalog, cio.out, a.log.Named("console")).Run(ctx, cio.in)
}
