package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/model"
	"github.com/and161185/catalog-admin/internal/service"
)

// Auth is the session surface the console drives.
type Auth interface {
	Session() service.Session
	Subscribe(fn func(service.Session)) (cancel func())
	WaitReady(ctx context.Context) (service.Session, error)
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// Catalog is the catalog surface the console drives.
type Catalog interface {
	Page() model.ProductPage
	Query() model.SearchQuery
	Refresh(ctx context.Context) (model.ProductPage, error)
	SetSearchTerm(ctx context.Context, term string) (model.ProductPage, error)
	SetPage(ctx context.Context, pageNumber, pageSize int) (model.ProductPage, error)
	BeginCreate() model.MutationDraft
	BeginEdit(ctx context.Context, id string) (model.MutationDraft, error)
	Draft() (model.MutationDraft, bool)
	UpdateDraft(d model.MutationDraft) bool
	Cancel()
	Submit(ctx context.Context, d model.MutationDraft) error
}

var (
	_ Auth    = (*service.SessionManager)(nil)
	_ Catalog = (*service.CatalogController)(nil)
)

const prompt = "catalog> "

const helpText = `Commands:
  login <email> <password>   sign in
  logout                     sign out
  whoami                     show the signed-in user
  list                       reload the current page
  search [term]              filter by title (empty clears) and go to page 1
  page <n> [size]            go to page n
  next | prev                move one page
  new                        start a new product draft
  edit <id>                  load a product into a draft
  set <field> <value>        field: title, price, description, image, category
  draft                      show the open draft
  submit                     save the open draft
  cancel                     discard the open draft
  help                       this text
  quit                       leave the console`

// Console is a line-oriented front end over the session and catalog controllers.
type Console struct {
	auth    Auth
	catalog Catalog
	log     *zap.Logger

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

// New constructs a console writing to out.
func New(auth Auth, catalog Catalog, out io.Writer, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	return &Console{auth: auth, catalog: catalog, out: out, log: log}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) render(fn func(io.Writer) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(c.out); err != nil {
		c.log.Warn("render", zap.Error(err))
	}
}

// Run processes commands from in until quit, EOF or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	s, err := c.auth.WaitReady(ctx)
	if err != nil {
		return err
	}

	var signedIn atomic.Bool
	signedIn.Store(s.State == service.StateAuthenticated)
	stop := c.auth.Subscribe(func(s service.Session) {
		now := s.State == service.StateAuthenticated
		if was := signedIn.Swap(now); was && !now {
			c.printf("\nsession ended, log in again\n")
		}
	})
	defer stop()

	if s.State == service.StateAuthenticated {
		c.printf("Signed in as %s\n", s.Email())
		c.list(ctx)
	} else {
		c.printf("Not signed in. Use: login <email> <password>\n")
	}

	sc := bufio.NewScanner(in)
	for {
		c.printf("%s", prompt)
		if !sc.Scan() {
			c.printf("\n")
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if quit := c.Exec(ctx, sc.Text()); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "quit", "exit":
		return true
	case "help", "?":
		c.printf("%s\n", helpText)
	case "login":
		c.login(ctx, args)
	case "logout":
		if err := c.auth.SignOut(ctx); err != nil {
			c.fail(err)
			return false
		}
		c.catalog.Cancel()
		c.printf("Signed out.\n")
	case "whoami":
		if s := c.auth.Session(); s.State == service.StateAuthenticated {
			c.printf("%s\n", s.Email())
		} else {
			c.printf("not signed in\n")
		}
	default:
		if !c.requireAuth() {
			return false
		}
		c.protected(ctx, cmd, args, rest)
	}
	return false
}

func (c *Console) protected(ctx context.Context, cmd string, args []string, rest string) {
	switch cmd {
	case "list", "refresh":
		c.list(ctx)
	case "search":
		c.show(c.catalog.SetSearchTerm(ctx, rest))
	case "page":
		c.page(ctx, args)
	case "next", "prev":
		q, p := c.catalog.Query(), c.catalog.Page()
		n := q.PageNumber + 1
		if cmd == "prev" {
			n = q.PageNumber - 1
		}
		if n < 1 || (cmd == "next" && n > max(p.TotalPages(), 1)) {
			c.printf("no %s page\n", cmd)
			return
		}
		c.show(c.catalog.SetPage(ctx, n, q.PageSize))
	case "new":
		c.catalog.BeginCreate()
		c.printf("New draft. Use set <field> <value>, then submit.\n")
	case "edit":
		if len(args) != 1 {
			c.printf("usage: edit <id>\n")
			return
		}
		d, err := c.catalog.BeginEdit(ctx, args[0])
		if err != nil {
			c.fail(err)
			return
		}
		c.render(func(w io.Writer) error { return RenderDraft(w, d) })
	case "set":
		c.set(args, rest)
	case "draft":
		d, ok := c.catalog.Draft()
		if !ok {
			c.printf("no open draft\n")
			return
		}
		c.render(func(w io.Writer) error { return RenderDraft(w, d) })
	case "submit":
		c.submit(ctx)
	case "cancel":
		c.catalog.Cancel()
		c.printf("Draft discarded.\n")
	default:
		c.printf("unknown command %q, try help\n", cmd)
	}
}

func (c *Console) requireAuth() bool {
	if c.auth.Session().State == service.StateAuthenticated {
		return true
	}
	c.printf("login required\n")
	return false
}

func (c *Console) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		c.printf("usage: login <email> <password>\n")
		return
	}
	if err := c.auth.SignIn(ctx, args[0], args[1]); err != nil {
		c.printf("Login failed: %v\n", err)
		return
	}
	s := c.auth.Session()
	c.printf("Login successful. Signed in as %s\n", orNone(s.Email()))
	c.list(ctx)
}

func (c *Console) list(ctx context.Context) {
	c.show(c.catalog.Refresh(ctx))
}

func (c *Console) page(ctx context.Context, args []string) {
	if len(args) < 1 || len(args) > 2 {
		c.printf("usage: page <n> [size]\n")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		c.printf("page must be a number\n")
		return
	}
	size := c.catalog.Query().PageSize
	if len(args) == 2 {
		if size, err = strconv.Atoi(args[1]); err != nil {
			c.printf("size must be a number\n")
			return
		}
	}
	c.show(c.catalog.SetPage(ctx, n, size))
}

func (c *Console) set(args []string, rest string) {
	d, ok := c.catalog.Draft()
	if !ok {
		c.printf("no open draft, use new or edit <id>\n")
		return
	}
	if len(args) < 1 {
		c.printf("usage: set <field> <value>\n")
		return
	}
	field := strings.ToLower(args[0])
	value := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))

	switch field {
	case "title":
		d.Title = value
	case "price":
		p, err := decimal.NewFromString(value)
		if err != nil {
			c.printf("price must be a number\n")
			return
		}
		d.SetPrice(p)
	case "description":
		d.Description = value
	case "image":
		d.ImageURL = value
	case "category":
		d.Category = value
	default:
		c.printf("unknown field %q\n", field)
		return
	}
	if !c.catalog.UpdateDraft(d) {
		c.printf("draft was closed\n")
	}
}

func (c *Console) submit(ctx context.Context) {
	d, ok := c.catalog.Draft()
	if !ok {
		c.printf("no open draft\n")
		return
	}
	if err := c.catalog.Submit(ctx, d); err != nil {
		c.fail(err)
		return
	}
	if d.IsNew() {
		c.printf("Product created.\n")
	} else {
		c.printf("Product updated.\n")
	}
	p := c.catalog.Page()
	c.render(func(w io.Writer) error { return RenderPage(w, p) })
}

func (c *Console) show(page model.ProductPage, err error) {
	if err != nil {
		if errors.Is(err, errs.ErrSuperseded) {
			return
		}
		c.fail(err)
		return
	}
	c.render(func(w io.Writer) error { return RenderPage(w, page) })
}

func (c *Console) fail(err error) {
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &ve):
		c.printf("invalid %s: %s\n", ve.Field, ve.Reason)
	case errors.Is(err, errs.ErrNoSession):
		c.printf("login required\n")
	case errors.Is(err, errs.ErrNotFound):
		c.printf("not found\n")
	case errors.Is(err, errs.ErrUnauthorized):
		c.printf("backend rejected the session: %v\n", err)
	default:
		c.printf("error: %v\n", err)
	}
}
