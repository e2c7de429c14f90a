package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/metrics"
	"github.com/and161185/catalog-admin/internal/model"
	"github.com/and161185/catalog-admin/internal/repository"
)

// SessionSource is the part of SessionManager the catalog depends on.
type SessionSource interface {
	Session() Session
	CurrentToken(ctx context.Context) (string, error)
}

var _ SessionSource = (*SessionManager)(nil)

// CatalogOptions tunes CatalogController. Zero values select defaults.
type CatalogOptions struct {
	PageSize int
	// PreserveOnError keeps the last page when a refresh fails instead of clearing it.
	PreserveOnError bool
}

// CatalogController owns the search query, the current page and the open draft.
type CatalogController struct {
	sessions SessionSource
	repo     repository.ProductRepository
	validate *validator.Validate
	log      *zap.Logger
	metrics  metrics.Recorder
	preserve bool

	mu      sync.Mutex
	query   model.SearchQuery
	page    model.ProductPage
	seq     uint64
	loading int
	draft   *model.MutationDraft
}

// NewCatalogController constructs a controller with an empty first page.
func NewCatalogController(sessions SessionSource, repo repository.ProductRepository, log *zap.Logger, rec metrics.Recorder, opts CatalogOptions) *CatalogController {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	q := model.NewSearchQuery()
	if opts.PageSize > 0 {
		q.PageSize = opts.PageSize
	}
	return &CatalogController{
		sessions: sessions,
		repo:     repo,
		validate: newDraftValidator(),
		log:      log,
		metrics:  rec,
		preserve: opts.PreserveOnError,
		query:    q,
		page:     model.EmptyPage(q),
	}
}

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			fl, _ := d.Float64()
			return fl
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Page returns the current page snapshot.
func (c *CatalogController) Page() model.ProductPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Query returns the current search query.
func (c *CatalogController) Query() model.SearchQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Loading reports whether a fetch is in flight.
func (c *CatalogController) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// SetSearchTerm filters by term, moves back to the first page and refetches.
func (c *CatalogController) SetSearchTerm(ctx context.Context, term string) (model.ProductPage, error) {
	c.mu.Lock()
	c.query = c.query.WithTerm(term)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetPage moves the window and refetches. Both arguments must be >= 1.
func (c *CatalogController) SetPage(ctx context.Context, pageNumber, pageSize int) (model.ProductPage, error) {
	if err := checkWindow(pageNumber, pageSize); err != nil {
		return c.Page(), err
	}
	c.mu.Lock()
	c.query = c.query.WithPage(pageNumber, pageSize)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetQuery replaces the term and the window together and refetches once.
func (c *CatalogController) SetQuery(ctx context.Context, q model.SearchQuery) (model.ProductPage, error) {
	if err := checkWindow(q.PageNumber, q.PageSize); err != nil {
		return c.Page(), err
	}
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
	return c.Refresh(ctx)
}

func checkWindow(pageNumber, pageSize int) error {
	if pageNumber < 1 {
		return &errs.ValidationError{Field: "pageNumber", Reason: "must be >= 1"}
	}
	if pageSize < 1 {
		return &errs.ValidationError{Field: "pageSize", Reason: "must be >= 1"}
	}
	return nil
}

// Refresh fetches the page for the current query. Without a session it sends nothing and
// returns the current page. A response overtaken by a newer Refresh, suppressed ones
// included, is discarded and the caller gets errs.ErrSuperseded.
func (c *CatalogController) Refresh(ctx context.Context) (model.ProductPage, error) {
	if c.sessions.Session().State != StateAuthenticated {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seq++
		c.metrics.RecordRefresh(metrics.RefreshSuppressed)
		return c.page, nil
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	q := c.query
	c.loading++
	c.mu.Unlock()

	page, err := c.fetch(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--

	if seq != c.seq {
		c.metrics.RecordRefresh(metrics.RefreshSuperseded)
		c.log.Debug("refresh superseded", zap.Uint64("seq", seq), zap.Uint64("latest", c.seq))
		return c.page, errs.ErrSuperseded
	}
	if errors.Is(err, errs.ErrNoSession) {
		// signed out between the state check and the token fetch
		c.metrics.RecordRefresh(metrics.RefreshSuppressed)
		return c.page, nil
	}
	if err != nil {
		c.metrics.RecordRefresh(metrics.RefreshFailed)
		c.log.Warn("refresh failed",
			zap.String("term", q.Term),
			zap.Int("page", q.PageNumber),
			zap.Error(err),
		)
		if !c.preserve {
			c.page = model.EmptyPage(q)
		}
		return c.page, err
	}

	if len(page.Items) > q.PageSize {
		page.Items = page.Items[:q.PageSize]
	}
	page.PageNumber = q.PageNumber
	page.PageSize = q.PageSize
	c.page = page
	c.metrics.RecordRefresh(metrics.RefreshOK)
	return c.page, nil
}

func (c *CatalogController) fetch(ctx context.Context, q model.SearchQuery) (model.ProductPage, error) {
	ctx, err := c.authorize(ctx)
	if err != nil {
		return model.ProductPage{}, err
	}
	return c.repo.List(ctx, q)
}

// authorize attaches a fresh bearer token to ctx.
func (c *CatalogController) authorize(ctx context.Context) (context.Context, error) {
	tok, err := c.sessions.CurrentToken(ctx)
	if err != nil {
		return ctx, err
	}
	if tok == "" {
		return ctx, errs.ErrNoSession
	}
	return repository.WithBearer(ctx, tok), nil
}

// BeginCreate opens an empty draft.
func (c *CatalogController) BeginCreate() model.MutationDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := model.MutationDraft{}
	c.draft = &d
	return d
}

// BeginEdit fetches the authoritative record for id and opens a draft from it.
// It never reuses the row from the current page.
func (c *CatalogController) BeginEdit(ctx context.Context, id string) (model.MutationDraft, error) {
	ctx, err := c.authorize(ctx)
	if err != nil {
		return model.MutationDraft{}, err
	}
	p, err := c.repo.Get(ctx, id)
	if err != nil {
		return model.MutationDraft{}, err
	}
	d := model.DraftFromProduct(p)
	c.mu.Lock()
	c.draft = &d
	c.mu.Unlock()
	return d, nil
}

// Draft returns the open draft, if any.
func (c *CatalogController) Draft() (model.MutationDraft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return model.MutationDraft{}, false
	}
	return *c.draft, true
}

// UpdateDraft replaces the open draft with d. It reports false when no draft is open.
func (c *CatalogController) UpdateDraft(d model.MutationDraft) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return false
	}
	c.draft = &d
	return true
}

// Cancel discards the open draft.
func (c *CatalogController) Cancel() {
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
}

// Submit validates d and creates or updates it. On failure the draft stays open with the
// submitted values and the page is left alone. On success the page is refreshed before
// the draft closes; a refresh failure is logged, not returned.
func (c *CatalogController) Submit(ctx context.Context, d model.MutationDraft) error {
	d = normalizeDraft(d)

	c.mu.Lock()
	c.draft = &d
	c.mu.Unlock()

	if err := c.check(d); err != nil {
		return err
	}

	actx, err := c.authorize(ctx)
	if err != nil {
		return err
	}

	var saved model.Product
	if d.IsNew() {
		saved, err = c.repo.Create(actx, d)
	} else {
		saved, err = c.repo.Update(actx, d)
	}
	if err != nil {
		c.log.Warn("submit failed", zap.String("id", d.ID), zap.Bool("create", d.IsNew()), zap.Error(err))
		return err
	}
	c.log.Info("product saved", zap.String("id", saved.ID), zap.Bool("create", d.IsNew()))

	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, errs.ErrSuperseded) {
		c.log.Warn("refresh after submit", zap.Error(err))
	}

	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
	return nil
}

func normalizeDraft(d model.MutationDraft) model.MutationDraft {
	d.ID = strings.TrimSpace(d.ID)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	d.Category = strings.TrimSpace(d.Category)
	if d.Price != nil {
		d.SetPrice(*d.Price)
	}
	return d
}

// check runs struct validation and reports the first failing field.
func (c *CatalogController) check(d model.MutationDraft) error {
	err := c.validate.Struct(d)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return fmt.Errorf("validate draft: %w", err)
	}
	fe := ves[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &errs.ValidationError{Field: field, Reason: "is required"}
	case "gte":
		return &errs.ValidationError{Field: field, Reason: "must not be negative"}
	case "url":
		return &errs.ValidationError{Field: field, Reason: "must be a valid URL"}
	default:
		return &errs.ValidationError{Field: field, Reason: "failed " + fe.Tag()}
	}
}
