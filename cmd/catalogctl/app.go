package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/and161185/catalog-admin/internal/config"
	"github.com/and161185/catalog-admin/internal/credstore"
	"github.com/and161185/catalog-admin/internal/identity/firebase"
	"github.com/and161185/catalog-admin/internal/limiter"
	"github.com/and161185/catalog-admin/internal/metrics"
	"github.com/and161185/catalog-admin/internal/repository"
	"github.com/and161185/catalog-admin/internal/repository/httpapi"
	"github.com/and161185/catalog-admin/internal/service"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	repo     repository.ProductRepository
	sessions *service.SessionManager
	catalog  *service.CatalogController
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	hc := &http.Client{Timeout: cfg.Backend.Timeout}

	prov, err := firebase.New(ctx, firebase.Config{
		APIKey:           cfg.Firebase.APIKey,
		IdentityEndpoint: cfg.Firebase.IdentityEndpoint,
		TokenEndpoint:    cfg.Firebase.TokenEndpoint,
		HTTPClient:       hc,
	}, credstore.NewFileStore(cfg.Session.StorePath), log.Named("firebase"))
	if err != nil {
		return nil, err
	}

	si := cfg.Session.SignIn
	lim := limiter.NewMemory(si.Window, si.MaxFailures, si.BlockFor, si.AttemptsPerMinute)
	sessions := service.NewSessionManager(prov, lim, log.Named("session"), rec)
	// subscribers are in place; report the persisted user, if any
	prov.Restore()

	repo, err := httpapi.NewProductRepo(cfg.Backend.BaseURL, hc, log.Named("backend"), rec)
	if err != nil {
		sessions.Close()
		return nil, fmt.Errorf("backend: %w", err)
	}
	catalog := service.NewCatalogController(sessions, repo, log.Named("catalog"), rec, service.CatalogOptions{
		PageSize:        cfg.Catalog.PageSize,
		PreserveOnError: cfg.Catalog.PreserveOnError,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		repo:     repo,
		sessions: sessions,
		catalog:  catalog,
	}, nil
}

func (a *app) Close() {
	a.sessions.Close()
	_ = a.log.Sync()
}

// authorized returns ctx carrying a fresh bearer token, or errs.ErrNoSession.
func (a *app) authorized(ctx context.Context) (context.Context, error) {
	if _, err := a.sessions.RequireAuth(ctx); err != nil {
		return ctx, err
	}
	tok, err := a.sessions.CurrentToken(ctx)
	if err != nil {
		return ctx, err
	}
	return repository.WithBearer(ctx, tok), nil
}
