// Package firebase implements identity.Provider on top of Firebase Authentication
// (Identity Toolkit password sign-in and Secure Token refresh).
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v1"
	"google.golang.org/api/option"

	"github.com/and161185/catalog-admin/internal/credstore"
	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/identity"
	"github.com/and161185/catalog-admin/internal/notify"
)

const (
	// DefaultTokenEndpoint is the Secure Token exchange endpoint.
	DefaultTokenEndpoint = "https://securetoken.googleapis.com/v1/token"

	// tokens closer than this to expiry are refreshed before use
	expirySkew      = 5 * time.Minute
	defaultTokenTTL = time.Hour
)

// Config selects the Firebase project and optional emulator endpoints.
type Config struct {
	APIKey           string
	IdentityEndpoint string // e.g. http://localhost:9099/identitytoolkit.googleapis.com/
	TokenEndpoint    string // e.g. http://localhost:9099/securetoken.googleapis.com/v1/token
	HTTPClient       *http.Client
}

// CredentialStore persists the current user between runs.
type CredentialStore interface {
	Load() (credstore.Credential, error)
	Save(credstore.Credential) error
	Clear() error
}

type noStore struct{}

func (noStore) Load() (credstore.Credential, error) { return credstore.Credential{}, credstore.ErrEmpty }
func (noStore) Save(credstore.Credential) error     { return nil }
func (noStore) Clear() error                        { return nil }

// Provider is a Firebase-backed identity.Provider.
type Provider struct {
	accounts *identitytoolkit.AccountsService
	apiKey   string
	tokenURL string
	hc       *http.Client
	store    CredentialStore
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	version uint64 // zero until Restore reports the initial state
	user    *User

	listeners notify.Hub[identity.Principal]
}

var _ identity.Provider = (*Provider)(nil)

// New constructs a provider. Listeners receive nothing until Restore reports the initial state.
func New(ctx context.Context, cfg Config, store CredentialStore, log *zap.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("firebase: api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.IdentityEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.IdentityEndpoint))
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: identity toolkit client: %w", err)
	}

	tokenURL := cfg.TokenEndpoint
	if tokenURL == "" {
		tokenURL = DefaultTokenEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if store == nil {
		store = noStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		accounts: svc.Accounts,
		apiKey:   cfg.APIKey,
		tokenURL: tokenURL,
		hc:       hc,
		store:    store,
		log:      log,
		now:      time.Now,
	}, nil
}

// Restore loads the persisted user, if any, and reports the initial state to listeners.
func (p *Provider) Restore() {
	var u *User
	c, err := p.store.Load()
	switch {
	case err == nil:
		u = p.newUser(c)
		p.log.Debug("restored session", zap.String("uid", c.UID))
	case errors.Is(err, credstore.ErrEmpty):
	default:
		p.log.Warn("credential store unreadable, starting signed out", zap.Error(err))
	}
	p.setUser(u)
}

// SignInWithPassword authenticates with email and password.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) error {
	req := &identitytoolkit.GoogleCloudIdentitytoolkitV1SignInWithPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}
	resp, err := p.accounts.SignInWithPassword(req).Context(ctx).Do()
	if err != nil {
		return mapError(err)
	}

	c := credstore.Credential{
		UID:          resp.LocalId,
		Email:        resp.Email,
		RefreshToken: resp.RefreshToken,
		IDToken:      resp.IdToken,
		ExpiresAt:    p.expiryOf(resp.IdToken, 0),
	}
	if c.Email == "" {
		c.Email = email
	}
	if err := p.store.Save(c); err != nil {
		// the session still works for this process
		p.log.Warn("persist credential", zap.Error(err))
	}
	p.setUser(p.newUser(c))
	return nil
}

// SignOut drops the current user and its stored credential.
func (p *Provider) SignOut(context.Context) error {
	err := p.store.Clear()
	p.setUser(nil)
	if err != nil {
		return fmt.Errorf("firebase: clear credential: %w", err)
	}
	return nil
}

// OnAuthStateChanged registers fn. If the initial state is known, fn is called immediately.
// fn never receives a user older than one it has already received.
func (p *Provider) OnAuthStateChanged(fn func(identity.Principal)) func() {
	return p.listeners.Subscribe(fn)
}

func (p *Provider) setUser(u *User) {
	p.mu.Lock()
	p.user = u
	p.version++
	ver := p.version
	p.mu.Unlock()

	p.listeners.Publish(principal(u), ver)
}

// invalidate signs u out if it is still the current user.
func (p *Provider) invalidate(u *User) {
	p.mu.Lock()
	current := p.user == u
	p.mu.Unlock()
	if !current {
		return
	}
	p.log.Info("session invalidated by provider", zap.String("uid", u.uid))
	if err := p.store.Clear(); err != nil {
		p.log.Warn("clear credential", zap.Error(err))
	}
	p.setUser(nil)
}

// persist saves c if u is still the current user.
func (p *Provider) persist(u *User, c credstore.Credential) {
	p.mu.Lock()
	current := p.user == u
	p.mu.Unlock()
	if !current {
		return
	}
	if err := p.store.Save(c); err != nil {
		p.log.Warn("persist credential", zap.Error(err))
	}
}

// expiryOf reads exp from an ID token without verifying it; verification is the backend's job.
func (p *Provider) expiryOf(idToken string, expiresIn int64) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if expiresIn > 0 {
		return p.now().Add(time.Duration(expiresIn) * time.Second)
	}
	return p.now().Add(defaultTokenTTL)
}

func principal(u *User) identity.Principal {
	if u == nil {
		return nil
	}
	return u
}

// mapError turns Identity Toolkit error codes into errs sentinels.
func mapError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("identity toolkit: %w", err)
	}
	code := errorCode(gerr.Message)
	switch code {
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_EMAIL", "MISSING_PASSWORD":
		return fmt.Errorf("%w: %s", errs.ErrInvalidCredentials, code)
	case "USER_DISABLED":
		return fmt.Errorf("%w: %s", errs.ErrUserDisabled, code)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return fmt.Errorf("%w: %s", errs.ErrRateLimited, code)
	default:
		return fmt.Errorf("identity toolkit: %w", err)
	}
}

// errorCode extracts "CODE" from messages like "CODE : human readable text".
func errorCode(msg string) string {
	f := strings.Fields(msg)
	if len(f) == 0 {
		return ""
	}
	return strings.TrimSuffix(f[0], ":")
}
