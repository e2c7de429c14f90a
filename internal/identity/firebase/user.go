package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/and161185/catalog-admin/internal/credstore"
	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/identity"
)

// User is a signed-in Firebase user. It refreshes its ID token on demand.
type User struct {
	p     *Provider
	uid   string
	email string

	mu           sync.Mutex // held across refresh so concurrent callers share one exchange
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

var _ identity.Principal = (*User)(nil)

func (p *Provider) newUser(c credstore.Credential) *User {
	return &User{
		p:            p,
		uid:          c.UID,
		email:        c.Email,
		idToken:      c.IDToken,
		refreshToken: c.RefreshToken,
		expiresAt:    c.ExpiresAt,
	}
}

// UID returns the Firebase local id.
func (u *User) UID() string { return u.uid }

// Email returns the account email.
func (u *User) Email() string { return u.email }

// FreshToken returns the cached ID token while it is comfortably valid, otherwise exchanges
// the refresh token. A revoked refresh token signs the user out.
func (u *User) FreshToken(ctx context.Context) (string, error) {
	tok, err := u.freshToken(ctx)
	if errors.Is(err, errs.ErrTokenRevoked) {
		u.p.invalidate(u)
	}
	return tok, err
}

func (u *User) freshToken(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.idToken != "" && u.p.now().Add(expirySkew).Before(u.expiresAt) {
		return u.idToken, nil
	}

	res, err := u.p.exchange(ctx, u.refreshToken)
	if err != nil {
		return "", err
	}
	expiresIn, _ := strconv.ParseInt(res.ExpiresIn, 10, 64)
	u.idToken = res.IDToken
	if res.RefreshToken != "" {
		u.refreshToken = res.RefreshToken
	}
	u.expiresAt = u.p.expiryOf(res.IDToken, expiresIn)

	u.p.persist(u, credstore.Credential{
		UID:          u.uid,
		Email:        u.email,
		RefreshToken: u.refreshToken,
		IDToken:      u.idToken,
		ExpiresAt:    u.expiresAt,
	})
	return u.idToken, nil
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type tokenError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// revokedCodes mean the refresh token will never work again.
var revokedCodes = map[string]bool{
	"TOKEN_EXPIRED":         true,
	"USER_DISABLED":         true,
	"USER_NOT_FOUND":        true,
	"INVALID_REFRESH_TOKEN": true,
	"INVALID_GRANT_TYPE":    true,
}

// exchange trades a refresh token for a new ID token at the Secure Token endpoint.
func (p *Provider) exchange(ctx context.Context, refreshToken string) (tokenResponse, error) {
	if refreshToken == "" {
		return tokenResponse{}, fmt.Errorf("%w: missing refresh token", errs.ErrTokenRevoked)
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := p.tokenURL + "?key=" + url.QueryEscape(p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.hc.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("securetoken: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("securetoken: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		_ = json.Unmarshal(body, &te)
		code := errorCode(te.Error.Message)
		if revokedCodes[code] {
			return tokenResponse{}, fmt.Errorf("%w: %s", errs.ErrTokenRevoked, code)
		}
		return tokenResponse{}, fmt.Errorf("securetoken: status %d: %s", resp.StatusCode, code)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, fmt.Errorf("securetoken: decode: %w", err)
	}
	if tr.IDToken == "" {
		return tokenResponse{}, errors.New("securetoken: empty id_token")
	}
	return tr, nil
}
