package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/catalog-admin/internal/credstore"
	"github.com/and161185/catalog-admin/internal/errs"
	"github.com/and161185/catalog-admin/internal/identity"
)

const testKey = "test-api-key"

func idToken(t *testing.T, uid string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: uid, ExpiresAt: jwt.NewNumericDate(exp)}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

// fakeFirebase serves the two endpoints the provider uses.
type fakeFirebase struct {
	t *testing.T

	mu           sync.Mutex
	password     string
	tokenExp     time.Time
	refreshCode  string // non-empty -> error message from /token
	signInCalls  atomic.Int32
	refreshCalls atomic.Int32
	lastKey      string
}

func (f *fakeFirebase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastKey = r.URL.Query().Get("key")
	password, exp, refreshCode := f.password, f.tokenExp, f.refreshCode
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/accounts:signInWithPassword":
		f.signInCalls.Add(1)
		var body struct {
			Email             string `json:"email"`
			Password          string `json:"password"`
			ReturnSecureToken bool   `json:"returnSecureToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != password || !body.ReturnSecureToken {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_LOGIN_CREDENTIALS","errors":[{"message":"INVALID_LOGIN_CREDENTIALS","domain":"global","reason":"invalid"}]}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-1",
			"email":        body.Email,
			"idToken":      idToken(f.t, "uid-1", exp),
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"registered":   true,
		})
	case "/token":
		f.refreshCalls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if refreshCode != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"` + refreshCode + `"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id_token":      idToken(f.t, "uid-1", time.Now().Add(time.Hour)),
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
			"user_id":       "uid-1",
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []identity.Principal
}

func (r *recorder) fn(p identity.Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recorder) last(t *testing.T) identity.Principal {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newProvider(t *testing.T, exp time.Time) (*Provider, *fakeFirebase, *credstore.FileStore) {
	t.Helper()
	fake := &fakeFirebase{t: t, password: "secret", tokenExp: exp}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := credstore.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	p, err := New(context.Background(), Config{
		APIKey:           testKey,
		IdentityEndpoint: srv.URL + "/",
		TokenEndpoint:    srv.URL + "/token",
		HTTPClient:       srv.Client(),
	}, store, nil)
	require.NoError(t, err)
	return p, fake, store
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil, nil)
	require.Error(t, err)
}

func TestOnAuthStateChanged_WaitsForRestore(t *testing.T) {
	p, _, _ := newProvider(t, time.Now().Add(time.Hour))
	rec := &recorder{}
	unsub := p.OnAuthStateChanged(rec.fn)
	defer unsub()

	require.Zero(t, rec.count(), "no callback before the initial state is known")
	p.Restore()
	require.Equal(t, 1, rec.count())
	require.Nil(t, rec.last(t))
}

func TestSignIn_NotifiesAndPersists(t *testing.T) {
	p, fake, store := newProvider(t, time.Now().Add(time.Hour))
	p.Restore()
	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)

	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))
	fake.mu.Lock()
	require.Equal(t, testKey, fake.lastKey)
	fake.mu.Unlock()

	u := rec.last(t)
	require.NotNil(t, u)
	require.Equal(t, "admin@shop.id", u.Email())
	require.Equal(t, "uid-1", u.UID())

	tok, err := u.FreshToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Zero(t, fake.refreshCalls.Load(), "valid token is served without refresh")

	c, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "refresh-1", c.RefreshToken)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	p, _, store := newProvider(t, time.Now().Add(time.Hour))
	p.Restore()
	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)

	err := p.SignInWithPassword(context.Background(), "admin@shop.id", "wrong")
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	require.Equal(t, 1, rec.count(), "only the initial callback")
	require.Nil(t, rec.last(t))

	_, err = store.Load()
	require.ErrorIs(t, err, credstore.ErrEmpty)
}

func TestFreshToken_RefreshesNearExpiry(t *testing.T) {
	p, fake, store := newProvider(t, time.Now().Add(time.Minute))
	p.Restore()
	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)
	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))

	tok, err := rec.last(t).FreshToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.EqualValues(t, 1, fake.refreshCalls.Load())

	c, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "refresh-2", c.RefreshToken)
	require.Equal(t, tok, c.IDToken)
}

func TestFreshToken_RevokedSignsOut(t *testing.T) {
	p, fake, store := newProvider(t, time.Now().Add(-time.Minute))
	p.Restore()
	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)
	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))
	u := rec.last(t)

	fake.mu.Lock()
	fake.refreshCode = "TOKEN_EXPIRED"
	fake.mu.Unlock()

	_, err := u.FreshToken(context.Background())
	require.ErrorIs(t, err, errs.ErrTokenRevoked)
	require.Nil(t, rec.last(t), "listeners observe the invalidation")

	_, err = store.Load()
	require.ErrorIs(t, err, credstore.ErrEmpty)
}

func TestFreshToken_TransientErrorKeepsUser(t *testing.T) {
	p, fake, _ := newProvider(t, time.Now().Add(-time.Minute))
	p.Restore()
	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)
	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))

	fake.mu.Lock()
	fake.refreshCode = "QUOTA_EXCEEDED"
	fake.mu.Unlock()

	_, err := rec.last(t).FreshToken(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, errs.ErrTokenRevoked))
	require.NotNil(t, rec.last(t))
}

func TestRestore_FromStore(t *testing.T) {
	p, fake, store := newProvider(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Save(credstore.Credential{UID: "uid-1", Email: "admin@shop.id", RefreshToken: "refresh-1"}))

	rec := &recorder{}
	p.OnAuthStateChanged(rec.fn)
	p.Restore()

	u := rec.last(t)
	require.NotNil(t, u)
	require.Equal(t, "admin@shop.id", u.Email())

	_, err := u.FreshToken(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, fake.refreshCalls.Load(), "restored user has no id token yet")
}

func TestSignOut_ClearsAndNotifies(t *testing.T) {
	p, _, store := newProvider(t, time.Now().Add(time.Hour))
	p.Restore()
	rec := &recorder{}
	unsub := p.OnAuthStateChanged(rec.fn)
	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))

	require.NoError(t, p.SignOut(context.Background()))
	require.Nil(t, rec.last(t))
	_, err := store.Load()
	require.ErrorIs(t, err, credstore.ErrEmpty)

	unsub()
	n := rec.count()
	require.NoError(t, p.SignInWithPassword(context.Background(), "admin@shop.id", "secret"))
	require.Equal(t, n, rec.count(), "unsubscribed listener is not called")
}

func TestErrorCode(t *testing.T) {
	require.Equal(t, "TOO_MANY_ATTEMPTS_TRY_LATER", errorCode("TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled"))
	require.Equal(t, "INVALID_PASSWORD", errorCode("INVALID_PASSWORD"))
	require.Equal(t, "", errorCode(""))
}
