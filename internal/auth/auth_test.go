package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/mailsync/internal/config"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/secrets"
)

func testConfig() *config.Config {
	return &config.Config{
		RedirectURL: "http://localhost:1420/callback",
		Providers: map[string]config.ProviderCredentials{
			"google": {ClientID: "test-client", ClientSecret: "test-secret"},
		},
	}
}

// tokenServer fakes a provider token endpoint, serving the given
// responses in order.
func tokenServer(t *testing.T, responses ...map[string]any) *httptest.Server {
	t.Helper()
	var calls int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Less(t, calls, len(responses), "unexpected token request")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(responses[calls])
		calls++
	}))
}

func withTestProvider(a *Authenticator, tokenURL string) {
	p := a.providers["google"]
	p.TokenURL = tokenURL
	a.providers["google"] = p
}

func TestBeginAuth(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	authURL, state, err := a.BeginAuth("google")
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "test-client", query.Get("client_id"))
	assert.Equal(t, state, query.Get("state"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.Equal(t, "http://localhost:1420/callback", query.Get("redirect_uri"))
}

func TestBeginAuthForEmail(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	authURL, state, err := a.BeginAuthForEmail("someone@gmail.com")
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, authURL, "accounts.google.com")

	_, _, err = a.BeginAuthForEmail("someone@example.com")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestBeginAuthMissingCredentials(t *testing.T) {
	// testConfig registers credentials for google only.
	a := New(testConfig(), secrets.NewMemoryStore())

	_, state, err := a.BeginAuth("microsoft")
	assert.ErrorContains(t, err, "OAuth config for microsoft not found")
	assert.Empty(t, state)
	assert.Empty(t, a.flows.flows)
}

func TestBeginAuthUnknownProvider(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	_, _, err := a.BeginAuth("yahoo")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestCompleteAuthInvalidState(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	_, err := a.CompleteAuth(context.Background(), nil, "never-issued", "code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteAuthStateIsSingleUse(t *testing.T) {
	srv := tokenServer(t, map[string]any{
		"access_token": "at-1",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	defer srv.Close()

	a := New(testConfig(), secrets.NewMemoryStore())
	withTestProvider(a, srv.URL)

	_, state, err := a.BeginAuth("google")
	require.NoError(t, err)

	// First redemption fails on the missing refresh token, but it still
	// consumes the state.
	_, err = a.CompleteAuth(context.Background(), nil, state, "code")
	require.ErrorIs(t, err, ErrNoRefreshTokenInGrant)

	_, err = a.CompleteAuth(context.Background(), nil, state, "code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteAuthExpiredState(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	_, state, err := a.BeginAuth("google")
	require.NoError(t, err)

	a.flows.mu.Lock()
	flow := a.flows.flows[state]
	flow.started = time.Now().Add(-flowTTL - time.Minute)
	a.flows.flows[state] = flow
	a.flows.mu.Unlock()

	_, err = a.CompleteAuth(context.Background(), nil, state, "code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAccessToken(t *testing.T) {
	srv := tokenServer(t, map[string]any{
		"access_token": "fresh-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	defer srv.Close()

	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set("account_1", "stored-refresh"))

	a := New(testConfig(), store)
	withTestProvider(a, srv.URL)

	account := &models.Account{ID: 1, Email: "user@gmail.com", Provider: "google"}
	token, err := a.AccessToken(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestAccessTokenPersistsRotatedRefreshToken(t *testing.T) {
	srv := tokenServer(t, map[string]any{
		"access_token":  "fresh-token",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "rotated-refresh",
	})
	defer srv.Close()

	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set("account_1", "stored-refresh"))

	a := New(testConfig(), store)
	withTestProvider(a, srv.URL)

	account := &models.Account{ID: 1, Email: "user@gmail.com", Provider: "google"}
	_, err := a.AccessToken(context.Background(), account)
	require.NoError(t, err)

	stored, err := store.Get("account_1")
	require.NoError(t, err)
	assert.Equal(t, "rotated-refresh", stored)
}

func TestAccessTokenMissingRefreshToken(t *testing.T) {
	a := New(testConfig(), secrets.NewMemoryStore())

	account := &models.Account{ID: 7, Email: "user@gmail.com", Provider: "google"}
	_, err := a.AccessToken(context.Background(), account)
	assert.ErrorIs(t, err, ErrMissingRefreshToken)
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set("account_2", "stored-refresh"))

	a := New(testConfig(), store)

	account := &models.Account{ID: 2, Email: "user@outlook.com", Provider: "microsoft"}
	_, err := a.AccessToken(context.Background(), account)
	assert.ErrorContains(t, err, "OAuth config for microsoft not found")
}

func TestForgetIsIdempotent(t *testing.T) {
	store := secrets.NewMemoryStore()
	require.NoError(t, store.Set("account_3", "refresh"))

	a := New(testConfig(), store)
	require.NoError(t, a.Forget(3))
	require.NoError(t, a.Forget(3))

	_, err := store.Get("account_3")
	assert.ErrorIs(t, err, secrets.ErrNotFound)
}

func TestProviderForEmail(t *testing.T) {
	tests := []struct {
		email    string
		provider string
		wantErr  bool
	}{
		{"alice@gmail.com", "google", false},
		{"alice@googlemail.com", "google", false},
		{"bob@outlook.com", "microsoft", false},
		{"bob@Hotmail.com", "microsoft", false},
		{"carol@example.com", "", true},
		{"not-an-email", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			p, err := ProviderForEmail(tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Name)
		})
	}
}

func TestXOAuth2InitialResponse(t *testing.T) {
	client := NewXOAuth2("user@gmail.com", "token-abc")

	mech, ir, err := client.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=user@gmail.com\x01auth=Bearer token-abc\x01\x01", string(ir))
}
