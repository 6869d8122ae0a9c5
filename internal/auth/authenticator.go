// Package auth implements the OAuth2 authorization-code flow with PKCE
// for the supported mail providers, and mints the access tokens the IMAP
// and SMTP clients authenticate with. Refresh tokens live only in the
// OS-backed secret store; they are never written to the database or to
// configuration.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"

	"github.com/vdavid/mailsync/internal/config"
	"github.com/vdavid/mailsync/internal/db"
	"github.com/vdavid/mailsync/internal/models"
	"github.com/vdavid/mailsync/internal/secrets"
)

var (
	// ErrInvalidState is returned when a callback carries a state that
	// was never issued, expired, or was already redeemed.
	ErrInvalidState = errors.New("invalid or expired authorization state")

	// ErrNoRefreshTokenInGrant is returned when the token exchange
	// succeeds but the grant carries no refresh token, which would leave
	// the account unusable after the first access token expires.
	ErrNoRefreshTokenInGrant = errors.New("authorization grant contained no refresh token")

	// ErrMissingRefreshToken is returned when no refresh token is stored
	// for an account; the account has to go through authorization again.
	ErrMissingRefreshToken = errors.New("no refresh token stored for account")
)

// Authenticator runs authorization flows and refreshes access tokens.
type Authenticator struct {
	cfg       *config.Config
	secrets   secrets.Store
	providers map[string]Provider
	flows     *flowStore

	// httpClient is used for token and userinfo requests; tests point it
	// at local servers.
	httpClient *http.Client
}

// New creates an Authenticator backed by the given secret store.
func New(cfg *config.Config, store secrets.Store) *Authenticator {
	return &Authenticator{
		cfg:        cfg,
		secrets:    store,
		providers:  defaultProviders(),
		flows:      newFlowStore(),
		httpClient: http.DefaultClient,
	}
}

// BeginAuth starts an authorization flow for the named provider and
// returns the URL to open in a browser, plus the state that identifies
// the flow on callback. The PKCE verifier stays in memory.
func (a *Authenticator) BeginAuth(providerName string) (authURL, state string, err error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return "", "", ErrUnsupportedProvider
	}

	conf, err := a.oauth2Config(provider)
	if err != nil {
		return "", "", err
	}

	state, err = newState()
	if err != nil {
		return "", "", err
	}

	verifier := oauth2.GenerateVerifier()
	a.flows.put(state, pendingFlow{
		provider: provider,
		verifier: verifier,
		started:  time.Now(),
	})

	authURL = conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	return authURL, state, nil
}

// BeginAuthForEmail starts a flow for the provider inferred from the
// email address's domain.
func (a *Authenticator) BeginAuthForEmail(email string) (authURL, state string, err error) {
	provider, err := ProviderForEmail(email)
	if err != nil {
		return "", "", err
	}
	return a.BeginAuth(provider.Name)
}

// CompleteAuth redeems an authorization callback: it exchanges the code
// using the flow's PKCE verifier, fetches the user's identity, upserts
// the account, and stores the refresh token in the secret store.
func (a *Authenticator) CompleteAuth(ctx context.Context, pool *pgxpool.Pool, state, code string) (*models.Account, error) {
	flow, ok := a.flows.take(state)
	if !ok {
		return nil, ErrInvalidState
	}

	conf, err := a.oauth2Config(flow.provider)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(flow.verifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	if token.RefreshToken == "" {
		return nil, ErrNoRefreshTokenInGrant
	}

	email, name, err := a.fetchUserinfo(ctx, flow.provider, token.AccessToken)
	if err != nil {
		return nil, err
	}

	account, err := db.CreateAccount(ctx, pool, email, name, flow.provider.Name)
	if err != nil {
		return nil, err
	}

	if err := a.secrets.Set(secretKey(account.ID), token.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return account, nil
}

// AccessToken returns a fresh access token for the account, refreshing
// through the stored refresh token. A rotated refresh token is persisted
// before the access token is returned.
func (a *Authenticator) AccessToken(ctx context.Context, account *models.Account) (string, error) {
	stored, err := a.secrets.Get(secretKey(account.ID))
	if errors.Is(err, secrets.ErrNotFound) {
		return "", fmt.Errorf("account %s: %w", account.Email, ErrMissingRefreshToken)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}

	provider, ok := a.providers[account.Provider]
	if !ok {
		return "", ErrUnsupportedProvider
	}

	conf, err := a.oauth2Config(provider)
	if err != nil {
		return "", err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: stored}).Token()
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	if token.RefreshToken != "" && token.RefreshToken != stored {
		if err := a.secrets.Set(secretKey(account.ID), token.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to store rotated refresh token: %w", err)
		}
	}

	return token.AccessToken, nil
}

// Forget removes the account's refresh token from the secret store.
// Missing tokens are not an error, so account removal stays idempotent.
func (a *Authenticator) Forget(accountID int64) error {
	if err := a.secrets.Delete(secretKey(accountID)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// ProviderFor returns the provider configuration for an account.
func (a *Authenticator) ProviderFor(account *models.Account) (Provider, error) {
	provider, ok := a.providers[account.Provider]
	if !ok {
		return Provider{}, ErrUnsupportedProvider
	}
	return provider, nil
}

func (a *Authenticator) oauth2Config(p Provider) (*oauth2.Config, error) {
	creds, err := a.cfg.ProviderCredentialsFor(p.Name)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  a.cfg.RedirectURL,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}, nil
}

func (a *Authenticator) fetchUserinfo(ctx context.Context, p Provider, accessToken string) (email, name string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserinfoURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var fields map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		return "", "", fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	email, _ = fields[p.EmailField].(string)
	if email == "" {
		return "", "", fmt.Errorf("userinfo response missing %s", p.EmailField)
	}
	name, _ = fields[p.NameField].(string)

	return email, name, nil
}

func secretKey(accountID int64) string {
	return fmt.Sprintf("account_%d", accountID)
}
