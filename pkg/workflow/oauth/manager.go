// Package oauth implements the OAuth Token Manager (C4): refresh of
// access tokens across two credential classes — Mode-A (refresh-token
// flow, DB-backed) and Mode-B (client-credentials flow, in-memory cache
// only) — with a single process-wide mutex guarding the refresh path,
// guaranteeing at most one in-flight refresh per process.
package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kestrelsec/workflow-runner/pkg/metrics"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// credentialStore is the narrow slice of credentials.Store the token
// manager depends on, kept as an interface so tests can substitute an
// in-memory double (mirroring the original source's MockDbMSTeams).
type credentialStore interface {
	FetchSecret(ctx context.Context, workflowID, credentialName string) (string, *string, error)
	UpdateSecret(ctx context.Context, workflowID, credentialName, plaintext string) error
}

const (
	msTeamsRefreshURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

	scopeManagementAzure = "https://management.azure.com/.default"
	scopeGraphMicrosoft  = "https://graph.microsoft.com/.default"
)

// Manager is the process-wide OAuth token manager. One instance is
// constructed at startup and shared by reference into every task, per
// DESIGN NOTES' "OAuth cache + refresh mutex as process state" guidance.
//
// refreshMu is the one mutex per process guarding only the refresh
// path: readers that find a still-valid token never touch it, and every
// refresh — regardless of credential — serializes through it. A caller
// that acquires the mutex re-checks validity first, so waiters behind
// an in-flight refresh pick up its result instead of issuing a second
// upstream call.
type Manager struct {
	store      credentialStore
	httpClient *http.Client
	refreshMu  sync.Mutex
	cache      *accessTokenCache

	msTeamsClientID     string
	msTeamsClientSecret string

	now func() time.Time
}

func NewManager(store credentialStore, httpClient *http.Client, msTeamsClientID, msTeamsClientSecret string) *Manager {
	return &Manager{
		store:               store,
		httpClient:          httpClient,
		cache:               newAccessTokenCache(),
		msTeamsClientID:     msTeamsClientID,
		msTeamsClientSecret: msTeamsClientSecret,
		now:                 time.Now,
	}
}

// msDefenderStoredSecret is the Mode-B unchanging stored secret shape.
type msDefenderStoredSecret struct {
	TenantID     string `json:"TENANT_ID"`
	ClientID     string `json:"CLIENT_ID"`
	ClientSecret string `json:"CLIENT_SECRET"`
}

// FetchAccessToken returns a valid access token and its token type for
// credentialName under workflowID, refreshing it if necessary. Missing
// integration_type or an integration type with no OAuth mode is a
// ConfigError (non-retriable).
func (m *Manager) FetchAccessToken(ctx context.Context, credentialName, workflowID string) (accessToken, tokenType string, err error) {
	plaintext, integrationType, err := m.store.FetchSecret(ctx, workflowID, credentialName)
	if err != nil {
		return "", "", err
	}
	if integrationType == nil {
		return "", "", apperr.New(apperr.ConfigError,
			"credential %q has no integration type; can't perform OAuth token refresh", credentialName)
	}

	switch *integrationType {
	case string(model.IntegrationMSTeams):
		var token model.OAuthToken
		if err := json.Unmarshal([]byte(plaintext), &token); err != nil {
			return "", "", apperr.New(apperr.MalformedCredential, "received malformed credential: %s", err)
		}
		if token.ExpiresAt > m.now().Unix() {
			return token.AccessToken, token.TokenType, nil
		}
		return m.refreshModeA(ctx, credentialName, workflowID)

	case string(model.IntegrationMSDefenderForCloud), string(model.IntegrationMSDefender):
		key := cacheKey{credentialName: credentialName, workflowID: workflowID}
		if token, ok := m.cache.get(key, m.now()); ok {
			return token.AccessToken, token.TokenType, nil
		}
		return m.refreshModeB(ctx, credentialName, workflowID, *integrationType, plaintext)

	default:
		return "", "", apperr.New(apperr.ConfigError, "unknown integration: %q", *integrationType)
	}
}

// httpCtx routes the oauth2 library's internal token requests through the
// manager's injected HTTP client.
func (m *Manager) httpCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// refreshModeA performs the refresh-token refresh for a Mode-A
// credential under the process-wide mutex, writing the new record back
// to the credential store.
func (m *Manager) refreshModeA(ctx context.Context, credentialName, workflowID string) (string, string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// Re-check after acquiring: a waiter behind an in-flight refresh
	// re-reads the store and finds the record that refresh wrote.
	plaintext, _, err := m.store.FetchSecret(ctx, workflowID, credentialName)
	if err != nil {
		return "", "", err
	}
	var token model.OAuthToken
	if err := json.Unmarshal([]byte(plaintext), &token); err != nil {
		return "", "", apperr.New(apperr.MalformedCredential, "received malformed credential: %s", err)
	}
	if token.ExpiresAt > m.now().Unix() {
		metrics.OAuthSingleflightJoins.Inc()
		return token.AccessToken, token.TokenType, nil
	}

	cfg := oauth2.Config{
		ClientID:     m.msTeamsClientID,
		ClientSecret: m.msTeamsClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  msTeamsRefreshURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: strings.Fields(token.Scope),
	}
	fresh, err := cfg.TokenSource(m.httpCtx(ctx), &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	if err != nil {
		metrics.OAuthRefreshTotal.WithLabelValues("refresh_token", "failure").Inc()
		return "", "", apperr.New(apperr.RefreshFailed, "error: failed to refresh token: %s", err)
	}
	metrics.OAuthRefreshTotal.WithLabelValues("refresh_token", "success").Inc()

	token.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		token.RefreshToken = fresh.RefreshToken
	}
	token.TokenType = fresh.Type()
	if fresh.Expiry.IsZero() {
		token.ExpiresAt = m.now().Add(time.Hour).Unix()
	} else {
		token.ExpiresAt = fresh.Expiry.Unix()
	}

	encoded, err := json.Marshal(token)
	if err != nil {
		return "", "", apperr.New(apperr.RefreshFailed, "failed to encode refreshed token: %s", err)
	}
	if err := m.store.UpdateSecret(ctx, workflowID, credentialName, string(encoded)); err != nil {
		return "", "", err
	}

	return token.AccessToken, token.TokenType, nil
}

// refreshModeB performs the client-credentials refresh for a Mode-B
// credential under the process-wide mutex, caching the result in-memory
// only.
func (m *Manager) refreshModeB(ctx context.Context, credentialName, workflowID, integrationType, storedPlaintext string) (string, string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// Re-check the cache: a waiter behind an in-flight refresh finds the
	// token that refresh inserted.
	key := cacheKey{credentialName: credentialName, workflowID: workflowID}
	if token, ok := m.cache.get(key, m.now()); ok {
		metrics.OAuthSingleflightJoins.Inc()
		return token.AccessToken, token.TokenType, nil
	}

	var secret msDefenderStoredSecret
	if err := json.Unmarshal([]byte(storedPlaintext), &secret); err != nil {
		return "", "", apperr.New(apperr.MalformedCredential, "received malformed credential: %s", err)
	}

	scope := scopeGraphMicrosoft
	if integrationType == string(model.IntegrationMSDefenderForCloud) {
		scope = scopeManagementAzure
	}

	cfg := clientcredentials.Config{
		ClientID:     secret.ClientID,
		ClientSecret: secret.ClientSecret,
		TokenURL:     "https://login.microsoftonline.com/" + secret.TenantID + "/oauth2/v2.0/token",
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	fresh, err := cfg.Token(m.httpCtx(ctx))
	if err != nil {
		metrics.OAuthRefreshTotal.WithLabelValues("client_credentials", "failure").Inc()
		return "", "", apperr.New(apperr.RefreshFailed, "error: failed to refresh token: %s", err)
	}
	metrics.OAuthRefreshTotal.WithLabelValues("client_credentials", "success").Inc()

	expiresAt := fresh.Expiry.Unix()
	if fresh.Expiry.IsZero() {
		expiresAt = m.now().Add(time.Hour).Unix()
	}
	token := model.OAuthAccessToken{
		AccessToken: fresh.AccessToken,
		TokenType:   fresh.Type(),
		ExpiresAt:   expiresAt,
	}
	m.cache.put(key, token, m.now())

	return token.AccessToken, token.TokenType, nil
}
