package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// fakeStore is an in-memory credentialStore double, mirroring the
// original source's MockDbMSTeams.
type fakeStore struct {
	mu              sync.Mutex
	secrets         map[string]string
	integrationType string
}

func newFakeStore(secret, integrationType string) *fakeStore {
	return &fakeStore{secrets: map[string]string{"cred": secret}, integrationType: integrationType}
}

func (f *fakeStore) FetchSecret(_ context.Context, _, credentialName string) (string, *string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.integrationType
	return f.secrets[credentialName], &it, nil
}

func (f *fakeStore) UpdateSecret(_ context.Context, _, credentialName, plaintext string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[credentialName] = plaintext
	return nil
}

// countingTransport serves the IdP token endpoint: a fresh valid token on
// its first call and distinguishable stale tokens afterwards, so tests
// can assert that single-flight deduplicated concurrent refreshes down to
// exactly one upstream call.
type countingTransport struct {
	calls     int64
	tokenType string
	expiresIn int64
}

func (d *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt64(&d.calls, 1)

	payload := fmt.Sprintf(`{"access_token":"fresh-token","refresh_token":"fresh-refresh","token_type":"%s","expires_in":%d}`, d.tokenType, d.expiresIn)
	if n > 1 {
		payload = fmt.Sprintf(`{"access_token":"stale-%d","token_type":"%s","expires_in":%d}`, n, d.tokenType, d.expiresIn)
	}
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    req,
	}, nil
}

func newTestManager(store credentialStore, transport *countingTransport, clientID, clientSecret string) *Manager {
	return NewManager(store, &http.Client{Transport: transport}, clientID, clientSecret)
}

func TestModeBSingleFlightDedupesConcurrentRefresh(t *testing.T) {
	secret, _ := json.Marshal(msDefenderStoredSecret{TenantID: "tid", ClientID: "cid", ClientSecret: "secret"})
	store := newFakeStore(string(secret), string(model.IntegrationMSDefender))
	transport := &countingTransport{tokenType: "Bearer", expiresIn: 3600}
	mgr := newTestManager(store, transport, "", "")

	const n = 10
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			token, _, err := mgr.FetchAccessToken(context.Background(), "cred", "wf-1")
			if err != nil {
				t.Errorf("unexpected error: %s", err)
				return
			}
			results[idx] = token
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&transport.calls); got != 1 {
		t.Fatalf("expected exactly 1 upstream refresh call, got %d", got)
	}
	for i, r := range results {
		if r != "fresh-token" {
			t.Fatalf("result[%d] = %q, want fresh-token", i, r)
		}
	}

	// Cache should now be populated: a subsequent fetch performs no
	// further network call.
	token, _, err := mgr.FetchAccessToken(context.Background(), "cred", "wf-1")
	if err != nil {
		t.Fatalf("unexpected error on cached fetch: %s", err)
	}
	if token != "fresh-token" {
		t.Fatalf("cached token = %q, want fresh-token", token)
	}
	if got := atomic.LoadInt64(&transport.calls); got != 1 {
		t.Fatalf("expected no additional network call on cache hit, got %d total calls", got)
	}
}

func TestModeAWriteBack(t *testing.T) {
	expired := model.OAuthToken{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour).Unix(),
		Scope:        "scope-a",
		TokenType:    "Bearer",
	}
	encoded, _ := json.Marshal(expired)
	store := newFakeStore(string(encoded), string(model.IntegrationMSTeams))
	transport := &countingTransport{tokenType: "Bearer", expiresIn: 3600}
	mgr := newTestManager(store, transport, "client-id", "client-secret")

	token, _, err := mgr.FetchAccessToken(context.Background(), "cred", "wf-1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if token != "fresh-token" {
		t.Fatalf("token = %q, want fresh-token", token)
	}

	var stored model.OAuthToken
	if err := json.Unmarshal([]byte(store.secrets["cred"]), &stored); err != nil {
		t.Fatalf("stored credential is not valid JSON: %s", err)
	}
	if stored.AccessToken != "fresh-token" || stored.RefreshToken != "fresh-refresh" {
		t.Fatalf("stored token not updated: %+v", stored)
	}
	if stored.ExpiresAt <= time.Now().Unix() {
		t.Fatalf("stored token expiry not advanced: %d", stored.ExpiresAt)
	}

	// A subsequent call within validity performs no network refresh.
	_, _, err = mgr.FetchAccessToken(context.Background(), "cred", "wf-1")
	if err != nil {
		t.Fatalf("unexpected error on valid-token fetch: %s", err)
	}
	if got := atomic.LoadInt64(&transport.calls); got != 1 {
		t.Fatalf("expected exactly 1 refresh call total, got %d", got)
	}
}

// serializingTransport tracks how many token requests are in flight at
// once, holding each one open briefly so overlap would be observable.
type serializingTransport struct {
	inflight    int64
	maxInflight int64
	calls       int64
}

func (d *serializingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := atomic.AddInt64(&d.inflight, 1)
	for {
		max := atomic.LoadInt64(&d.maxInflight)
		if n <= max || atomic.CompareAndSwapInt64(&d.maxInflight, max, n) {
			break
		}
	}
	time.Sleep(30 * time.Millisecond)
	atomic.AddInt64(&d.inflight, -1)
	atomic.AddInt64(&d.calls, 1)

	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)),
		Request:    req,
	}, nil
}

func TestRefreshesForDifferentCredentialsSerialize(t *testing.T) {
	secret, _ := json.Marshal(msDefenderStoredSecret{TenantID: "tid", ClientID: "cid", ClientSecret: "secret"})
	store := newFakeStore(string(secret), string(model.IntegrationMSDefender))
	store.secrets["cred-2"] = string(secret)

	transport := &serializingTransport{}
	mgr := NewManager(store, &http.Client{Transport: transport}, "", "")

	// The refresh path is guarded by one process-wide mutex: refreshes
	// for two distinct credentials must not overlap.
	var wg sync.WaitGroup
	for _, name := range []string{"cred", "cred-2"} {
		wg.Add(1)
		go func(credentialName string) {
			defer wg.Done()
			if _, _, err := mgr.FetchAccessToken(context.Background(), credentialName, "wf-1"); err != nil {
				t.Errorf("unexpected error for %s: %s", credentialName, err)
			}
		}(name)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&transport.calls); got != 2 {
		t.Fatalf("expected one refresh per credential (2 total), got %d", got)
	}
	if got := atomic.LoadInt64(&transport.maxInflight); got != 1 {
		t.Fatalf("observed %d concurrent refreshes; the process-wide mutex must serialize them", got)
	}
}

func TestMissingIntegrationTypeIsConfigError(t *testing.T) {
	store := newFakeStore(`{}`, "")
	mgr := newTestManager(&nilIntegrationTypeStore{fakeStore: store}, &countingTransport{}, "", "")

	_, _, err := mgr.FetchAccessToken(context.Background(), "cred", "wf-1")
	if err == nil || !apperr.Is(err, apperr.ConfigError) {
		t.Fatalf("expected ConfigError for a credential with no integration type, got %v", err)
	}
}

// nilIntegrationTypeStore wraps fakeStore to return a nil integration
// type pointer, exercising the "no integration type at all" path (as
// opposed to fakeStore's always-present-but-possibly-empty string).
type nilIntegrationTypeStore struct {
	*fakeStore
}

func (n *nilIntegrationTypeStore) FetchSecret(_ context.Context, _, credentialName string) (string, *string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.secrets[credentialName], nil, nil
}
