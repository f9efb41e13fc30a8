// Package httpadapter implements the HTTP Adapter (C5): the single path
// through which action nodes and integration executors reach the network.
// It is grounded on the original source's HttpClient trait
// (http_client.rs) — get/post/put/delete plus the OAuth-refreshing
// get_with_oauth_refresh/post_with_oauth_refresh variants used by MS Teams,
// MS Defender and MS Defender for Cloud — generalized to a Go interface and
// wrapped per-destination-host with a sony/gobreaker circuit breaker, the
// resilience library the teacher repo depends on for exactly this purpose.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

// TokenSource is the narrow slice of oauth.Manager the adapter depends on.
type TokenSource interface {
	FetchAccessToken(ctx context.Context, credentialName, workflowID string) (accessToken, tokenType string, err error)
}

// Client is the Integration Executor contract's HTTP surface (C7 depends
// on this, not on *http.Client directly, so tests can substitute a double
// the way the original source's tests substitute MockHttpClient).
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error)
	Post(ctx context.Context, url string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error)
	Put(ctx context.Context, url string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error)
	Delete(ctx context.Context, url string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error)
	PostForm(ctx context.Context, url string, headers map[string]string, form string, expectedStatus int, errMsg string) (json.RawMessage, error)
	GetWithOAuthRefresh(ctx context.Context, workflowID, url, credentialName string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error)
	PostWithOAuthRefresh(ctx context.Context, workflowID, url, credentialName string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error)
}

// Adapter is the concrete Client implementation.
type Adapter struct {
	httpClient *http.Client
	oauth      TokenSource

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func New(httpClient *http.Client, tokenSource TokenSource) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		oauth:      tokenSource,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// breakerFor returns (creating if necessary) the circuit breaker guarding
// calls to rawURL's host, so a single failing integration endpoint can't
// cascade into unrelated integrations.
func (a *Adapter) breakerFor(rawURL string) *gobreaker.CircuitBreaker {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.breakers[host]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: host,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	a.breakers[host] = b
	return b
}

func (a *Adapter) do(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader, expectedStatus int, errMsg string) (json.RawMessage, error) {
	breaker := a.breakerFor(rawURL)

	result, err := breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return nil, apperr.New(apperr.UpstreamHTTPError, "%s: %s", errMsg, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperr.New(apperr.UpstreamHTTPError, "%s: %s", errMsg, err)
		}

		if resp.StatusCode != expectedStatus {
			return nil, apperr.New(apperr.UpstreamHTTPError, "%s (status %d): %s", errMsg, resp.StatusCode, string(respBody))
		}

		if len(respBody) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(respBody), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func jsonBody(body interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(encoded), nil
}

func withContentType(headers map[string]string) map[string]string {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	if _, ok := merged["Content-Type"]; !ok {
		merged["Content-Type"] = "application/json"
	}
	return merged
}

func (a *Adapter) Get(ctx context.Context, rawURL string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error) {
	return a.do(ctx, http.MethodGet, rawURL, headers, nil, expectedStatus, errMsg)
}

func (a *Adapter) Post(ctx context.Context, rawURL string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error) {
	reader, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return a.do(ctx, http.MethodPost, rawURL, withContentType(headers), reader, expectedStatus, errMsg)
}

func (a *Adapter) Put(ctx context.Context, rawURL string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error) {
	reader, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return a.do(ctx, http.MethodPut, rawURL, withContentType(headers), reader, expectedStatus, errMsg)
}

func (a *Adapter) Delete(ctx context.Context, rawURL string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error) {
	return a.do(ctx, http.MethodDelete, rawURL, headers, nil, expectedStatus, errMsg)
}

// PostForm posts a pre-encoded application/x-www-form-urlencoded body, used
// by VirusTotal's SCAN_URL operation.
func (a *Adapter) PostForm(ctx context.Context, rawURL string, headers map[string]string, form string, expectedStatus int, errMsg string) (json.RawMessage, error) {
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Content-Type"] = "application/x-www-form-urlencoded"
	return a.do(ctx, http.MethodPost, rawURL, merged, bytes.NewReader([]byte(form)), expectedStatus, errMsg)
}

func (a *Adapter) oauthHeaders(ctx context.Context, workflowID, credentialName string, headers map[string]string) (map[string]string, error) {
	accessToken, tokenType, err := a.oauth.FetchAccessToken(ctx, credentialName, workflowID)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		merged[k] = v
	}
	merged["Authorization"] = tokenType + " " + accessToken
	return merged, nil
}

func (a *Adapter) GetWithOAuthRefresh(ctx context.Context, workflowID, rawURL, credentialName string, headers map[string]string, expectedStatus int, errMsg string) (json.RawMessage, error) {
	merged, err := a.oauthHeaders(ctx, workflowID, credentialName, headers)
	if err != nil {
		return nil, err
	}
	return a.Get(ctx, rawURL, merged, expectedStatus, errMsg)
}

func (a *Adapter) PostWithOAuthRefresh(ctx context.Context, workflowID, rawURL, credentialName string, headers map[string]string, body interface{}, expectedStatus int, errMsg string) (json.RawMessage, error) {
	merged, err := a.oauthHeaders(ctx, workflowID, credentialName, headers)
	if err != nil {
		return nil, err
	}
	return a.Post(ctx, rawURL, merged, body, expectedStatus, errMsg)
}
