package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kestrelsec/workflow-runner/internal/store"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

type fakeRunner struct {
	workflowID  string
	startHandle string
	payload     interface{}
	err         error
	calls       int
}

func (f *fakeRunner) RunWorkflow(_ context.Context, workflowID, startHandle string, payload interface{}) error {
	f.calls++
	f.workflowID, f.startHandle, f.payload = workflowID, startHandle, payload
	return f.err
}

type fakeWebhooks struct {
	webhook *store.Webhook
	err     error
}

func (f *fakeWebhooks) FetchWebhook(context.Context, string) (*store.Webhook, error) {
	return f.webhook, f.err
}

func newTestServer(runner *fakeRunner, webhooks *fakeWebhooks) *server {
	return &server{
		runner:   runner,
		webhooks: webhooks,
		jwtKey:   []byte("verification-key"),
		logger:   zap.NewNop(),
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, &fakeWebhooks{})
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK || recorder.Body.String() != "OK" {
		t.Fatalf("health = %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestTriggerRequiresToken(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(runner, &fakeWebhooks{})

	body := strings.NewReader(`{"start_reference_handle":"A"}`)
	request := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/wf-1/trigger", body)
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if runner.calls != 0 {
		t.Fatal("runner must not be invoked without a valid token")
	}
}

func TestWebhookTriggerRunsWorkflow(t *testing.T) {
	runner := &fakeRunner{}
	webhooks := &fakeWebhooks{webhook: &store.Webhook{
		WebhookID:       "wh-1",
		WorkflowID:      "wf-1",
		ReferenceHandle: "W",
		WebhookSecret:   "s3cret",
	}}
	srv := newTestServer(runner, webhooks)

	body := strings.NewReader(`{"id":"42"}`)
	request := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wh-1/s3cret", body)
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", recorder.Code, recorder.Body.String())
	}
	if runner.workflowID != "wf-1" || runner.startHandle != "W" {
		t.Fatalf("runner called with %q %q", runner.workflowID, runner.startHandle)
	}

	event := runner.payload.(map[string]interface{})
	eventBody := event["body"].(map[string]interface{})
	if eventBody["id"] != "42" {
		t.Fatalf("planted body = %v", eventBody)
	}
}

func TestWebhookTriggerRejectsWrongSecret(t *testing.T) {
	runner := &fakeRunner{}
	webhooks := &fakeWebhooks{webhook: &store.Webhook{WebhookSecret: "s3cret", ReferenceHandle: "W"}}
	srv := newTestServer(runner, webhooks)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wh-1/wrong", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if runner.calls != 0 {
		t.Fatal("runner must not be invoked with a wrong secret")
	}
}

func TestWebhookUnknownIDIs404(t *testing.T) {
	webhooks := &fakeWebhooks{err: apperr.New(apperr.NotFound, "webhook does not exist")}
	srv := newTestServer(&fakeRunner{}, webhooks)

	request := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wh-404/s", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
}

func TestSlackURLVerificationHandshake(t *testing.T) {
	runner := &fakeRunner{}
	webhooks := &fakeWebhooks{webhook: &store.Webhook{WebhookSecret: "s3cret", ReferenceHandle: "W"}}
	srv := newTestServer(runner, webhooks)

	body := strings.NewReader(`{"token":"Jhj5dZrVaK7ZwHHjRyZWjbDl","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`)
	request := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/wh-1/s3cret", body)
	request.Header.Set("User-Agent", slackbotUserAgent)
	recorder := httptest.NewRecorder()
	srv.routes().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var response map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("response is not JSON: %s", err)
	}
	if response["challenge"] != "3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P" {
		t.Fatalf("challenge = %q", response["challenge"])
	}
	if runner.calls != 0 {
		t.Fatal("handshake must not trigger a workflow run")
	}
}

func TestSlackHandshakeIgnoredForNormalRequests(t *testing.T) {
	if resp := slackURLVerificationResponse(http.Header{}, []byte(`{"some":"other request"}`)); resp != nil {
		t.Fatalf("unexpected handshake response: %+v", resp)
	}
}
