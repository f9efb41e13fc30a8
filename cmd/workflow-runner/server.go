package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kestrelsec/workflow-runner/internal/authmiddleware"
	"github.com/kestrelsec/workflow-runner/internal/store"
	"github.com/kestrelsec/workflow-runner/pkg/shared/logging"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

// workflowRunner is the slice of executor.Engine the HTTP surface needs.
type workflowRunner interface {
	RunWorkflow(ctx context.Context, workflowID, startHandle string, initialPayload interface{}) error
}

type webhookStore interface {
	FetchWebhook(ctx context.Context, webhookID string) (*store.Webhook, error)
}

type server struct {
	runner   workflowRunner
	webhooks webhookStore
	jwtKey   []byte
	logger   *zap.Logger
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(authmiddleware.Middleware(s.jwtKey)).
			Post("/workflows/{workflowID}/trigger", s.handleTrigger)
		r.Post("/webhooks/{webhookID}/{secret}", s.handleWebhook)
	})

	return r
}

type triggerRequest struct {
	StartReferenceHandle string      `json:"start_reference_handle"`
	Payload              interface{} `json:"payload"`
}

// handleTrigger starts a run manually. The run executes synchronously;
// a failed run answers with a generic error payload, never internals.
func (s *server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartReferenceHandle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_reference_handle is required"})
		return
	}

	s.runWorkflow(w, r.Context(), workflowID, req.StartReferenceHandle, req.Payload)
}

// handleWebhook is the ingress trigger: the webhook id and shared
// secret come from the URL, the event payload from the request body.
// Slack URL-verification handshakes are answered without running any
// workflow.
func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	webhookID := chi.URLParam(r, "webhookID")
	secret := chi.URLParam(r, "secret")

	webhook, err := s.webhooks.FetchWebhook(r.Context(), webhookID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "webhook does not exist"})
			return
		}
		s.logger.Error("webhook lookup failed",
			logging.New().Component("server").Operation("fetch_webhook").Error(err).ToZap()...)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(webhook.WebhookSecret), []byte(secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	if challenge := slackURLVerificationResponse(r.Header, rawBody); challenge != nil {
		s.logger.Info("answering slack url verification handshake", zap.String("webhook_id", webhookID))
		writeJSON(w, http.StatusOK, map[string]string{"challenge": challenge.Challenge})
		return
	}

	event := map[string]interface{}{"headers": headerMap(r.Header)}
	if len(rawBody) > 0 {
		var body interface{}
		if err := json.Unmarshal(rawBody, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be JSON"})
			return
		}
		event["body"] = body
	}

	s.runWorkflow(w, r.Context(), webhook.WorkflowID, webhook.ReferenceHandle, event)
}

func (s *server) runWorkflow(w http.ResponseWriter, ctx context.Context, workflowID, startHandle string, payload interface{}) {
	if err := s.runner.RunWorkflow(ctx, workflowID, startHandle, payload); err != nil {
		if apperr.Is(err, apperr.NotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "workflow does not exist"})
			return
		}
		s.logger.Error("workflow run failed",
			logging.WorkflowFields("run", workflowID).
				Custom("start_reference_handle", startHandle).
				Error(err).
				ToZap()...)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "workflow run failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// headerMap lowercases header names so reference paths into the planted
// event are case-stable.
func headerMap(headers http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
