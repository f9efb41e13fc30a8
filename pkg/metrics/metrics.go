// Package metrics holds the runner's Prometheus collectors: workflow run
// outcomes, per-action execution latency, and OAuth refresh activity.
// Collectors are registered once at package init on the default registry
// and exposed by cmd/workflow-runner's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowRunsTotal counts finished runs by terminal status
	// ("completed", "failed", "offline").
	WorkflowRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_runs_total",
		Help: "Number of workflow runs by terminal status.",
	}, []string{"status"})

	// ActionDuration observes wall-clock execution time of a single
	// action node, labeled by its action type tag.
	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_action_duration_seconds",
		Help:    "Execution latency of individual workflow actions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action_type"})

	// OAuthRefreshTotal counts upstream token refresh calls by flow mode
	// ("refresh_token" for Mode A, "client_credentials" for Mode B) and
	// outcome.
	OAuthRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_refresh_total",
		Help: "Upstream OAuth token refresh calls by grant type and outcome.",
	}, []string{"grant_type", "outcome"})

	// OAuthSingleflightJoins counts callers that joined an in-flight
	// refresh instead of issuing their own upstream call.
	OAuthSingleflightJoins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oauth_refresh_singleflight_joins_total",
		Help: "Callers deduplicated into an already-running token refresh.",
	})
)
