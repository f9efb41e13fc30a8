// Package actions implements the Action Node polymorphism (C6): the
// closed set of built-in node kinds plus the Integration node, each a
// Node with one Execute capability. Dispatch is a two-level switch —
// action type first, integration provider second — never inheritance.
package actions

import (
	"github.com/go-logr/logr"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/execstate"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/integrations"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/llm"
)

// MailConfig is the process-level identity of the outbound mail gateway.
type MailConfig struct {
	APIKey      string
	SenderEmail string
}

// ExecContext is the run-scoped execution context handed to every
// Execute call: the run's identity, its exclusive execution state, and
// shared references to the process-wide collaborators.
type ExecContext struct {
	WorkflowID string
	RunID      string

	State   *execstate.State
	Secrets integrations.SecretFetcher
	HTTP    httpadapter.Client
	LLM     llm.Completer
	Mail    MailConfig

	Log logr.Logger
}
