// Package store is the relational persistence layer behind the workflow
// loader (C8), the run-state lifecycle used by the executor (C9), and
// webhook trigger lookup. Queries run through sqlx over the pgx stdlib
// driver.
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type workflowRow struct {
	WorkflowID   string `db:"workflow_id"`
	WorkflowName string `db:"workflow_name"`
	IsLive       bool   `db:"is_live"`
}

type actionRow struct {
	ActionID         string          `db:"action_id"`
	ActionName       string          `db:"action_name"`
	ReferenceHandle  string          `db:"reference_handle"`
	ActionType       string          `db:"action_type"`
	ActionDefinition json.RawMessage `db:"action_definition"`
}

type edgeRow struct {
	ParentReferenceHandle string `db:"parent_reference_handle"`
	ChildReferenceHandle  string `db:"child_reference_handle"`
}

// LoadWorkflow materialises the workflow graph from its relational rows
// and validates handle closure: every edge endpoint must exist as an
// action before the graph is handed to the executor.
func (s *Store) LoadWorkflow(ctx context.Context, workflowID string) (*model.Workflow, error) {
	if _, err := uuid.Parse(workflowID); err != nil {
		return nil, apperr.New(apperr.NotFound, "invalid workflow id %q: %s", workflowID, err)
	}

	var workflow workflowRow
	err := s.db.GetContext(ctx, &workflow,
		`SELECT workflow_id, workflow_name, is_live FROM workflows WHERE workflow_id = $1 LIMIT 1`,
		workflowID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "workflow %q does not exist", workflowID)
		}
		return nil, errors.Wrap(err, "fetch workflow")
	}

	// Actions and edges are independent row sets; fetch them concurrently.
	var (
		actionRows []actionRow
		edgeRows   []edgeRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.db.SelectContext(gctx, &actionRows,
			`SELECT action_id, action_name, reference_handle, action_type, action_definition FROM actions WHERE workflow_id = $1`,
			workflowID)
		if err != nil {
			return errors.Wrap(err, "fetch actions")
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.SelectContext(gctx, &edgeRows,
			`SELECT parent_reference_handle, child_reference_handle FROM workflow_edges WHERE workflow_id = $1`,
			workflowID)
		if err != nil {
			return errors.Wrap(err, "fetch workflow edges")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	actions := make(map[model.ReferenceHandle]*model.Action, len(actionRows))
	for _, row := range actionRows {
		actions[row.ReferenceHandle] = &model.Action{
			ActionID:         row.ActionID,
			WorkflowID:       workflow.WorkflowID,
			ActionName:       row.ActionName,
			ReferenceHandle:  row.ReferenceHandle,
			ActionType:       model.ActionType(row.ActionType),
			ActionDefinition: row.ActionDefinition,
		}
	}

	adjList := make(map[model.ReferenceHandle][]model.ReferenceHandle)
	for _, edge := range edgeRows {
		if _, ok := actions[edge.ParentReferenceHandle]; !ok {
			return nil, apperr.New(apperr.StateCorruption,
				"workflow %q edge parent %q has no matching action", workflowID, edge.ParentReferenceHandle)
		}
		if _, ok := actions[edge.ChildReferenceHandle]; !ok {
			return nil, apperr.New(apperr.StateCorruption,
				"workflow %q edge child %q has no matching action", workflowID, edge.ChildReferenceHandle)
		}
		adjList[edge.ParentReferenceHandle] = append(adjList[edge.ParentReferenceHandle], edge.ChildReferenceHandle)
	}

	return &model.Workflow{
		WorkflowID:   workflow.WorkflowID,
		WorkflowName: workflow.WorkflowName,
		IsLive:       workflow.IsLive,
		Actions:      actions,
		AdjList:      adjList,
	}, nil
}

// InitRunState opens a new run with an empty state row and returns its
// generated run id.
func (s *Store) InitRunState(ctx context.Context, workflowID string) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflow_run_states ( run_id, workflow_id, run_state ) VALUES ( $1, $2, $3 )`,
		runID, workflowID, []byte(`{}`))
	if err != nil {
		return "", errors.Wrap(err, "init run state")
	}
	return runID, nil
}

// UpdateRunState re-serializes the accumulated execution state into the
// run's single JSONB column. Updating a run that was never initialized
// is an internal invariant breach, not a silent no-op.
func (s *Store) UpdateRunState(ctx context.Context, runID string, state map[string]interface{}) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode run state")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE workflow_run_states
		 SET last_updated_timestamp = CURRENT_TIMESTAMP,
		     run_state = $1
		 WHERE run_id = $2`,
		encoded, runID)
	if err != nil {
		return errors.Wrap(err, "update run state")
	}
	return s.expectOneRow(result, runID)
}

// MarkRunCompleted writes the completion timestamp for a run.
func (s *Store) MarkRunCompleted(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE workflow_run_states
		 SET completed_timestamp = CURRENT_TIMESTAMP
		 WHERE run_id = $1`,
		runID)
	if err != nil {
		return errors.Wrap(err, "mark run completed")
	}
	return s.expectOneRow(result, runID)
}

func (s *Store) expectOneRow(result sql.Result, runID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "confirm run state write")
	}
	if rows != 1 {
		return apperr.New(apperr.StateCorruption,
			"trying to update workflow run state for run id %s without initializing it first", runID)
	}
	return nil
}

// Webhook is the trigger-side view of a webhook row: the workflow and
// start node it points at plus the shared secret for request
// authentication.
type Webhook struct {
	WebhookID       string `db:"webhook_id"`
	WorkflowID      string `db:"workflow_id"`
	ReferenceHandle string `db:"reference_handle"`
	WebhookSecret   string `db:"webhook_secret"`
}

// FetchWebhook resolves a webhook id to its workflow entry point.
// apperr.NotFound when no row matches.
func (s *Store) FetchWebhook(ctx context.Context, webhookID string) (*Webhook, error) {
	if _, err := uuid.Parse(webhookID); err != nil {
		return nil, apperr.New(apperr.NotFound, "invalid webhook id %q: %s", webhookID, err)
	}

	var webhook Webhook
	err := s.db.GetContext(ctx, &webhook,
		`SELECT w.webhook_id, a.workflow_id, a.reference_handle, w.webhook_secret
		 FROM webhooks w
		 JOIN actions a ON w.action_id = a.action_id
		 WHERE w.webhook_id = $1
		 LIMIT 1`,
		webhookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.New(apperr.NotFound, "webhook %q does not exist", webhookID)
		}
		return nil, errors.Wrap(err, "fetch webhook")
	}
	return &webhook, nil
}
