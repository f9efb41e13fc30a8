package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

const (
	testWorkflowID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	testRunID      = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"
	testWebhookID  = "6ba7b812-9dad-11d1-80b4-00c04fd430c8"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %s", err)
	}
	// LoadWorkflow fetches actions and edges concurrently; their arrival
	// order at the driver is not deterministic.
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "pgx")), mock
}

func TestLoadWorkflowBuildsGraph(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT workflow_id, workflow_name, is_live FROM workflows`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"workflow_id", "workflow_name", "is_live"}).
			AddRow(testWorkflowID, "Phishing Triage", true))

	mock.ExpectQuery(`SELECT action_id, action_name, reference_handle, action_type, action_definition FROM actions`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"action_id", "action_name", "reference_handle", "action_type", "action_definition"}).
			AddRow("a-1", "Start", "A", "MANUAL_START", []byte(`{"input":{}}`)).
			AddRow("b-1", "Check", "B", "IF_CONDITION", []byte(`{"conditions":[]}`)))

	mock.ExpectQuery(`SELECT parent_reference_handle, child_reference_handle FROM workflow_edges`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"parent_reference_handle", "child_reference_handle"}).
			AddRow("A", "B"))

	workflow, err := store.LoadWorkflow(context.Background(), testWorkflowID)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if workflow.WorkflowName != "Phishing Triage" || !workflow.IsLive {
		t.Fatalf("workflow row mismatch: %+v", workflow)
	}
	if len(workflow.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(workflow.Actions))
	}
	if workflow.Actions["A"].ActionType != model.ActionTypeManualStart {
		t.Fatalf("action A type = %s", workflow.Actions["A"].ActionType)
	}
	if got := workflow.AdjList["A"]; len(got) != 1 || got[0] != "B" {
		t.Fatalf("adjacency for A = %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWorkflowRejectsDanglingEdge(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT workflow_id, workflow_name, is_live FROM workflows`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"workflow_id", "workflow_name", "is_live"}).
			AddRow(testWorkflowID, "Broken", true))

	mock.ExpectQuery(`SELECT action_id, action_name, reference_handle, action_type, action_definition FROM actions`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"action_id", "action_name", "reference_handle", "action_type", "action_definition"}).
			AddRow("a-1", "Start", "A", "MANUAL_START", []byte(`{}`)))

	mock.ExpectQuery(`SELECT parent_reference_handle, child_reference_handle FROM workflow_edges`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"parent_reference_handle", "child_reference_handle"}).
			AddRow("A", "GHOST"))

	_, err := store.LoadWorkflow(context.Background(), testWorkflowID)
	if err == nil || !apperr.Is(err, apperr.StateCorruption) {
		t.Fatalf("expected StateCorruption for dangling edge, got %v", err)
	}
}

func TestLoadWorkflowNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT workflow_id, workflow_name, is_live FROM workflows`).
		WithArgs(testWorkflowID).
		WillReturnRows(sqlmock.NewRows([]string{"workflow_id", "workflow_name", "is_live"}))

	_, err := store.LoadWorkflow(context.Background(), testWorkflowID)
	if err == nil || !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestInitRunStateInsertsEmptyRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO workflow_run_states`).
		WithArgs(sqlmock.AnyArg(), testWorkflowID, []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	runID, err := store.InitRunState(context.Background(), testWorkflowID)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if runID == "" {
		t.Fatal("expected a generated run id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateRunStateWithoutRowIsStateCorruption(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE workflow_run_states`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateRunState(context.Background(), testRunID, map[string]interface{}{"A": 1})
	if err == nil || !apperr.Is(err, apperr.StateCorruption) {
		t.Fatalf("expected StateCorruption, got %v", err)
	}
}

func TestMarkRunCompletedWithoutRowIsStateCorruption(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE workflow_run_states`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkRunCompleted(context.Background(), testRunID)
	if err == nil || !apperr.Is(err, apperr.StateCorruption) {
		t.Fatalf("expected StateCorruption, got %v", err)
	}
}

func TestMarkRunCompletedWritesTimestamp(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE workflow_run_states`).
		WithArgs(testRunID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkRunCompleted(context.Background(), testRunID); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFetchWebhookNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT w.webhook_id`).
		WithArgs(testWebhookID).
		WillReturnRows(sqlmock.NewRows([]string{"webhook_id", "workflow_id", "reference_handle", "webhook_secret"}))

	_, err := store.FetchWebhook(context.Background(), testWebhookID)
	if err == nil || !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFetchWebhookResolvesEntryPoint(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT w.webhook_id`).
		WithArgs(testWebhookID).
		WillReturnRows(sqlmock.NewRows([]string{"webhook_id", "workflow_id", "reference_handle", "webhook_secret"}).
			AddRow(testWebhookID, testWorkflowID, "W", "s3cret"))

	webhook, err := store.FetchWebhook(context.Background(), testWebhookID)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if webhook.ReferenceHandle != "W" || webhook.WebhookSecret != "s3cret" {
		t.Fatalf("webhook = %+v", webhook)
	}
}
