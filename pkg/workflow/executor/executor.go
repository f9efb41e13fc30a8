// Package executor implements the Workflow Executor (C9): breadth-first
// traversal of a loaded workflow graph, per-node dispatch through the
// action layer, run-state persistence after every node, and the final
// completion mark. Offline workflows short-circuit before any state row
// is written.
package executor

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-logr/logr"

	"github.com/kestrelsec/workflow-runner/pkg/metrics"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/actions"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/execstate"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/integrations"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/llm"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// Loader materialises a workflow (nodes + edges) from storage.
type Loader interface {
	LoadWorkflow(ctx context.Context, workflowID string) (*model.Workflow, error)
}

// RunStore persists run lifecycle state: open, per-node snapshot
// updates, and the completion mark.
type RunStore interface {
	InitRunState(ctx context.Context, workflowID string) (runID string, err error)
	UpdateRunState(ctx context.Context, runID string, state map[string]interface{}) error
	MarkRunCompleted(ctx context.Context, runID string) error
}

// Engine owns the process-wide collaborators a run needs and executes
// workflows against them. One Engine is built at startup and shared by
// every trigger.
type Engine struct {
	loader  Loader
	runs    RunStore
	secrets integrations.SecretFetcher
	http    httpadapter.Client
	llm     llm.Completer
	mail    actions.MailConfig
	log     logr.Logger
}

func NewEngine(loader Loader, runs RunStore, secrets integrations.SecretFetcher, http httpadapter.Client, completer llm.Completer, mail actions.MailConfig, log logr.Logger) *Engine {
	return &Engine{
		loader:  loader,
		runs:    runs,
		secrets: secrets,
		http:    http,
		llm:     completer,
		mail:    mail,
		log:     log,
	}
}

// RunWorkflow executes one run of workflowID starting at startHandle.
// initialPayload, when non-nil, is planted as the start node's output
// before traversal (the webhook-ingress case). Offline workflows return
// success without writing any state row.
func (e *Engine) RunWorkflow(ctx context.Context, workflowID, startHandle string, initialPayload interface{}) error {
	workflow, err := e.loader.LoadWorkflow(ctx, workflowID)
	if err != nil {
		return errors.Wrap(err, "load workflow")
	}

	if !workflow.IsLive {
		e.log.Info("workflow is offline, skipping run", "workflow_id", workflowID)
		metrics.WorkflowRunsTotal.WithLabelValues("offline").Inc()
		return nil
	}

	if _, ok := workflow.Actions[startHandle]; !ok {
		return apperr.New(apperr.NotFound, "start node %q does not exist in workflow %q", startHandle, workflowID)
	}

	runID, err := e.runs.InitRunState(ctx, workflowID)
	if err != nil {
		return errors.Wrap(err, "open run")
	}

	ec := &actions.ExecContext{
		WorkflowID: workflowID,
		RunID:      runID,
		State:      execstate.New(),
		Secrets:    e.secrets,
		HTTP:       e.http,
		LLM:        e.llm,
		Mail:       e.mail,
		Log:        e.log.WithValues("workflow_id", workflowID, "run_id", runID),
	}

	if initialPayload != nil {
		if err := e.persist(ctx, ec, startHandle, initialPayload); err != nil {
			metrics.WorkflowRunsTotal.WithLabelValues("failed").Inc()
			return err
		}
	}

	if err := e.traverse(ctx, workflow, startHandle, ec); err != nil {
		metrics.WorkflowRunsTotal.WithLabelValues("failed").Inc()
		return err
	}

	if err := e.runs.MarkRunCompleted(ctx, runID); err != nil {
		metrics.WorkflowRunsTotal.WithLabelValues("failed").Inc()
		return errors.Wrap(err, "complete run")
	}
	metrics.WorkflowRunsTotal.WithLabelValues("completed").Inc()
	return nil
}

// traverse visits nodes breadth-first from startHandle. Nodes run
// sequentially within a run, each at most once even when several edges
// lead to it; any node error aborts the traversal, leaving the partial
// state rows in place for forensic inspection.
func (e *Engine) traverse(ctx context.Context, workflow *model.Workflow, startHandle string, ec *actions.ExecContext) error {
	queue := []model.ReferenceHandle{startHandle}
	visited := make(map[model.ReferenceHandle]bool)

	for len(queue) > 0 {
		handle := queue[0]
		queue = queue[1:]
		if visited[handle] {
			continue
		}
		visited[handle] = true

		action, ok := workflow.Actions[handle]
		if !ok {
			return apperr.New(apperr.StateCorruption, "edge references unknown handle %q in workflow %q", handle, workflow.WorkflowID)
		}

		node, err := actions.Build(action)
		if err != nil {
			return nodeFailed(ec.Log, action, err)
		}

		ec.Log.Info("executing action",
			"action_type", string(action.ActionType),
			"action_id", action.ActionID,
			"reference_handle", action.ReferenceHandle,
		)

		started := time.Now()
		output, err := node.Execute(ctx, ec)
		metrics.ActionDuration.WithLabelValues(string(action.ActionType)).Observe(time.Since(started).Seconds())
		if err != nil {
			return nodeFailed(ec.Log, action, err)
		}

		if output != nil {
			if err := e.persist(ctx, ec, action.ReferenceHandle, output); err != nil {
				return nodeFailed(ec.Log, action, err)
			}
		}

		queue = append(queue, workflow.AdjList[handle]...)
	}

	return nil
}

// persist stores the node's output in the run's execution state and
// writes the accumulated snapshot to the run-state row, making the
// output visible to every later node in the run.
func (e *Engine) persist(ctx context.Context, ec *actions.ExecContext, handle string, output interface{}) error {
	ec.State.Store(handle, output)
	if err := e.runs.UpdateRunState(ctx, ec.RunID, ec.State.Snapshot()); err != nil {
		return errors.Wrap(err, "persist run state")
	}
	return nil
}

func nodeFailed(log logr.Logger, action *model.Action, err error) error {
	log.Error(err, "action failed, aborting run",
		"action_id", action.ActionID,
		"reference_handle", action.ReferenceHandle,
	)
	return err
}
