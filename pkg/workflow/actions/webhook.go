package actions

import "context"

// Webhook is a graph entry point only: its output is the ingress
// payload, which the executor plants into the execution state before
// traversal begins. Execute itself never produces a value.
type Webhook struct{}

func (Webhook) Execute(_ context.Context, ec *ExecContext) (interface{}, error) {
	ec.Log.Info("executing webhook source node", "workflow_id", ec.WorkflowID)
	return nil, nil
}
