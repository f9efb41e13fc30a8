package actions

import (
	"context"
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/integrations"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// IntegrationNode adapts a parsed Integration definition to the Node
// capability by routing through the provider registry.
type IntegrationNode struct {
	Integration *model.Integration
}

func (n IntegrationNode) Execute(ctx context.Context, ec *ExecContext) (interface{}, error) {
	raw, err := integrations.Dispatch(ctx, ec.HTTP, ec.Secrets, ec.WorkflowID, n.Integration, ec.State)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
