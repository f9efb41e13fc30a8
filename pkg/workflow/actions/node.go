package actions

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
)

// Node is the single capability every action kind implements. A nil
// output (with nil error) means the node produced nothing to store —
// only the Webhook source behaves that way.
type Node interface {
	Execute(ctx context.Context, ec *ExecContext) (interface{}, error)
}

// validate checks decoded action definitions for required fields when
// Build is called, which the executor does for each node just before
// executing it: a malformed definition fails the run before that node
// makes any network call, but after earlier nodes have already run.
var validate = validator.New()

// Build decodes an Action's type-specific definition into its Node.
// Unknown action types and malformed definitions are ConfigErrors.
func Build(action *model.Action) (Node, error) {
	switch action.ActionType {
	case model.ActionTypeWebhook:
		return Webhook{}, nil

	case model.ActionTypeManualStart:
		var node ManualStart
		if err := decodeDefinition(action, &node); err != nil {
			return nil, err
		}
		return node, nil

	case model.ActionTypeHTTPRequest:
		var node HTTPRequest
		if err := decodeDefinition(action, &node); err != nil {
			return nil, err
		}
		return node, nil

	case model.ActionTypeIfCondition:
		var node IfCondition
		if err := decodeDefinition(action, &node); err != nil {
			return nil, err
		}
		return node, nil

	case model.ActionTypeAIInference:
		return parseAIInference(action.ActionName, action.ActionDefinition)

	case model.ActionTypeSendEmail:
		var node SendEmail
		if err := decodeDefinition(action, &node); err != nil {
			return nil, err
		}
		return node, nil

	case model.ActionTypeIntegration:
		integration, err := model.ParseIntegrationDefinition(action.ActionName, action.ActionDefinition)
		if err != nil {
			return nil, err
		}
		return IntegrationNode{Integration: integration}, nil

	default:
		return nil, apperr.New(apperr.ConfigError, "unknown action type: %q", action.ActionType)
	}
}

func decodeDefinition(action *model.Action, dest interface{}) error {
	if len(action.ActionDefinition) > 0 {
		if err := json.Unmarshal(action.ActionDefinition, dest); err != nil {
			return apperr.New(apperr.ConfigError, "Configuration Error for %s Action %q: %s", action.ActionType, action.ActionName, err)
		}
	}
	if err := validate.Struct(dest); err != nil {
		return apperr.New(apperr.ConfigError, "Configuration Error for %s Action %q: %s", action.ActionType, action.ActionName, err)
	}
	return nil
}
