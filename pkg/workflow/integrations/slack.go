package integrations

import (
	"context"
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const slackIntegration = "Slack"

// slackCredential mirrors the original source's SCREAMING_SNAKE_CASE
// credential JSON shape (integration_action/slack.rs).
type slackCredential struct {
	APIKey string `json:"API_KEY"`
}

type slackExecutor struct{}

func (slackExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(slackIntegration)
	}
	var cred slackCredential
	if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
		return nil, err
	}

	switch api {
	case "SEND_MESSAGE":
		return slackSendMessage(ctx, client, cred, params, state)
	default:
		return nil, unsupportedAPIErr(api, slackIntegration)
	}
}

func slackSendMessage(ctx context.Context, client httpadapter.Client, cred slackCredential, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	channel, err := GetStringParameter("channel", slackIntegration, "SEND_MESSAGE", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	text, err := GetStringParameter("text", slackIntegration, "SEND_MESSAGE", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	blocks, err := GetStringParameter("blocks", slackIntegration, "SEND_MESSAGE", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	threadTS, err := GetStringParameter("thread_ts", slackIntegration, "SEND_MESSAGE", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"channel": *channel,
		"text":    *text,
	}
	if blocks != nil {
		body["blocks"] = *blocks
	}
	if threadTS != nil {
		body["thread_ts"] = *threadTS
	}

	headers := map[string]string{"Authorization": "Bearer " + cred.APIKey}
	return client.Post(ctx, "https://api.slack.com/api/chat.postMessage", headers, body, 200, "Failed to call "+slackIntegration+" - Send Message API")
}
