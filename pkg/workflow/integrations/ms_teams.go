package integrations

import (
	"context"
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const msTeamsIntegration = "Microsoft Teams"

type msTeamsExecutor struct{}

func (msTeamsExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(msTeamsIntegration)
	}

	switch api {
	case "SEND_MESSAGE_IN_CHANNEL":
		return msTeamsSendMessageInChannel(ctx, client, workflowID, *credentialName, params, state)
	default:
		return nil, unsupportedAPIErr(api, msTeamsIntegration)
	}
}

// msTeamsSendMessageInChannel is OAuth Mode-A: the adapter refreshes (or
// reuses) the access token transparently before issuing the call.
func msTeamsSendMessageInChannel(ctx context.Context, client httpadapter.Client, workflowID, credentialName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	teamID, err := GetStringParameter("TEAM_ID", msTeamsIntegration, "SEND_MESSAGE_IN_CHANNEL", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	channelID, err := GetStringParameter("CHANNEL_ID", msTeamsIntegration, "SEND_MESSAGE_IN_CHANNEL", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	message, err := GetStringParameter("MESSAGE", msTeamsIntegration, "SEND_MESSAGE_IN_CHANNEL", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	apiURL := "https://graph.microsoft.com/v1.0/teams/" + *teamID + "/channels/" + *channelID + "/messages"
	body := map[string]interface{}{
		"body": map[string]interface{}{"content": *message},
	}

	return client.PostWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, body, 201, "Error: Failed to call "+msTeamsIntegration+" Send Message in Channel API")
}
