package integrations

import (
	"context"
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const greyNoiseIntegration = "GreyNoise"

type greyNoiseCredential struct {
	APIToken string `json:"API_TOKEN"`
}

type greyNoiseExecutor struct{}

func (greyNoiseExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(greyNoiseIntegration)
	}
	var cred greyNoiseCredential
	if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
		return nil, err
	}

	switch api {
	case "IP_LOOKUP":
		return greyNoiseIPLookup(ctx, client, cred.APIToken, params, state)
	default:
		return nil, unsupportedAPIErr(api, greyNoiseIntegration)
	}
}

func greyNoiseIPLookup(ctx context.Context, client httpadapter.Client, apiToken string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	ipAddress, err := GetStringParameter("IP_ADDRESS", greyNoiseIntegration, "IP_LOOKUP", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	apiURL := "https://api.greynoise.io/v2/noise/context/" + *ipAddress
	headers := map[string]string{"key": apiToken, "Accept": "application/json"}
	return client.Get(ctx, apiURL, headers, 200, "Error: Failed to call "+greyNoiseIntegration+" API")
}
