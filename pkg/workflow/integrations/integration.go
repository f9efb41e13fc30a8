package integrations

import (
	"context"
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/model"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

// SecretFetcher is the narrow slice of credentials.Store an executor needs:
// typed decode of a stored credential.
type SecretFetcher interface {
	FetchTyped(ctx context.Context, workflowID, credentialName string, dest interface{}) (*string, error)
}

// Executor is the contract every concrete provider implements, mirroring
// the original source's IntegrationExecutor trait.
type Executor interface {
	Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error)
}

// registry maps each supported model.IntegrationType to its Executor. Built
// once at package init; Dispatch is the sole entrypoint C6's Integration
// action node calls.
var registry = map[model.IntegrationType]Executor{
	model.IntegrationSlack:              slackExecutor{},
	model.IntegrationMSTeams:            msTeamsExecutor{},
	model.IntegrationMSDefender:         msDefenderExecutor{},
	model.IntegrationMSDefenderForCloud: msDefenderForCloudExecutor{},
	model.IntegrationJira:               jiraExecutor{},
	model.IntegrationVirusTotal:         virusTotalExecutor{},
	model.IntegrationOpsgenie:           opsgenieExecutor{},
	model.IntegrationGreyNoise:          greyNoiseExecutor{},
	model.IntegrationAlienvaultOtx:      newThinAdapter("AlienVault OTX", "https://otx.alienvault.com/api/v1"),
	model.IntegrationThreatpost:         newThinAdapter("Threatpost", "https://threatpost.com/wp-json/wp/v2"),
	model.IntegrationYaraify:            newThinAdapter("YARAify", "https://yaraify-api.abuse.ch/api/v1"),
	model.IntegrationPhishReport:        newThinAdapter("Phish Report", "https://phish.report/api/v0"),
	model.IntegrationPulsedive:          newThinAdapter("Pulsedive", "https://pulsedive.com/api"),
}

// Dispatch runs integration.API against integration.IntegrationType's
// executor. apperr.ConfigError for an unrecognised integration type.
func Dispatch(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, integration *model.Integration, state refresolve.Lookup) (json.RawMessage, error) {
	executor, ok := registry[integration.IntegrationType]
	if !ok {
		return nil, apperr.New(apperr.ConfigError, "unsupported integration type: %q", integration.IntegrationType)
	}
	return executor.Execute(ctx, client, secrets, workflowID, integration.API, integration.Credential, integration.Params, state)
}

func missingCredentialErr(integration string) error {
	return apperr.New(apperr.MissingCredential, "Error: Missing credential for %s", integration)
}

func unsupportedAPIErr(api, integration string) error {
	return apperr.New(apperr.UnsupportedAPI, "API %s not implemented for %s.", api, integration)
}
