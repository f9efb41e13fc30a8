package integrations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const virusTotalIntegration = "VirusTotal"

type virusTotalCredential struct {
	APIKey string `json:"API_KEY"`
}

type virusTotalExecutor struct{}

func (virusTotalExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(virusTotalIntegration)
	}
	var cred virusTotalCredential
	if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
		return nil, err
	}

	if op, ok := virusTotalSimpleGetOps[api]; ok {
		return virusTotalSimpleGet(ctx, client, cred.APIKey, api, op, params, state)
	}

	switch api {
	case "SCAN_URL":
		return virusTotalScanURL(ctx, client, cred.APIKey, params, state)
	default:
		return nil, unsupportedAPIErr(api, virusTotalIntegration)
	}
}

// virusTotalOp describes a VirusTotal v3 GET endpoint that takes exactly
// one required string identifier parameter. urlEncode applies the "URL
// Identifier" base64-no-pad scheme VirusTotal requires for URL-keyed
// endpoints (see generate_virus_total_url_identifier in the original
// source); other resources are addressed directly by their natural ID.
type virusTotalOp struct {
	param     string
	pathf     func(identifier string) string
	urlEncode bool
}

var virusTotalSimpleGetOps = map[string]virusTotalOp{
	"GET_A_FILE_REPORT":                     {param: "hash", pathf: func(id string) string { return "/files/" + id }},
	"GET_FILE_BEHAVIOR_REPORTS_SUMMARY":      {param: "hash", pathf: func(id string) string { return "/files/" + id + "/behaviour_summary" }},
	"GET_VOTES_ON_A_FILE":                   {param: "hash", pathf: func(id string) string { return "/files/" + id + "/votes" }},
	"GET_COMMENTS_FILE":                     {param: "hash", pathf: func(id string) string { return "/files/" + id + "/comments" }},
	"GET_A_DOMAIN_REPORT":                   {param: "domain", pathf: func(id string) string { return "/domains/" + id }},
	"GET_VOTES_ON_A_DOMAIN":                 {param: "domain", pathf: func(id string) string { return "/domains/" + id + "/votes" }},
	"GET_COMMENTS_DOMAIN":                   {param: "domain", pathf: func(id string) string { return "/domains/" + id + "/comments" }},
	"GET_IP_ADDRESS_REPORT":                 {param: "ip_address", pathf: func(id string) string { return "/ip_addresses/" + id }},
	"GET_VOTES_ON_AN_IP_ADDRESS":            {param: "ip_address", pathf: func(id string) string { return "/ip_addresses/" + id + "/votes" }},
	"GET_COMMENTS_IP_ADDRESS":               {param: "ip_address", pathf: func(id string) string { return "/ip_addresses/" + id + "/comments" }},
	"GET_URL_ANALYSIS_REPORT":               {param: "url", pathf: func(id string) string { return "/urls/" + id }, urlEncode: true},
	"GET_VOTES_ON_A_URL":                    {param: "url", pathf: func(id string) string { return "/urls/" + id + "/votes" }, urlEncode: true},
	"GET_COMMENTS_URL":                      {param: "url", pathf: func(id string) string { return "/urls/" + id + "/comments" }, urlEncode: true},
	"SEARCH":                                {param: "query", pathf: func(id string) string { return "/search?query=" + url.QueryEscape(id) }},
}

func virusTotalURLIdentifier(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

func virusTotalSimpleGet(ctx context.Context, client httpadapter.Client, apiKey, api string, op virusTotalOp, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter(op.param, virusTotalIntegration, api, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	resolvedID := *identifier
	if op.urlEncode {
		resolvedID = virusTotalURLIdentifier(resolvedID)
	}

	apiURL := "https://www.virustotal.com/api/v3" + op.pathf(resolvedID)
	headers := map[string]string{"x-apikey": apiKey, "Content-Type": "application/json"}
	return client.Get(ctx, apiURL, headers, 200, "Error: Failed to call "+virusTotalIntegration+" API")
}

func virusTotalScanURL(ctx context.Context, client httpadapter.Client, apiKey string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	target, err := GetStringParameter("url", virusTotalIntegration, "SCAN_URL", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"x-apikey": apiKey}
	form := url.Values{"url": {*target}}.Encode()
	return client.PostForm(ctx, "https://www.virustotal.com/api/v3/urls", headers, form, 200, "Error: Failed to call "+virusTotalIntegration+" Scan URL API")
}
