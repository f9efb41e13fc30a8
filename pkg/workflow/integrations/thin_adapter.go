package integrations

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

// thinOp is one API operation of a thin adapter: at most one string
// parameter, a fixed request shape against the provider's base URL.
type thinOp struct {
	method string
	param  string
	// build produces the request URL and optional JSON body from the base
	// URL and the resolved parameter value ("" when param is unset).
	build func(base, value string) (apiURL string, body interface{})
	// headers injects the provider's authentication scheme; apiKey is ""
	// when the provider takes no credential.
	headers func(apiKey string) map[string]string
}

// thinAdapter covers the providers whose surface collapses to at most
// one API key and one or two fixed operations: AlienVault OTX,
// Threatpost, YARAify, Phish Report, and Pulsedive. Each keeps the exact
// operation names and request shapes of its full counterpart.
type thinAdapter struct {
	name            string
	baseURL         string
	needsCredential bool
	ops             map[string]thinOp
}

func jsonHeaders(string) map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

func newThinAdapter(name, baseURL string) thinAdapter {
	adapter := thinAdapter{name: name, baseURL: baseURL}
	switch name {
	case "AlienVault OTX":
		adapter.needsCredential = true
		adapter.ops = map[string]thinOp{
			"GET_DOMAIN_INFORMATION": {
				method: "GET",
				param:  "domain",
				build: func(base, domain string) (string, interface{}) {
					return base + "/indicators/domain/" + domain + "/general", nil
				},
				headers: func(apiKey string) map[string]string {
					return map[string]string{"X-OTX-API-KEY": apiKey, "Content-Type": "application/json"}
				},
			},
		}
	case "Threatpost":
		adapter.ops = map[string]thinOp{
			"FETCH_RSS_FEED": {
				method: "GET",
				build: func(base, _ string) (string, interface{}) {
					return base + "/posts", nil
				},
				headers: jsonHeaders,
			},
		}
	case "YARAify":
		adapter.ops = map[string]thinOp{
			"QUERY_A_FILE_HASH": {
				method: "POST",
				param:  "hash",
				build: func(base, hash string) (string, interface{}) {
					return base + "/", map[string]interface{}{"query": "lookup_hash", "search_term": hash}
				},
				headers: jsonHeaders,
			},
			"LIST_RECENTLY_DEPLOYED_YARA_RULES": {
				method: "POST",
				build: func(base, _ string) (string, interface{}) {
					return base + "/", map[string]interface{}{"query": "recent_yararules"}
				},
				headers: jsonHeaders,
			},
		}
	case "Phish Report":
		adapter.needsCredential = true
		adapter.ops = map[string]thinOp{
			"LIST_TAKEDOWNS": {
				method: "GET",
				build: func(base, _ string) (string, interface{}) {
					return base + "/cases", nil
				},
				headers: func(apiKey string) map[string]string {
					return map[string]string{"Authorization": "Bearer " + apiKey, "Content-Type": "application/json"}
				},
			},
			"START_TAKEDOWN": {
				method: "POST",
				param:  "url",
				build: func(base, target string) (string, interface{}) {
					return base + "/cases", map[string]interface{}{"url": target}
				},
				headers: func(apiKey string) map[string]string {
					return map[string]string{"Authorization": "Bearer " + apiKey, "Content-Type": "application/json"}
				},
			},
		}
	case "Pulsedive":
		adapter.needsCredential = true
		adapter.ops = map[string]thinOp{
			"EXPLORE": {
				method: "GET",
				param:  "query",
				build: func(base, query string) (string, interface{}) {
					return base + "/explore.php?q=" + url.QueryEscape(query), nil
				},
				// Pulsedive authenticates via a key query parameter, not a
				// header; the key is appended in Execute below.
				headers: jsonHeaders,
			},
		}
	}
	return adapter
}

// thinCredential is the shared SCREAMING_SNAKE_CASE API-key credential
// shape all thin-adapter providers use.
type thinCredential struct {
	APIKey string `json:"API_KEY"`
}

func (t thinAdapter) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	op, ok := t.ops[api]
	if !ok {
		return nil, unsupportedAPIErr(api, t.name)
	}

	var apiKey string
	if t.needsCredential {
		if credentialName == nil {
			return nil, missingCredentialErr(t.name)
		}
		var cred thinCredential
		if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
			return nil, err
		}
		apiKey = cred.APIKey
	}

	var value string
	if op.param != "" {
		resolved, err := GetStringParameter(op.param, t.name, api, params, state, ParamRequired)
		if err != nil {
			return nil, err
		}
		value = *resolved
	}

	apiURL, body := op.build(t.baseURL, value)
	if t.name == "Pulsedive" {
		apiURL += "&key=" + url.QueryEscape(apiKey)
	}
	headers := op.headers(apiKey)
	errMsg := "Error: Failed to call " + t.name + " API"

	if op.method == "POST" {
		return client.Post(ctx, apiURL, headers, body, 200, errMsg)
	}
	return client.Get(ctx, apiURL, headers, 200, errMsg)
}
