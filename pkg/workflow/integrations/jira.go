package integrations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const jiraIntegration = "Jira"

type jiraCredential struct {
	Domain   string `json:"DOMAIN"`
	Email    string `json:"EMAIL"`
	APIToken string `json:"API_TOKEN"`
}

type jiraExecutor struct{}

func (jiraExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(jiraIntegration)
	}
	var cred jiraCredential
	if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
		return nil, err
	}

	switch api {
	case "CREATE_ISSUE":
		return jiraCreateIssue(ctx, client, cred, params, state)
	default:
		return nil, unsupportedAPIErr(api, jiraIntegration)
	}
}

// https://developer.atlassian.com/cloud/jira/platform/rest/v3/api-group-issues/#api-rest-api-3-issue-post
func jiraCreateIssue(ctx context.Context, client httpadapter.Client, cred jiraCredential, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	summary, err := GetStringParameter("summary", jiraIntegration, "CREATE_ISSUE", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	projectID, err := GetStringParameter("project_id", jiraIntegration, "CREATE_ISSUE", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	issueType, err := GetStringParameter("issue_type", jiraIntegration, "CREATE_ISSUE", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"summary":   *summary,
		"project":   map[string]interface{}{"id": *projectID},
		"issuetype": map[string]interface{}{"name": *issueType},
	}

	if description, err := GetStringParameter("description", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if description != nil && *description != "" {
		var asObject map[string]interface{}
		if err := json.Unmarshal([]byte(*description), &asObject); err != nil {
			return nil, apperr.New(apperr.InvalidParameterType, `Invalid input for "Description". Expected Atlassian Document Format.`)
		}
		fields["description"] = asObject
	}
	if assignee, err := GetStringParameter("assignee", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if assignee != nil && *assignee != "" {
		fields["assignee"] = map[string]interface{}{"id": *assignee}
	}
	if labels, err := GetStringParameter("labels", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if labels != nil {
		var cleaned []string
		for _, label := range strings.Split(*labels, ",") {
			cleaned = append(cleaned, strings.TrimSpace(label))
		}
		if len(cleaned) > 0 {
			fields["labels"] = cleaned
		}
	}
	if priority, err := GetStringParameter("priority", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if priority != nil && *priority != "" {
		fields["priority"] = map[string]interface{}{"name": *priority}
	}
	if customFields, err := GetStringParameter("custom_fields", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if customFields != nil && *customFields != "" {
		var asObject map[string]interface{}
		if err := json.Unmarshal([]byte(*customFields), &asObject); err != nil {
			return nil, apperr.New(apperr.InvalidParameterType, `Invalid input for "Custom Fields". Expected a JSON object.`)
		}
		for k, v := range asObject {
			fields[k] = v
		}
	}
	if components, err := GetStringParameter("components", jiraIntegration, "CREATE_ISSUE", params, state, ParamOptional); err != nil {
		return nil, err
	} else if components != nil && *components != "" {
		var decoded interface{}
		if err := json.Unmarshal([]byte(*components), &decoded); err != nil {
			return nil, err
		}
		fields["components"] = decoded
	}

	apiURL := "https://" + cred.Domain + ".atlassian.net/rest/api/3/issue"
	// API Key construction: https://developer.atlassian.com/cloud/jira/platform/basic-auth-for-rest-apis/
	basicAuth := base64.StdEncoding.EncodeToString([]byte(cred.Email + ":" + cred.APIToken))
	headers := map[string]string{"Authorization": "Basic " + basicAuth}

	return client.Post(ctx, apiURL, headers, map[string]interface{}{"fields": fields}, 201, "Error: Failed to call "+jiraIntegration+" API")
}
