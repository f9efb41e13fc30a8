package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const msDefenderIntegration = "Microsoft Defender"

type msDefenderExecutor struct{}

func (msDefenderExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(msDefenderIntegration)
	}
	cred := *credentialName

	switch api {
	case "LIST_ALERTS_V2":
		return msDefenderListAlertsOrIncidents(ctx, client, workflowID, cred, "alerts_v2", "LIST_ALERTS_V2", params, state)
	case "GET_ALERT":
		return msDefenderGetByID(ctx, client, workflowID, cred, "alerts_v2", "ALERT_ID", "GET_ALERT", params, state)
	case "UPDATE_ALERT_STATUS":
		return msDefenderUpdateAlert(ctx, client, workflowID, cred, params, state)
	case "CREATE_COMMENT_FOR_ALERT":
		return msDefenderCreateComment(ctx, client, workflowID, cred, "alerts_v2", "ALERT_ID", "CREATE_COMMENT_FOR_ALERT", params, state)
	case "LIST_INCIDENTS":
		return msDefenderListAlertsOrIncidents(ctx, client, workflowID, cred, "incidents", "LIST_INCIDENTS", params, state)
	case "GET_INCIDENT":
		return msDefenderGetByID(ctx, client, workflowID, cred, "incidents", "INCIDENT_ID", "GET_INCIDENT", params, state)
	case "CREATE_COMMENT_FOR_INCIDENT":
		return msDefenderCreateComment(ctx, client, workflowID, cred, "incidents", "INCIDENT_ID", "CREATE_COMMENT_FOR_INCIDENT", params, state)
	default:
		return nil, unsupportedAPIErr(api, msDefenderIntegration)
	}
}

func msDefenderListAlertsOrIncidents(ctx context.Context, client httpadapter.Client, workflowID, credentialName, resource, apiName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	var query []string

	if filter, err := GetStringParameter("FILTER", msDefenderIntegration, apiName, params, state, ParamOptional); err != nil {
		return nil, err
	} else if filter != nil {
		query = append(query, "$filter="+*filter)
	}
	if limit, err := GetNumberParameter("LIMIT", msDefenderIntegration, apiName, params, state, ParamOptional); err != nil {
		return nil, err
	} else if limit != nil {
		query = append(query, "$top="+strconv.FormatInt(int64(*limit), 10))
	}
	if skip, err := GetNumberParameter("SKIP", msDefenderIntegration, apiName, params, state, ParamOptional); err != nil {
		return nil, err
	} else if skip != nil {
		query = append(query, "$skip="+strconv.FormatInt(int64(*skip), 10))
	}
	doCount := false
	if count, err := GetBoolParameter("COUNT", msDefenderIntegration, apiName, params, state, ParamOptional); err != nil {
		return nil, err
	} else if count != nil {
		doCount = *count
	}

	apiURL := "https://graph.microsoft.com/v1.0/security/" + resource
	if doCount {
		apiURL += "/$count"
	}
	if len(query) > 0 {
		apiURL += "?" + strings.Join(query, "&")
	}

	return client.GetWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, 200, fmt.Sprintf("Error: Failed to call %s List %s API", msDefenderIntegration, resource))
}

func msDefenderGetByID(ctx context.Context, client httpadapter.Client, workflowID, credentialName, resource, idParam, apiName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	id, err := GetStringParameter(idParam, msDefenderIntegration, apiName, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	apiURL := "https://graph.microsoft.com/v1.0/security/" + resource + "/" + *id
	return client.GetWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, 200, fmt.Sprintf("Error: Failed to call %s Get %s API", msDefenderIntegration, resource))
}

func msDefenderUpdateAlert(ctx context.Context, client httpadapter.Client, workflowID, credentialName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	alertID, err := GetStringParameter("ALERT_ID", msDefenderIntegration, "UPDATE_ALERT_STATUS", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	for field, key := range map[string]string{"STATUS": "status", "CLASSIFICATION": "classification", "DETERMINATION": "determination", "ASSIGNED_TO": "assignedTo"} {
		v, err := GetStringParameter(field, msDefenderIntegration, "UPDATE_ALERT_STATUS", params, state, ParamOptional)
		if err != nil {
			return nil, err
		}
		if v != nil {
			body[key] = *v
		}
	}

	apiURL := "https://graph.microsoft.com/v1.0/security/alerts_v2/" + *alertID
	return client.PostWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, body, 200, "Error: Failed to call "+msDefenderIntegration+" API")
}

func msDefenderCreateComment(ctx context.Context, client httpadapter.Client, workflowID, credentialName, resource, idParam, apiName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	id, err := GetStringParameter(idParam, msDefenderIntegration, apiName, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	comment, err := GetStringParameter("COMMENT", msDefenderIntegration, apiName, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	apiURL := "https://graph.microsoft.com/v1.0/security/" + resource + "/" + *id + "/comments"
	body := map[string]interface{}{
		"@odata.type": "#microsoft.graph.security.alertComment",
		"comment":     *comment,
	}
	return client.PostWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, body, 200, fmt.Sprintf("Error: Failed to call %s Create Comment for %s API", msDefenderIntegration, resource))
}
