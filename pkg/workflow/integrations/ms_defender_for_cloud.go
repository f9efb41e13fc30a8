package integrations

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const msDefenderForCloudIntegration = "Microsoft Defender for Cloud"
const mdfcAPIVersion = "2022-01-01"

type msDefenderForCloudExecutor struct{}

func (msDefenderForCloudExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(msDefenderForCloudIntegration)
	}
	cred := *credentialName

	switch api {
	case "LIST_ALERTS":
		return mdfcListAlerts(ctx, client, workflowID, cred, params, state)
	case "UPDATE_ALERT_STATUS":
		return mdfcUpdateAlertStatus(ctx, client, workflowID, cred, params, state)
	case "GET_ALERT":
		return mdfcGetAlert(ctx, client, workflowID, cred, params, state)
	default:
		return nil, unsupportedAPIErr(api, msDefenderForCloudIntegration)
	}
}

// mdfcAlertsPage is one page of the List Alerts response: an alert
// array plus an optional continuation link.
type mdfcAlertsPage struct {
	Value    []json.RawMessage `json:"value"`
	NextLink *string           `json:"nextLink"`
}

func mdfcListAlerts(ctx context.Context, client httpadapter.Client, workflowID, credentialName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	subscriptionID, err := GetStringParameter("SUBSCRIPTION_ID", msDefenderForCloudIntegration, "LIST_ALERTS", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	resourceGroup, err := GetStringParameter("RESOURCE_GROUP", msDefenderForCloudIntegration, "LIST_ALERTS", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	ascLocation, err := GetStringParameter("ASC_LOCATION", msDefenderForCloudIntegration, "LIST_ALERTS", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	pageLimit := int64(1)
	if limit, err := GetNumberParameter("PAGE_LIMIT", msDefenderForCloudIntegration, "LIST_ALERTS", params, state, ParamOptional); err != nil {
		return nil, err
	} else if limit != nil {
		pageLimit = int64(*limit)
	}

	base := "https://management.azure.com/subscriptions/" + *subscriptionID
	switch {
	case resourceGroup != nil && ascLocation != nil:
		base += "/resourceGroups/" + *resourceGroup + "/providers/Microsoft.Security/locations/" + *ascLocation + "/alerts"
	case resourceGroup != nil:
		base += "/resourceGroups/" + *resourceGroup + "/providers/Microsoft.Security/alerts"
	case ascLocation != nil:
		base += "/providers/Microsoft.Security/locations/" + *ascLocation + "/alerts"
	default:
		base += "/providers/Microsoft.Security/alerts"
	}
	apiURL := base + "?api-version=" + mdfcAPIVersion

	// Follow nextLink continuations for up to PAGE_LIMIT pages.
	allAlerts := make([]json.RawMessage, 0)
	for i := int64(0); i < pageLimit; i++ {
		raw, err := client.GetWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, 200, "Error: Failed to call "+msDefenderForCloudIntegration+" List Alerts API")
		if err != nil {
			return nil, err
		}

		var page mdfcAlertsPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, apperr.New(apperr.UpstreamHTTPError, "Error: Unexpected response from %s List Alerts API: %s", msDefenderForCloudIntegration, err)
		}
		allAlerts = append(allAlerts, page.Value...)

		if page.NextLink == nil {
			break
		}
		apiURL = *page.NextLink
	}

	return json.Marshal(map[string]interface{}{"value": allAlerts})
}

func mdfcUpdateAlertStatus(ctx context.Context, client httpadapter.Client, workflowID, credentialName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	alertID, err := GetStringParameter("ALERT_ID", msDefenderForCloudIntegration, "UPDATE_ALERT_STATUS", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	status, err := GetStringParameter("ALERT_STATUS", msDefenderForCloudIntegration, "UPDATE_ALERT_STATUS", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	var action string
	switch strings.ToLower(*status) {
	case "active":
		action = "activate"
	case "dismissed":
		action = "dismiss"
	case "resolved":
		action = "resolve"
	default:
		return nil, apperr.New(apperr.InvalidParameterType, "Error: Unknown alert status for %s Update Alert Status API: %s", msDefenderForCloudIntegration, *status)
	}

	apiURL := "https://management.azure.com" + *alertID + "/" + action + "?api-version=" + mdfcAPIVersion
	return client.PostWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, map[string]interface{}{}, 204, "Error: Failed to call "+msDefenderForCloudIntegration+" Update Alert Status API")
}

func mdfcGetAlert(ctx context.Context, client httpadapter.Client, workflowID, credentialName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	alertID, err := GetStringParameter("ALERT_ID", msDefenderForCloudIntegration, "GET_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	apiURL := "https://management.azure.com" + *alertID + "?api-version=" + mdfcAPIVersion
	return client.GetWithOAuthRefresh(ctx, workflowID, apiURL, credentialName, nil, 200, "Error: Failed to call "+msDefenderForCloudIntegration+" Get Alert API")
}
