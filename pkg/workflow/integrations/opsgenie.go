package integrations

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

const opsgenieIntegration = "Opsgenie"

type opsgenieCredential struct {
	APIKey   string  `json:"API_KEY"`
	Instance *string `json:"INSTANCE"`
}

type opsgenieExecutor struct{}

func (opsgenieExecutor) Execute(ctx context.Context, client httpadapter.Client, secrets SecretFetcher, workflowID string, api string, credentialName *string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	if credentialName == nil {
		return nil, missingCredentialErr(opsgenieIntegration)
	}
	var cred opsgenieCredential
	if _, err := secrets.FetchTyped(ctx, workflowID, *credentialName, &cred); err != nil {
		return nil, err
	}

	baseURL := "https://api.opsgenie.com"
	if cred.Instance != nil && strings.EqualFold(*cred.Instance, "EU") {
		baseURL = "https://api.eu.opsgenie.com"
	}
	headers := map[string]string{"Content-Type": "application/json", "Authorization": "GenieKey " + cred.APIKey}

	switch api {
	case "CREATE_ALERT":
		return opsgenieCreateAlert(ctx, client, baseURL, headers, params, state)
	case "DELETE_ALERT":
		return opsgenieIdentifierAction(ctx, client, baseURL, headers, "DELETE_ALERT", "", params, state, []string{"USER", "SOURCE"}, opMethodDelete, 202)
	case "GET_ALERT":
		return opsgenieIdentifierAction(ctx, client, baseURL, headers, "GET_ALERT", "", params, state, nil, opMethodGet, 200)
	case "LIST_ALERTS":
		return opsgenieListAlerts(ctx, client, baseURL, headers, params, state)
	case "CLOSE_ALERT":
		return opsgenieIdentifierAction(ctx, client, baseURL, headers, "CLOSE_ALERT", "close", params, state, []string{"USER", "SOURCE", "NOTE"}, opMethodPost, 202)
	case "ACKNOWLEDGE_ALERT":
		return opsgenieIdentifierAction(ctx, client, baseURL, headers, "ACKNOWLEDGE_ALERT", "acknowledge", params, state, []string{"USER", "SOURCE", "NOTE"}, opMethodPost, 202)
	case "UNACKNOWLEDGE_ALERT":
		return opsgenieIdentifierAction(ctx, client, baseURL, headers, "UNACKNOWLEDGE_ALERT", "unacknowledge", params, state, []string{"USER", "SOURCE", "NOTE"}, opMethodPost, 202)
	case "SNOOZE_ALERT":
		return opsgenieSnoozeAlert(ctx, client, baseURL, headers, params, state)
	case "ADD_NOTE_TO_ALERT":
		return opsgenieAddNoteToAlert(ctx, client, baseURL, headers, params, state)
	case "ESCALATE_ALERT_TO_NEXT":
		return opsgenieEscalateAlertToNext(ctx, client, baseURL, headers, params, state)
	case "ASSIGN_ALERT":
		return opsgenieAssignAlert(ctx, client, baseURL, headers, params, state)
	case "ADD_TEAM_TO_ALERT":
		return opsgenieAddTeamToAlert(ctx, client, baseURL, headers, params, state)
	case "ADD_RESPONDER_TO_ALERT":
		return opsgenieAddResponderToAlert(ctx, client, baseURL, headers, params, state)
	case "ADD_TAGS_TO_ALERT":
		return opsgenieAddTagsToAlert(ctx, client, baseURL, headers, params, state)
	case "ADD_DETAILS_TO_ALERT":
		return opsgenieAddDetailsToAlert(ctx, client, baseURL, headers, params, state)
	case "UPDATE_ALERT_PRIORITY":
		return opsgenieUpdateAlertField(ctx, client, baseURL, headers, "UPDATE_ALERT_PRIORITY", "priority", "priority", "PRIORITY", params, state)
	case "LIST_ALERT_RECIPIENTS":
		return opsgenieListAlertRecipients(ctx, client, baseURL, headers, params, state)
	case "UPDATE_ALERT_MESSAGE":
		return opsgenieUpdateAlertField(ctx, client, baseURL, headers, "UPDATE_ALERT_MESSAGE", "message", "message", "MESSAGE", params, state)
	default:
		return nil, unsupportedAPIErr(api, opsgenieIntegration)
	}
}

type opMethod int

const (
	opMethodGet opMethod = iota
	opMethodPost
	opMethodPut
	opMethodDelete
)

func opsgenieOptionalFields(api string, fields []string, params map[string]json.RawMessage, state refresolve.Lookup) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	for _, field := range fields {
		v, err := GetStringParameter(field, opsgenieIntegration, api, params, state, ParamOptional)
		if err != nil {
			return nil, err
		}
		if v != nil {
			body[strings.ToLower(field)] = *v
		}
	}
	return body, nil
}

// opsgenieIdentifierAction covers the family of endpoints addressed as
// /v2/alerts/{identifier}[/suffix][?identifierType=...], optionally carrying
// a JSON body built from bodyFields.
func opsgenieIdentifierAction(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, api, suffix string, params map[string]json.RawMessage, state refresolve.Lookup, bodyFields []string, method opMethod, expectedStatus int) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, api, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, api, params, state, ParamOptional)
	if err != nil {
		return nil, err
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier
	if suffix != "" {
		apiURL += "/" + suffix
	}
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}

	errMsg := "Failed to call " + opsgenieIntegration + " - " + api + " API"
	switch method {
	case opMethodGet:
		return client.Get(ctx, apiURL, headers, expectedStatus, errMsg)
	case opMethodDelete:
		return client.Delete(ctx, apiURL, headers, expectedStatus, errMsg)
	default:
		var body map[string]interface{}
		if len(bodyFields) > 0 {
			body, err = opsgenieOptionalFields(api, bodyFields, params, state)
			if err != nil {
				return nil, err
			}
		}
		return client.Post(ctx, apiURL, headers, body, expectedStatus, errMsg)
	}
}

func opsgenieCreateAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	message, err := GetStringParameter("MESSAGE", opsgenieIntegration, "CREATE_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"message": *message}

	stringFields, err := opsgenieOptionalFields("CREATE_ALERT", []string{"ALIAS", "DESCRIPTION", "ENTITY", "SOURCE", "PRIORITY", "USER", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range stringFields {
		body[k] = v
	}

	for _, jsonField := range []string{"DETAILS", "RESPONDERS", "VISIBLE_TO", "ACTIONS", "TAGS"} {
		raw, err := GetStringParameter(jsonField, opsgenieIntegration, "CREATE_ALERT", params, state, ParamOptional)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(*raw), &decoded); err != nil {
			return nil, err
		}
		body[strings.ToLower(jsonField)] = decoded
	}

	return client.Post(ctx, baseURL+"/v2/alerts", headers, body, 202, "Failed to call "+opsgenieIntegration+" - Create Alert API")
}

func opsgenieListAlerts(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	var query []string

	for _, field := range []struct{ param, key string }{
		{"QUERY", "query"}, {"SEARCH_IDENTIFIER", "searchIdentifier"}, {"SEARCH_IDENTIFIER_TYPE", "searchIdentifierType"},
		{"SORT", "sort"}, {"ORDER", "order"},
	} {
		v, err := GetStringParameter(field.param, opsgenieIntegration, "LIST_ALERTS", params, state, ParamOptional)
		if err != nil {
			return nil, err
		}
		if v != nil {
			query = append(query, field.key+"="+*v)
		}
	}
	for _, field := range []struct{ param, key string }{{"OFFSET", "offset"}, {"LIMIT", "limit"}} {
		v, err := GetNumberParameter(field.param, opsgenieIntegration, "LIST_ALERTS", params, state, ParamOptional)
		if err != nil {
			return nil, err
		}
		if v != nil {
			query = append(query, field.key+"="+strconv.FormatInt(int64(*v), 10))
		}
	}

	apiURL := baseURL + "/v2/alerts"
	if len(query) > 0 {
		apiURL += "?" + strings.Join(query, "&")
	}
	return client.Get(ctx, apiURL, headers, 200, "Failed to call "+opsgenieIntegration+" - List Alerts API")
}

func opsgenieSnoozeAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "SNOOZE_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "SNOOZE_ALERT", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	endTime, err := GetStringParameter("END_TIME", opsgenieIntegration, "SNOOZE_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"endTime": *endTime}
	extra, err := opsgenieOptionalFields("SNOOZE_ALERT", []string{"USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/snooze"
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Snooze Alert API")
}

func opsgenieAddNoteToAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ADD_NOTE_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "ADD_NOTE_TO_ALERT", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	note, err := GetStringParameter("NOTE", opsgenieIntegration, "ADD_NOTE_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"note": *note}
	extra, err := opsgenieOptionalFields("ADD_NOTE_TO_ALERT", []string{"USER", "SOURCE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/notes"
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Add Note to Alert API")
}

func opsgenieEscalateAlertToNext(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ESCALATE_ALERT_TO_NEXT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "ESCALATE_ALERT_TO_NEXT", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	escalation, err := GetStringParameter("ESCALATION", opsgenieIntegration, "ESCALATE_ALERT_TO_NEXT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"escalation": *escalation}
	extra, err := opsgenieOptionalFields("ESCALATE_ALERT_TO_NEXT", []string{"USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/escalate"
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Escalate Alert to Next API")
}

func opsgenieAssignAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ASSIGN_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "ASSIGN_ALERT", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	owner, err := GetStringParameter("OWNER", opsgenieIntegration, "ASSIGN_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"owner": *owner}
	extra, err := opsgenieOptionalFields("ASSIGN_ALERT", []string{"USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/assign"
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Assign Alert API")
}

func opsgenieAddTeamToAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ADD_TEAM_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "ADD_TEAM_TO_ALERT", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}
	team, err := GetStringParameter("TEAM", opsgenieIntegration, "ADD_TEAM_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"team": *team}
	extra, err := opsgenieOptionalFields("ADD_TEAM_TO_ALERT", []string{"USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/teams"
	if identifierType != nil {
		apiURL += "?identifierType=" + *identifierType
	}
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Add Team to Alert API")
}

func opsgenieAddResponderToAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ADD_RESPONDER_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	responder, err := GetStringParameter("RESPONDER", opsgenieIntegration, "ADD_RESPONDER_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"identifier": *identifier, "responder": *responder}
	extra, err := opsgenieOptionalFields("ADD_RESPONDER_TO_ALERT", []string{"IDENTIFIER_TYPE", "USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/responders"
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Add Responder to Alert API")
}

func opsgenieAddTagsToAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ADD_TAGS_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	tags, err := GetStringParameter("TAGS", opsgenieIntegration, "ADD_TAGS_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"identifier": *identifier, "tags": *tags}
	extra, err := opsgenieOptionalFields("ADD_TAGS_TO_ALERT", []string{"IDENTIFIER_TYPE", "USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/tags"
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Add Tags to Alert API")
}

func opsgenieAddDetailsToAlert(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "ADD_DETAILS_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	details, err := GetStringParameter("DETAILS", opsgenieIntegration, "ADD_DETAILS_TO_ALERT", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"identifier": *identifier, "details": *details}
	extra, err := opsgenieOptionalFields("ADD_DETAILS_TO_ALERT", []string{"IDENTIFIER_TYPE", "USER", "SOURCE", "NOTE"}, params, state)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		body[k] = v
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/details"
	return client.Post(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - Add Details to Alert API")
}

// opsgenieUpdateAlertField covers UPDATE_ALERT_PRIORITY and
// UPDATE_ALERT_MESSAGE: both PUT identifier + one required field to
// /v2/alerts/{identifier}/{pathSuffix}, with an optional IDENTIFIER_TYPE.
func opsgenieUpdateAlertField(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, api, pathSuffix, bodyKey, paramName string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, api, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	value, err := GetStringParameter(paramName, opsgenieIntegration, api, params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, api, params, state, ParamOptional)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"identifier": *identifier, bodyKey: *value}
	apiURL := baseURL + "/v2/alerts/" + *identifier + "/" + pathSuffix
	if identifierType != nil {
		body["identifierType"] = *identifierType
	}
	return client.Put(ctx, apiURL, headers, body, 202, "Failed to call "+opsgenieIntegration+" - "+api+" API")
}

func opsgenieListAlertRecipients(ctx context.Context, client httpadapter.Client, baseURL string, headers map[string]string, params map[string]json.RawMessage, state refresolve.Lookup) (json.RawMessage, error) {
	identifier, err := GetStringParameter("IDENTIFIER", opsgenieIntegration, "LIST_ALERT_RECIPIENTS", params, state, ParamRequired)
	if err != nil {
		return nil, err
	}
	identifierType, err := GetStringParameter("IDENTIFIER_TYPE", opsgenieIntegration, "LIST_ALERT_RECIPIENTS", params, state, ParamOptional)
	if err != nil {
		return nil, err
	}

	apiURL := baseURL + "/v2/alerts/" + *identifier + "/recipients?identifier=" + *identifier
	if identifierType != nil {
		apiURL += "&identifierType=" + *identifierType
	}
	return client.Get(ctx, apiURL, headers, 200, "Failed to call "+opsgenieIntegration+" - List Alert Recipients API")
}
