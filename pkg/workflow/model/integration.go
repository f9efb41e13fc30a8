package model

import (
	"encoding/json"
	"fmt"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

// integrationDefinitionJSON mirrors the action_definition JSON shape stored
// for ActionTypeIntegration nodes: integration_type, api, params (an object
// whose values may themselves be reference templates), and an optional
// credential name. params and credential are filled from the generic
// decode, so a wrong shape for either gets its named error.
type integrationDefinitionJSON struct {
	IntegrationType *string                    `json:"integration_type"`
	API             *string                    `json:"api"`
	Params          map[string]json.RawMessage `json:"-"`
	Credential      *string                    `json:"-"`
}

// ParseIntegrationDefinition parses an action's action_definition JSON into
// an Integration, with the exact named errors the original source produces
// (see original_source/workflow-runner/src/workflow/integration_action/mod.rs
// Integration::from_json_impl), wrapped with the action's display name.
func ParseIntegrationDefinition(actionName string, raw json.RawMessage) (*Integration, error) {
	integration, err := parseIntegrationDefinition(raw)
	if err != nil {
		return nil, apperr.New(apperr.ConfigError, "Configuration Error for Integration Action %q: %s", actionName, err)
	}
	return integration, nil
}

func parseIntegrationDefinition(raw json.RawMessage) (*Integration, error) {
	var parsed integrationDefinitionJSON
	// Params absent from the JSON is "Missing Parameters"; present but the
	// wrong shape is "Parameters must be a JSON object" — distinguish those
	// via a generic decode first.
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("Parameters must be a JSON object")
	}

	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	if parsed.IntegrationType == nil || *parsed.IntegrationType == "" {
		return nil, fmt.Errorf("Integration Type must be selected.")
	}
	if parsed.API == nil || *parsed.API == "" {
		return nil, fmt.Errorf("An API must be selected.")
	}

	if rawParams, ok := generic["params"]; ok {
		var asObject map[string]json.RawMessage
		if err := json.Unmarshal(rawParams, &asObject); err != nil {
			return nil, fmt.Errorf("Parameters must be a JSON object")
		}
		parsed.Params = asObject
	} else {
		return nil, fmt.Errorf("Missing Parameters")
	}

	if rawCredential, ok := generic["credential"]; ok {
		var asString string
		if err := json.Unmarshal(rawCredential, &asString); err != nil {
			return nil, fmt.Errorf("Credential must be a string")
		}
		parsed.Credential = &asString
	}

	return &Integration{
		IntegrationType: IntegrationType(*parsed.IntegrationType),
		API:             *parsed.API,
		Params:          parsed.Params,
		Credential:      parsed.Credential,
	}, nil
}
