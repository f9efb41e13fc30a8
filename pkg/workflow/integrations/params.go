// Package integrations implements the Integration Executor contract (C7):
// one Executor per third-party provider in model.IntegrationType, each
// built the way the original source's integration_action/*.rs modules are
// — fetch/decode credential, resolve each parameter through the reference
// language, build the provider's request, call it through the HTTP
// adapter. The per-parameter helpers here are grounded on
// integration_action/utils.rs's get_parameter/get_string_parameter.
package integrations

import (
	"encoding/json"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

// Required toggles whether a missing parameter is an error.
type Required bool

const (
	ParamRequired Required = true
	ParamOptional Required = false
)

// GetParameter looks up name in params, resolves any reference templates it
// contains against state, and returns the resolved generic value.
func GetParameter(name, integration, api string, params map[string]json.RawMessage, state refresolve.Lookup, required Required) (interface{}, error) {
	raw, ok := params[name]
	if !ok {
		if required {
			return nil, apperr.New(apperr.MissingParameter, "Missing parameter %q for %s %s", name, integration, api)
		}
		return nil, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperr.New(apperr.InvalidParameterType, "Invalid %q parameter for %s %s API: %s", name, integration, api, err)
	}
	return refresolve.Resolve(decoded, state), nil
}

// GetStringParameter type-checks the resolved value as a string. Returns
// (nil, nil) for an absent optional parameter.
func GetStringParameter(name, integration, api string, params map[string]json.RawMessage, state refresolve.Lookup, required Required) (*string, error) {
	value, err := GetParameter(name, integration, api, params, state, required)
	if err != nil || value == nil {
		return nil, err
	}
	s, ok := value.(string)
	if !ok {
		return nil, apperr.New(apperr.InvalidParameterType, "Invalid %q parameter for %s %s API because not a string.", name, integration, api)
	}
	return &s, nil
}

// GetNumberParameter type-checks the resolved value as a number.
func GetNumberParameter(name, integration, api string, params map[string]json.RawMessage, state refresolve.Lookup, required Required) (*float64, error) {
	value, err := GetParameter(name, integration, api, params, state, required)
	if err != nil || value == nil {
		return nil, err
	}
	n, ok := value.(float64)
	if !ok {
		return nil, apperr.New(apperr.InvalidParameterType, "Invalid %q parameter for %s %s API because not a number.", name, integration, api)
	}
	return &n, nil
}

// GetBoolParameter type-checks the resolved value as a bool.
func GetBoolParameter(name, integration, api string, params map[string]json.RawMessage, state refresolve.Lookup, required Required) (*bool, error) {
	value, err := GetParameter(name, integration, api, params, state, required)
	if err != nil || value == nil {
		return nil, err
	}
	b, ok := value.(bool)
	if !ok {
		return nil, apperr.New(apperr.InvalidParameterType, "Invalid %q parameter for %s %s API because not a boolean.", name, integration, api)
	}
	return &b, nil
}
