package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/refresolve"
)

// HTTPRequest performs a GET or POST against a user-supplied URL, with
// reference templates resolved in the URL, headers, and payload, and
// returns the parsed JSON response body.
type HTTPRequest struct {
	URL     string            `json:"url" validate:"required"`
	Method  string            `json:"method" validate:"required,oneof=GET POST"`
	Headers map[string]string `json:"headers"`
	Payload interface{}       `json:"payload"`
}

func (h HTTPRequest) Execute(ctx context.Context, ec *ExecContext) (interface{}, error) {
	resolvedURL := resolveToString(h.URL, ec.State)

	headers := make(map[string]string, len(h.Headers))
	for name, value := range h.Headers {
		headers[name] = resolveToString(value, ec.State)
	}

	errMsg := fmt.Sprintf("Failed to call %s", resolvedURL)

	var raw json.RawMessage
	var err error
	switch h.Method {
	case "GET":
		raw, err = ec.HTTP.Get(ctx, resolvedURL, headers, 200, errMsg)
	case "POST":
		payload := refresolve.Resolve(h.Payload, ec.State)
		raw, err = ec.HTTP.Post(ctx, resolvedURL, headers, payload, 200, errMsg)
	}
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("response from %s is not valid JSON: %w", resolvedURL, err)
	}
	return decoded, nil
}

// resolveToString resolves references in s and renders the result as a
// plain string regardless of the singleton-preservation rule, for slots
// (URLs, headers, subjects) that are textual by nature.
func resolveToString(s string, state refresolve.Lookup) string {
	resolved := refresolve.Resolve(s, state)
	if str, ok := resolved.(string); ok {
		return str
	}
	encoded, err := json.Marshal(resolved)
	if err != nil {
		return s
	}
	return string(encoded)
}
