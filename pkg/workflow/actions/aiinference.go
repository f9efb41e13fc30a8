package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/llm"
)

// AIInference runs a single-prompt chat completion against the
// configured provider and returns {"output": "<assistant text>"}.
type AIInference struct {
	Provider    llm.Provider
	Model       string
	Credential  *string
	Prompt      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// aiInferenceJSON is the stored definition shape; parsing is manual so
// the user gets named errors instead of generic decode failures.
type aiInferenceJSON struct {
	Provider    *string     `json:"provider"`
	Model       *string     `json:"model"`
	Credential  interface{} `json:"credential"`
	Prompt      *string     `json:"prompt"`
	Temperature interface{} `json:"temperature"`
	TopP        interface{} `json:"top_p"`
	MaxTokens   interface{} `json:"max_tokens"`
}

func parseAIInference(actionName string, raw json.RawMessage) (AIInference, error) {
	node, err := parseAIInferenceImpl(raw)
	if err != nil {
		return AIInference{}, apperr.New(apperr.ConfigError, "Configuration Error for AI Action %q: %s", actionName, err)
	}
	return node, nil
}

func parseAIInferenceImpl(raw json.RawMessage) (AIInference, error) {
	var parsed aiInferenceJSON
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return AIInference{}, err
	}

	if parsed.Provider == nil || !llm.KnownProvider(llm.Provider(*parsed.Provider)) {
		return AIInference{}, fmt.Errorf("Unknown LLM provider")
	}
	if parsed.Model == nil || *parsed.Model == "" {
		return AIInference{}, fmt.Errorf("Missing model.")
	}
	if parsed.Prompt == nil {
		return AIInference{}, fmt.Errorf("Missing prompt.")
	}
	if *parsed.Prompt == "" {
		return AIInference{}, fmt.Errorf("Provided empty prompt")
	}

	node := AIInference{
		Provider: llm.Provider(*parsed.Provider),
		Model:    *parsed.Model,
		Prompt:   *parsed.Prompt,
	}

	if parsed.Credential != nil {
		name, ok := parsed.Credential.(string)
		if !ok {
			return AIInference{}, fmt.Errorf("Credential must be a string.")
		}
		node.Credential = &name
	}
	if parsed.Temperature != nil {
		t, ok := parsed.Temperature.(float64)
		if !ok {
			return AIInference{}, fmt.Errorf("Temperature must be a float.")
		}
		node.Temperature = &t
	}
	if parsed.TopP != nil {
		p, ok := parsed.TopP.(float64)
		if !ok {
			return AIInference{}, fmt.Errorf("Top P must be a float")
		}
		node.TopP = &p
	}
	if parsed.MaxTokens != nil {
		m, ok := parsed.MaxTokens.(float64)
		if !ok || m != float64(int(m)) || m < 0 {
			return AIInference{}, fmt.Errorf("Max. tokens must be an unsigned integer")
		}
		n := int(m)
		node.MaxTokens = &n
	}

	return node, nil
}

func (a AIInference) Execute(ctx context.Context, ec *ExecContext) (interface{}, error) {
	prompt := resolveToString(a.Prompt, ec.State)

	var credential *llm.Credential
	if llm.RequiresCredential(a.Provider) {
		if a.Credential == nil {
			return nil, apperr.New(apperr.MissingCredential, "Missing credential for %s AI Action", a.Provider)
		}
		var cred llm.Credential
		if _, err := ec.Secrets.FetchTyped(ctx, ec.WorkflowID, *a.Credential, &cred); err != nil {
			return nil, err
		}
		credential = &cred
	}

	response, err := ec.LLM.Complete(ctx, a.Provider, llm.Request{
		Model:       a.Model,
		Prompt:      prompt,
		Temperature: a.Temperature,
		TopP:        a.TopP,
		MaxTokens:   a.MaxTokens,
	}, credential)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"output": response}, nil
}
