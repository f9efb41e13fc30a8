// Package llm dispatches AI inference requests to the configured model
// provider. Each provider goes through its official Go SDK rather than a
// hand-rolled HTTP call: OpenAI-compatible and Azure-OpenAI via
// langchaingo, Anthropic via anthropic-sdk-go, Mistral via mistral-go,
// and AWS Bedrock via the AWS SDK.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/kestrelsec/workflow-runner/pkg/shared/httpclient"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

// Provider is the closed set of inference backends an AI action can
// target. ProviderDefault uses the process-level API key against the
// OpenAI-compatible endpoint; every other provider (except Bedrock,
// which uses ambient AWS credentials) requires a workflow credential.
type Provider string

const (
	ProviderDefault     Provider = "DEFAULT"
	ProviderOpenAI      Provider = "OPENAI"
	ProviderAzureOpenAI Provider = "AZURE_OPENAI"
	ProviderMistral     Provider = "MISTRAL"
	ProviderAnthropic   Provider = "ANTHROPIC"
	ProviderBedrock     Provider = "BEDROCK"
)

// KnownProvider reports whether p is one of the recognised providers.
func KnownProvider(p Provider) bool {
	switch p {
	case ProviderDefault, ProviderOpenAI, ProviderAzureOpenAI, ProviderMistral, ProviderAnthropic, ProviderBedrock:
		return true
	}
	return false
}

// RequiresCredential reports whether p needs a workflow-stored credential.
func RequiresCredential(p Provider) bool {
	return p != ProviderDefault && p != ProviderBedrock
}

// Credential is the stored credential shape for LLM providers. Endpoint
// is only meaningful for Azure OpenAI.
type Credential struct {
	APIKey   string `json:"API_KEY"`
	Endpoint string `json:"ENDPOINT"`
}

// Request is one chat-completion call: a single user prompt plus the
// optional sampling parameters the action definition may carry.
type Request struct {
	Model       string
	Prompt      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Completer is the surface the AI action depends on, kept narrow so
// tests can substitute a canned-response double.
type Completer interface {
	Complete(ctx context.Context, provider Provider, req Request, credential *Credential) (string, error)
}

// defaultMaxTokens bounds responses for providers whose API requires an
// explicit token limit when the action definition leaves it unset.
const defaultMaxTokens = 4096

// inferenceTimeout bounds one chat-completion round trip, including the
// long first-token wait large models need.
const inferenceTimeout = 2 * time.Minute

// Client is the production Completer. The OpenAI-compatible,
// Azure-OpenAI, Anthropic and Bedrock providers share one LLM-tuned HTTP
// client; the Mistral client uses the SDK's own default HTTP settings.
type Client struct {
	// defaultAPIKey backs ProviderDefault, supplied by process config.
	defaultAPIKey string
	httpClient    *http.Client

	bedrock bedrockState
}

func NewClient(defaultAPIKey string) *Client {
	return &Client{
		defaultAPIKey: defaultAPIKey,
		httpClient:    httpclient.NewClient(httpclient.LLMClientConfig(inferenceTimeout)),
	}
}

func (c *Client) Complete(ctx context.Context, provider Provider, req Request, credential *Credential) (string, error) {
	switch provider {
	case ProviderDefault:
		if c.defaultAPIKey == "" {
			return "", apperr.New(apperr.ConfigError, "default AI provider is not configured")
		}
		return openAICompatibleInference(ctx, c.httpClient, c.defaultAPIKey, "", req)
	case ProviderOpenAI:
		return openAICompatibleInference(ctx, c.httpClient, credential.APIKey, "", req)
	case ProviderMistral:
		return mistralInference(credential.APIKey, req)
	case ProviderAzureOpenAI:
		return azureOpenAIInference(ctx, c.httpClient, credential.APIKey, credential.Endpoint, req)
	case ProviderAnthropic:
		return anthropicInference(ctx, c.httpClient, credential.APIKey, req)
	case ProviderBedrock:
		return c.bedrockInference(ctx, req)
	default:
		return "", apperr.New(apperr.ConfigError, "unknown LLM provider: %q", provider)
	}
}
