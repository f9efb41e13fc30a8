package llm

import (
	"context"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

const azureAPIVersion = "2024-02-01"

func callOptions(req Request) []llms.CallOption {
	var opts []llms.CallOption
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}
	if req.TopP != nil {
		opts = append(opts, llms.WithTopP(*req.TopP))
	}
	if req.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*req.MaxTokens))
	}
	return opts
}

// openAICompatibleInference serves both ProviderDefault and
// ProviderOpenAI; baseURL overrides the endpoint for OpenAI-compatible
// gateways and is "" for api.openai.com.
func openAICompatibleInference(ctx context.Context, httpClient *http.Client, apiKey, baseURL string, req Request) (string, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(req.Model),
		openai.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return "", apperr.New(apperr.ConfigError, "failed to build OpenAI client: %s", err)
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, client, req.Prompt, callOptions(req)...)
	if err != nil {
		return "", apperr.New(apperr.UpstreamHTTPError, "Failed to call OpenAI API: %s", err)
	}
	return response, nil
}

func azureOpenAIInference(ctx context.Context, httpClient *http.Client, apiKey, endpoint string, req Request) (string, error) {
	client, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithToken(apiKey),
		openai.WithBaseURL(endpoint),
		openai.WithModel(req.Model),
		openai.WithAPIVersion(azureAPIVersion),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return "", apperr.New(apperr.ConfigError, "failed to build Azure OpenAI client: %s", err)
	}

	response, err := llms.GenerateFromSinglePrompt(ctx, client, req.Prompt, callOptions(req)...)
	if err != nil {
		return "", apperr.New(apperr.UpstreamHTTPError, "Failed to call Azure OpenAI API: %s", err)
	}
	return response, nil
}
