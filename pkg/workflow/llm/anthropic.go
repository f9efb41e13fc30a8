package llm

import (
	"context"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

func anthropicInference(ctx context.Context, httpClient *http.Client, apiKey string, req Request) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", apperr.New(apperr.UpstreamHTTPError, "Failed to call Anthropic API: %s", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", apperr.New(apperr.UpstreamHTTPError, "Anthropic API returned no text content")
}
