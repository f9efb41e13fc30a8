package llm

import (
	mistral "github.com/gage-technologies/mistral-go"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

func mistralInference(apiKey string, req Request) (string, error) {
	client := mistral.NewMistralClientDefault(apiKey)

	params := mistral.DefaultChatRequestParams
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		params.TopP = *req.TopP
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}

	response, err := client.Chat(req.Model, []mistral.ChatMessage{
		{Role: mistral.RoleUser, Content: req.Prompt},
	}, &params)
	if err != nil {
		return "", apperr.New(apperr.UpstreamHTTPError, "Failed to call Mistral API: %s", err)
	}
	if len(response.Choices) == 0 {
		return "", apperr.New(apperr.UpstreamHTTPError, "Mistral API returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}
