package llm

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

type bedrockState struct {
	once   sync.Once
	client *bedrockruntime.Client
	err    error
}

// bedrockRuntime lazily builds the Bedrock client from the ambient AWS
// configuration (env, shared config, IAM role); Bedrock is the one
// provider that authenticates through the process, not a workflow
// credential.
func (c *Client) bedrockRuntime(ctx context.Context) (*bedrockruntime.Client, error) {
	c.bedrock.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithHTTPClient(c.httpClient))
		if err != nil {
			c.bedrock.err = apperr.New(apperr.ConfigError, "failed to load AWS configuration for Bedrock: %s", err)
			return
		}
		c.bedrock.client = bedrockruntime.NewFromConfig(cfg)
	})
	return c.bedrock.client, c.bedrock.err
}

func (c *Client) bedrockInference(ctx context.Context, req Request) (string, error) {
	client, err := c.bedrockRuntime(ctx)
	if err != nil {
		return "", err
	}

	inference := &types.InferenceConfiguration{}
	if req.Temperature != nil {
		inference.Temperature = aws.Float32(float32(*req.Temperature))
	}
	if req.TopP != nil {
		inference.TopP = aws.Float32(float32(*req.TopP))
	}
	if req.MaxTokens != nil {
		inference.MaxTokens = aws.Int32(int32(*req.MaxTokens))
	}

	output, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.Prompt}},
		}},
		InferenceConfig: inference,
	})
	if err != nil {
		return "", apperr.New(apperr.UpstreamHTTPError, "Failed to call Bedrock API: %s", err)
	}

	message, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", apperr.New(apperr.UpstreamHTTPError, "Bedrock API returned no message output")
	}
	for _, block := range message.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value, nil
		}
	}
	return "", apperr.New(apperr.UpstreamHTTPError, "Bedrock API returned no text content")
}
