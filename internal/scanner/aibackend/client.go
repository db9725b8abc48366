package aibackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const maxTokens = 1024

// client is grounded directly on the teacher's internal/infra/ai/openai.Client:
// same reasoning-model token-field split, same system+user message shape.
type client struct {
	*openai.Client
	model string
}

func newClient(apiKey, model string) *client {
	return &client{Client: openai.NewClient(apiKey), model: model}
}

func (c *client) infer(ctx context.Context, packageID, artifactURL, vcsURL string) (modelResponse, error) {
	model := c.model
	if model == "" {
		model = "gpt-4o-mini"
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(packageID, artifactURL, vcsURL)},
		},
	}
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return modelResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return modelResponse{}, fmt.Errorf("empty completion response")
	}
	return decodeResponse(resp.Choices[0].Message.Content)
}
