// Package agents provides the model-backed trading firms: their clients,
// prompt assembly, and decision validation.
package agents

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Shilder25/opinion-arena/internal/config"
	apperrors "github.com/Shilder25/opinion-arena/internal/errors"
	"github.com/Shilder25/opinion-arena/pkg/utils"
)

// LLMClient abstracts a firm's model endpoint.
type LLMClient interface {
	// Predict sends the analysis prompt and returns the model's raw
	// JSON decision blob.
	Predict(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIClient implements LLMClient against any OpenAI-compatible
// endpoint. All five firm providers expose this wire format.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	firmName string
}

// NewOpenAIClient creates a client for one firm's endpoint.
func NewOpenAIClient(fc config.FirmConfig) *OpenAIClient {
	cfg := openai.DefaultConfig(fc.APIKey)
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	return &OpenAIClient{
		client:   openai.NewClientWithConfig(cfg),
		model:    fc.ModelID,
		firmName: fc.Name,
	}
}

// Predict sends the prompt and returns the raw completion. Rate-limit
// responses are retried with exponential backoff, other failures are not.
func (c *OpenAIClient) Predict(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	cfg := utils.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 3.0,
		Jitter:        0.2,
		Classify:      isRateLimit,
	}

	content, err := utils.RetryWithResult(ctx, cfg, func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", apperrors.NewAgentError(c.firmName, "predict", err)
	}
	return content, nil
}

// isRateLimit reports whether an API error is a 429-class throttle.
func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if apperrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
