package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tramitalabs/convoca/internal/domain"
)

// Completion is the result of one chat completion call. Confidence is
// derived from the response token logprobs when the model reports them,
// otherwise it falls back to a neutral default.
type Completion struct {
	Text       string
	Confidence float64
}

const defaultConfidence = 0.75

// ChatAPI defines the interface for chat completion calls
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient calls one OpenAI chat model. Two instances with different
// model names make up the cheap and premium tiers.
type ChatClient struct {
	api   ChatAPI
	model string
}

// NewChatClient creates a completion client for the given model name.
func NewChatClient(apiKey, model string) *ChatClient {
	return &ChatClient{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// NewChatClientWithTimeout creates a completion client whose HTTP calls
// are bounded by the given timeout.
func NewChatClientWithTimeout(apiKey, model string, timeout time.Duration) *ChatClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &ChatClient{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// NewChatClientWithAPI creates a completion client over an injected API, used in tests.
func NewChatClientWithAPI(api ChatAPI, model string) *ChatClient {
	return &ChatClient{api: api, model: model}
}

// Model returns the model name reported in the model_used response field.
func (c *ChatClient) Model() string {
	return c.model
}

// Complete runs one chat completion against the client's model.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		LogProbs: true,
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no completion choices returned")
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:       choice.Message.Content,
		Confidence: confidenceFromLogProbs(choice.LogProbs),
	}, nil
}

// confidenceFromLogProbs averages token probabilities into a 0-1 score.
func confidenceFromLogProbs(lp *openai.LogProbs) float64 {
	if lp == nil || len(lp.Content) == 0 {
		return defaultConfidence
	}
	var sum float64
	for _, token := range lp.Content {
		sum += math.Exp(token.LogProb)
	}
	return sum / float64(len(lp.Content))
}

// classifyProviderError maps OpenAI SDK failures onto the domain taxonomy so
// callers can distinguish transient conditions from permanent ones.
func classifyProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeTransientProvider, "provider call timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.NewDomainErrorWithCause(domain.ErrCodeTransientProvider, "provider rate limit exceeded", err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.NewDomainErrorWithCause(domain.ErrCodeTransientProvider, "provider unavailable", err)
		}
	}

	return err
}
