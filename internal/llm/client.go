package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/internal/metrics"
	"github.com/contentpulse/backend/pkg/circuitbreaker"
	"github.com/contentpulse/backend/pkg/logger"
	"github.com/contentpulse/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	// Operation labels the request in metrics. Empty falls back to "completion".
	Operation    string
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		RetryIf: func(err error) bool {
			// A canceled upload should not burn retry attempts.
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		Logger: logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 120
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.Int("timeout_sec", timeoutSec),
	)

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	operation := req.Operation
	if operation == "" {
		operation = "completion"
	}

	var result *CompletionResponse
	startTime := time.Now()

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	metrics.LLMRequestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(result.Usage.CompletionTokens))

	return result, nil
}

// AssistantReply answers a free-form question about a finished report. The
// report context is pre-rendered by the caller so the assistant only ever
// speaks to numbers the engine produced.
func (c *Client) AssistantReply(ctx context.Context, question, reportContext string) (string, error) {
	systemPrompt := `You are a content performance analyst assistant. Answer questions about the user's content report.

Your answers must:
1. Use ONLY the report data provided, never outside knowledge of the site
2. Quote concrete numbers (clicks, impressions, percentages) from the report
3. Name the tier (top, potential, standard) when discussing a theme or entity
4. Say plainly when the report does not contain the answer

Be concise and specific.`

	userPrompt := fmt.Sprintf(`Question: %s

Report data:
%s`, question, reportContext)

	resp, err := c.Complete(ctx, CompletionRequest{
		Operation:    "assistant",
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
	})

	if err != nil {
		return "", fmt.Errorf("failed to generate assistant reply: %w", err)
	}

	logger.Info("Assistant reply generated",
		zap.Int("question_length", len(question)),
		zap.Int("reply_length", len(resp.Content)),
	)

	return resp.Content, nil
}
