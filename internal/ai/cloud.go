package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/pkg/breaker"
	"github.com/ticketmind/backend/pkg/logger"
)

// CloudClient talks to an OpenAI-compatible chat-completions endpoint.
type CloudClient struct {
	client  *openai.Client
	apiKey  string
	model   string
	timeout time.Duration
	cb      *breaker.Breaker
}

func NewCloudClient(apiKey, baseURL, model string, timeoutSec int) *CloudClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	logger.Info("Cloud AI client initialized",
		zap.String("model", model),
		zap.Bool("configured", apiKey != ""),
	)

	return &CloudClient{
		client:  openai.NewClientWithConfig(cfg),
		apiKey:  apiKey,
		model:   model,
		timeout: time.Duration(timeoutSec) * time.Second,
		cb:      breaker.New("cloud-ai", 5, 2, 30*time.Second, logger.Log),
	}
}

func (c *CloudClient) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	return c.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts)
}

func (c *CloudClient) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.cb.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	// TopK is not part of the chat-completions API and is ignored here.
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxOutputTokens,
	})
	if err != nil {
		c.cb.RecordFailure()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		// A payload without text is indistinguishable from a transport
		// failure for callers.
		c.cb.RecordFailure()
		return nil, fmt.Errorf("%w: empty completion payload", ErrUnavailable)
	}
	c.cb.RecordSuccess()

	raw, _ := json.Marshal(resp)

	logger.Debug("Cloud completion generated",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return &Response{
		Text: sanitizeText(resp.Choices[0].Message.Content),
		Raw:  raw,
	}, nil
}

func (c *CloudClient) IsConfigured() bool {
	return c.apiKey != "" && c.model != ""
}

func (c *CloudClient) TestConnection(ctx context.Context) bool {
	resp, err := c.Generate(ctx, `Hello, reply with "OK" only.`, Options{MaxOutputTokens: 8})
	return err == nil && resp.Text != ""
}

func (c *CloudClient) RequiresRemoteCredentials() bool {
	return true
}
