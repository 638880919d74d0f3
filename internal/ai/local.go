package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ticketmind/backend/pkg/breaker"
	"github.com/ticketmind/backend/pkg/logger"
)

// LocalClient talks to an Ollama runtime over its native HTTP API.
type LocalClient struct {
	host       string
	model      string
	httpClient *http.Client
	cb         *breaker.Breaker
}

func NewLocalClient(host, model string, timeoutSec int) *LocalClient {
	if timeoutSec <= 0 {
		// Local runtimes can be slow depending on hardware.
		timeoutSec = 60
	}

	logger.Info("Local AI client initialized",
		zap.String("host", host),
		zap.String("model", model),
	)

	return &LocalClient{
		host:  strings.TrimRight(host, "/"),
		model: model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		cb: breaker.New("local-ai", 5, 2, 30*time.Second, logger.Log),
	}
}

type localOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

func (c *LocalClient) Generate(ctx context.Context, prompt string, opts Options) (*Response, error) {
	body := struct {
		Model   string       `json:"model"`
		Prompt  string       `json:"prompt"`
		Stream  bool         `json:"stream"`
		Options localOptions `json:"options"`
	}{
		Model:   c.model,
		Prompt:  prompt,
		Options: toLocalOptions(opts),
	}

	raw, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Response == "" {
		return nil, fmt.Errorf("%w: invalid generate payload", ErrUnavailable)
	}

	return &Response{Text: sanitizeText(parsed.Response), Raw: raw}, nil
}

func (c *LocalClient) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatMessages := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
		Options  localOptions  `json:"options"`
	}{
		Model:    c.model,
		Messages: chatMessages,
		Options:  toLocalOptions(opts),
	}

	raw, err := c.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Message.Content == "" {
		return nil, fmt.Errorf("%w: invalid chat payload", ErrUnavailable)
	}

	return &Response{Text: sanitizeText(parsed.Message.Content), Raw: raw}, nil
}

func (c *LocalClient) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.cb.Allow(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cb.RecordFailure()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.cb.RecordFailure()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.cb.RecordFailure()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}
	c.cb.RecordSuccess()

	return data, nil
}

func (c *LocalClient) IsConfigured() bool {
	return c.host != "" && c.model != ""
}

func (c *LocalClient) TestConnection(ctx context.Context) bool {
	resp, err := c.Generate(ctx, "Say OK", Options{})
	return err == nil && resp.Text != ""
}

func (c *LocalClient) RequiresRemoteCredentials() bool {
	return false
}

func toLocalOptions(opts Options) localOptions {
	return localOptions{
		Temperature: opts.Temperature,
		TopK:        opts.TopK,
		TopP:        opts.TopP,
		NumPredict:  opts.MaxOutputTokens,
	}
}
