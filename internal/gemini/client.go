package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client issues single completions using the pool's active credential.
// It never rotates on its own: a quota failure is classified and
// surfaced so the dispatch layer can advance the pool exactly once.
type Client struct {
	pool *Pool
	log  *zap.Logger
}

// NewClient wraps a pool.
func NewClient(pool *Pool, log *zap.Logger) *Client {
	return &Client{pool: pool, log: log}
}

// Generate runs one completion for prompt and classifies any failure.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := c.pool.Complete(ctx, prompt)
	if err != nil {
		err = classify(err)
		if IsQuota(err) {
			c.log.Warn("completion hit quota on active credential",
				zap.Int("index", c.pool.Index()))
		} else {
			c.log.Error("completion failed", zap.Error(err))
		}
		return "", err
	}
	return text, nil
}

// genaiBackend is the production Backend over the official SDK.
type genaiBackend struct {
	client *genai.Client
	model  string
}

// dialGenAI builds a Gemini client for a single API key.
func dialGenAI(ctx context.Context, key, model string) (Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &genaiBackend{client: client, model: model}, nil
}

func (b *genaiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty completion")
	}
	return text, nil
}

// Close is a no-op: the SDK client holds no resources that need explicit
// teardown and offers no Close of its own.
func (b *genaiBackend) Close() error {
	return nil
}
