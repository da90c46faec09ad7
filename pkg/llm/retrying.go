package llm

import (
	"context"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/retry"
)

// retryingClient wraps a Client with backoff on retryable provider errors
// (rate limits, connection failures). Timeouts surface immediately once the
// request context is spent.
type retryingClient struct {
	inner Client
	cfg   *retry.Config
}

// NewRetryingClient decorates client with retry behavior. A nil cfg uses the
// package defaults.
func NewRetryingClient(client Client, cfg *retry.Config) Client {
	return &retryingClient{inner: client, cfg: cfg}
}

func (c *retryingClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return retry.DoWithResult(ctx, c.cfg, func() (string, error) {
		return c.inner.Complete(ctx, req)
	})
}

func (c *retryingClient) Model() string { return c.inner.Model() }

var _ Client = (*retryingClient)(nil)
