package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlagent-dev/sqlagent-engine/pkg/retry"
)

func fastRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:   2,
		InitialDelay: 1,
		MaxDelay:     1,
		Multiplier:   1.0,
	}
}

func TestRetryingClientRetriesTransientFailures(t *testing.T) {
	mock := NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ CompletionRequest) (string, error) {
		if len(mock.CompleteCalls) < 2 {
			return "", &Error{Message: "rate limited", Retryable: true}
		}
		return "answer", nil
	}

	client := NewRetryingClient(mock, fastRetryConfig())
	response, err := client.Complete(context.Background(), CompletionRequest{Prompt: "q"})

	require.NoError(t, err)
	assert.Equal(t, "answer", response)
	assert.Len(t, mock.CompleteCalls, 2)
}

func TestRetryingClientDoesNotRetryPermanentFailures(t *testing.T) {
	mock := NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ CompletionRequest) (string, error) {
		return "", &Error{Message: "authentication failed"}
	}

	client := NewRetryingClient(mock, fastRetryConfig())
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "q"})

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Len(t, mock.CompleteCalls, 1)
}

func TestRetryingClientStopsWhenContextExpires(t *testing.T) {
	mock := NewMockClient()
	mock.CompleteFunc = func(_ context.Context, _ CompletionRequest) (string, error) {
		return "", &Error{Message: "connection failed", Retryable: true}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewRetryingClient(mock, fastRetryConfig())
	_, err := client.Complete(ctx, CompletionRequest{Prompt: "q"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryingClientDelegatesModel(t *testing.T) {
	mock := NewMockClient()
	mock.ModelName = "test-model"
	client := NewRetryingClient(mock, nil)
	assert.Equal(t, "test-model", client.Model())
}
