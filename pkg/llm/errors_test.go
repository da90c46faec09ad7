package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantTimeout bool
		wantRetry   bool
	}{
		{
			name:        "deadline exceeded",
			err:         context.DeadlineExceeded,
			wantTimeout: true,
			wantRetry:   true,
		},
		{
			name:        "timeout in message",
			err:         errors.New("Post \"https://api\": request timeout"),
			wantTimeout: true,
			wantRetry:   true,
		},
		{
			name:      "rate limited",
			err:       errors.New("error, status code: 429, message: rate limit exceeded"),
			wantRetry: true,
		},
		{
			name: "auth failure",
			err:  errors.New("error, status code: 401, message: invalid api key"),
		},
		{
			name: "unknown",
			err:  errors.New("something odd"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError(tt.err)
			assert.Equal(t, tt.wantTimeout, classified.Timeout)
			assert.Equal(t, tt.wantRetry, classified.Retryable)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(ClassifyError(context.DeadlineExceeded)))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("nope")))
	assert.False(t, IsTimeout(nil))
}
