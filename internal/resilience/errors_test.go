package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("server overloaded"), 503), true},
		{"wrapped", fmt.Errorf("perplexica: %w", NewTransientError(errors.New("rate limited"), 429)), true},
		{"deadline", fmt.Errorf("perplexica: do request: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"conn reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"pattern", errors.New("read: TLS handshake timeout"), true},
		{"regular", errors.New("invalid input: missing field"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "HTTP %d", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "HTTP %d", code)
	}
}

func TestStatusError(t *testing.T) {
	err := StatusError("perplexica", 503, "overloaded")
	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 503, te.StatusCode)
	assert.Contains(t, err.Error(), "perplexica: unexpected status 503: overloaded")

	err = StatusError("perplexica", 400, "bad request")
	assert.False(t, IsTransient(err))
	assert.Equal(t, ClassPermanent, ClassifyError(err))
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 500)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ClassTransient, ClassifyError(NewTransientError(errors.New("x"), 429)))
	assert.Equal(t, ClassPermanent, ClassifyError(errors.New("missing fields")))
}
