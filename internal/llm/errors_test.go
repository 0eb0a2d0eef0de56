package llm

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestValidateExecutionKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"", ErrKeyRequired},
		{"   ", ErrKeyRequired},
		{"test_key_123", ErrTestKey},
		{"your_api_key_here", ErrTestKey},
		{"test", ErrTestKey},
		// execution accepts "test_key"; only connection tests reject it
		{"test_key", nil},
		{"AIzaSyReal-Key", nil},
	}
	for _, tt := range tests {
		if got := ValidateExecutionKey(tt.key); !errors.Is(got, tt.want) {
			t.Errorf("ValidateExecutionKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestValidateConnectionKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"", ErrKeyRequired},
		{"test_key", ErrTestKey},
		{"test_key_123", ErrTestKey},
		{"AIzaSyReal-Key", nil},
	}
	for _, tt := range tests {
		if got := ValidateConnectionKey(tt.key); !errors.Is(got, tt.want) {
			t.Errorf("ValidateConnectionKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{429, ErrRateLimited},
		{400, ErrInvalidAPIKey},
		{401, ErrInvalidAPIKey},
		{403, ErrInvalidAPIKey},
		{500, ErrUnavailable},
		{503, ErrUnavailable},
	}
	for _, tt := range tests {
		in := &openai.APIError{HTTPStatusCode: tt.status, Message: "boom"}
		if got := classifyError(in); !errors.Is(got, tt.want) {
			t.Errorf("classifyError(status %d) = %v, want %v", tt.status, got, tt.want)
		}
	}

	plain := errors.New("dial tcp: connection refused")
	if got := classifyError(plain); got != plain {
		t.Errorf("classifyError(plain) = %v, want error passed through", got)
	}
}
