package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrKeyRequired is returned when a request arrives without an API key.
	ErrKeyRequired = errors.New("gemini api key is required")

	// ErrTestKey is returned for placeholder keys that must not reach the
	// provider.
	ErrTestKey = errors.New("test api key is not supported")

	// ErrRateLimited maps provider 429 responses.
	ErrRateLimited = errors.New("llm rate limit exceeded")

	// ErrInvalidAPIKey maps provider 400/401/403 responses.
	ErrInvalidAPIKey = errors.New("invalid api key or request")

	// ErrUnavailable maps provider 5xx responses and transport failures.
	ErrUnavailable = errors.New("llm service unavailable")
)

// executionTestKeys is the reject list for code execution requests.
// connectionTestKeys additionally rejects "test_key" on connection tests.
var (
	executionTestKeys  = []string{"test_key_123", "your_api_key_here", "test"}
	connectionTestKeys = []string{"test_key", "test_key_123", "your_api_key_here", "test"}
)

func ValidateExecutionKey(apiKey string) error {
	return validateKey(apiKey, executionTestKeys)
}

func ValidateConnectionKey(apiKey string) error {
	return validateKey(apiKey, connectionTestKeys)
}

func validateKey(apiKey string, rejected []string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrKeyRequired
	}
	for _, k := range rejected {
		if apiKey == k {
			return ErrTestKey
		}
	}
	return nil
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	return err
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
