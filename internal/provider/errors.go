package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"sitegen-backend/internal/model"
	"sitegen-backend/internal/stream"
)

// ProviderError is a vendor or transport failure with its classification. Message is
// the raw vendor text, kept for diagnostics.
type ProviderError struct {
	Kind    model.ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newError(status int, message string, err error) *ProviderError {
	return &ProviderError{
		Kind:    Classify(status, message),
		Status:  status,
		Message: message,
		Err:     err,
	}
}

var (
	authPatterns = []string{
		"api key not valid", "invalid api key", "invalid x-api-key", "incorrect api key",
		"api_key_invalid", "unauthenticated", "permission_denied", "authentication_error",
		"unauthorized", "invalid_api_key",
	}
	quotaPatterns = []string{
		"quota", "billing", "credit balance", "exceeded your current",
	}
	ratePatterns = []string{
		"rate limit", "rate_limit", "too many requests", "resource_exhausted", "overloaded",
	}
	blockedPatterns = []string{
		"safety", "blocked", "content_filter", "content policy", "prohibited_content", "refusal",
	}
	networkPatterns = []string{
		"connection refused", "no such host", "network is unreachable", "dial tcp",
		"i/o timeout", "connection reset", "tls handshake", "timed out", "unexpected eof",
	}
)

// Classify maps an HTTP status and vendor error text to an error kind. Status 0 means
// unknown. Unmatched input is ErrUnknown.
func Classify(status int, message string) model.ErrorKind {
	msg := strings.ToLower(message)

	switch {
	case status == 401 || status == 403 || containsAny(msg, authPatterns):
		return model.ErrAuthInvalid
	case containsAny(msg, quotaPatterns):
		return model.ErrQuotaExceeded
	case status == 429 || containsAny(msg, ratePatterns):
		return model.ErrRateLimited
	case containsAny(msg, blockedPatterns):
		return model.ErrContentBlocked
	case status == 502 || status == 503 || status == 504 || containsAny(msg, networkPatterns):
		return model.ErrNetworkUnreachable
	}
	return model.ErrUnknown
}

// FromError classifies any error surfaced by an adapter or its stream.
func FromError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	err = redactError(err)

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Kind: model.ErrNetworkUnreachable, Message: "timed out", Err: err}
	}

	var ue *stream.UpstreamError
	if errors.As(err, &ue) {
		return newError(ue.Status, strings.TrimSpace(ue.Code+" "+ue.Message), err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(apiErr.HTTPStatusCode, strings.TrimSpace(apiErr.Type+" "+apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Kind: model.ErrNetworkUnreachable, Message: err.Error(), Err: err}
	}

	msg := err.Error()
	return newError(statusFromText(msg), msg, err)
}

var statusPattern = regexp.MustCompile(`(?i)\b(?:error|status(?: code)?)[ :=]*(\d{3})\b`)

// statusFromText pulls a status code out of SDK error strings such as
// "Error 429, Message: ...".
func statusFromText(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
