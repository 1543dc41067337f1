package model

import "time"

// ProviderID names one LLM backend in the provider registry.
type ProviderID string

const (
	ProviderGemini    ProviderID = "gemini"
	ProviderGeminiSDK ProviderID = "gemini-sdk"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderOpenAI    ProviderID = "openai"
	ProviderDoubao    ProviderID = "doubao"
	ProviderQwen      ProviderID = "qwen"
	ProviderProxy     ProviderID = "proxy"
	ProviderMock      ProviderID = "mock"
)

// GenerationRequest is built once per user submission and never modified afterwards.
type GenerationRequest struct {
	Prompt          string
	BaseDocument    *string
	Provider        ProviderID
	Credential      string
	AuxiliaryConfig map[string]string
}

// HasBase reports whether the request modifies an existing document.
func (r GenerationRequest) HasBase() bool {
	return r.BaseDocument != nil && *r.BaseDocument != ""
}

type EventKind string

const (
	EventDelta EventKind = "delta"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// StreamEvent is one element of a provider's lazy output sequence.
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  error
}

func (e StreamEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// Document is a finalized single-file website. Once committed to a version history it
// is never modified.
type Document struct {
	Content            string    `json:"content"`
	SourcePrompt       string    `json:"source_prompt"`
	CreatedFromVersion *int      `json:"created_from_version,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ErrorKind classifies every failure a generation turn can end with.
type ErrorKind string

const (
	ErrMissingCredential  ErrorKind = "MissingCredential"
	ErrNotAuthenticated   ErrorKind = "NotAuthenticated"
	ErrAuthInvalid        ErrorKind = "AuthInvalid"
	ErrRateLimited        ErrorKind = "RateLimited"
	ErrQuotaExceeded      ErrorKind = "QuotaExceeded"
	ErrContentBlocked     ErrorKind = "ContentBlocked"
	ErrNetworkUnreachable ErrorKind = "NetworkUnreachable"
	ErrUnknown            ErrorKind = "Unknown"
	ErrExtractionFailed   ErrorKind = "ExtractionFailed"
	ErrIndexOutOfRange    ErrorKind = "IndexOutOfRange"
	ErrGenerationInFlight ErrorKind = "GenerationInFlight"
	ErrCancelled          ErrorKind = "Cancelled"
)
