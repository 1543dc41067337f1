package service

import (
	"errors"
	"fmt"

	"sitegen-backend/internal/model"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrGenerationInFlight = errors.New("a generation is already running for this session")
	ErrNoDocument         = errors.New("no document has been generated yet")
	ErrNotAuthenticated   = errors.New("you must be logged in to do this")
	ErrForbidden          = errors.New("project belongs to another user")
	ErrMissingCredential  = errors.New("no API key is configured")
)

// Failure is the unsuccessful outcome of a generation turn. Message is safe to show to
// the user; Err keeps the raw cause for logs.
type Failure struct {
	Kind    model.ErrorKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

const timedOut = "timed out"

var friendlyMessages = map[model.ErrorKind]string{
	model.ErrAuthInvalid:        "The API key was rejected. Please check it in Settings.",
	model.ErrRateLimited:        "The AI service is receiving too many requests right now. Please wait a moment and try again.",
	model.ErrQuotaExceeded:      "Your API quota has been used up. Please check your plan and billing details.",
	model.ErrContentBlocked:     "The request was blocked by the provider's safety filters. Try rephrasing your request.",
	model.ErrNetworkUnreachable: "Could not reach the AI service. Please check your connection and try again.",
	model.ErrUnknown:            "Something went wrong while generating the website.",
	model.ErrExtractionFailed:   "The AI response did not contain a usable website.",
	model.ErrMissingCredential:  "API key is not set for the selected provider. Please add it in Settings.",
	model.ErrNotAuthenticated:   "Please sign in to generate websites.",
	model.ErrGenerationInFlight: "A generation is already running for this session.",
	model.ErrCancelled:          "The generation was cancelled.",
}

// friendlyMessage turns an error kind into the sentence shown in the transcript. Only
// unclassified failures carry the raw detail.
func friendlyMessage(kind model.ErrorKind, raw string) string {
	msg, ok := friendlyMessages[kind]
	if !ok {
		msg = friendlyMessages[model.ErrUnknown]
		kind = model.ErrUnknown
	}

	switch kind {
	case model.ErrUnknown, model.ErrExtractionFailed:
		if raw != "" {
			msg = fmt.Sprintf("%s (details: %s)", msg, raw)
		}
	case model.ErrNetworkUnreachable:
		if raw == timedOut {
			msg = "The request timed out. Please try again."
		}
	}
	return msg
}
