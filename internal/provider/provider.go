package provider

import (
	"context"
	"fmt"
	"strings"
)

// ErrorKind classifies provider failures. The fallback coordinator treats
// every kind the same (advance to the next candidate); the distinction
// exists for logging and for the orchestrator's audio-timeout handling.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
	KindTimeout   ErrorKind = "timeout"
)

// Error is a failure of one concrete provider call. Adapters never retry;
// retry policy lives in the fallback coordinator.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func transientErr(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTransient, Err: err}
}

func permanentErr(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindPermanent, Err: err}
}

func timeoutErr(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: KindTimeout, Err: err}
}

// classifyHTTP maps an upstream status code to an error kind:
// rate limits and 5xx are transient, everything else is permanent.
func classifyHTTP(provider string, status int, body string) *Error {
	err := fmt.Errorf("unexpected status %d: %s", status, body)
	if status == 429 || status >= 500 {
		return transientErr(provider, err)
	}
	return permanentErr(provider, err)
}

// wrapTransport maps a failed round trip, turning a context deadline into
// a timeout error so the orchestrator can tell budget exhaustion apart
// from a flaky network.
func wrapTransport(ctx context.Context, provider string, err error) *Error {
	if ctx.Err() == context.DeadlineExceeded {
		return timeoutErr(provider, err)
	}
	return transientErr(provider, err)
}

// TextRequest describes one narration script to generate.
type TextRequest struct {
	Subject         string
	City            string
	Interests       []string
	DurationMinutes int
	Language        string
}

// TextResult is the strictly validated provider output.
type TextResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TextGenerator is the text-generation capability.
type TextGenerator interface {
	Name() string
	Model() string
	GenerateTour(ctx context.Context, req *TextRequest) (*TextResult, error)
}

// SpeechRequest describes one synthesis call over an already-generated
// script. Text longer than the adapter's character budget is truncated
// before submission.
type SpeechRequest struct {
	Text  string
	Voice string
	Speed float64
}

// AudioSynthesizer is the audio-synthesis capability.
type AudioSynthesizer interface {
	Name() string
	SynthesizeSpeech(ctx context.Context, req *SpeechRequest) ([]byte, error)
}

// ExhaustedError means every configured provider for a capability failed.
// The individual failures are kept for diagnostics and are never surfaced
// verbatim to end users.
type ExhaustedError struct {
	Capability string
	Failures   []error
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no providers configured for %s", e.Capability)
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("all %s providers exhausted: %s", e.Capability, strings.Join(msgs, "; "))
}
