// Package generator defines the external content-generation collaborators:
// a sentence generator that produces example usage for a word, and an audio
// synthesizer that produces spoken audio for a sentence. Failures carry a
// transient/permanent classification that drives the worker's retry policy.
package generator

import (
	"context"
	"errors"
	"fmt"
)

// GeneratedSentence is one example sentence produced for a word.
type GeneratedSentence struct {
	Text               string `json:"text"`
	Translation        string `json:"translation"`
	ContextText        string `json:"context,omitempty"`
	ContextTranslation string `json:"context_translation,omitempty"`
}

// Request describes the material wanted for a single word.
type Request struct {
	Word     string
	Language string
	Topic    string
	Count    int

	// KnownWords hints the learner's current vocabulary so generated
	// sentences reinforce words already being studied.
	KnownWords []string
}

// SentenceGenerator produces example sentences with translations.
type SentenceGenerator interface {
	GenerateSentences(ctx context.Context, req Request) ([]GeneratedSentence, error)
}

// AudioSynthesizer produces spoken audio for text and returns a reference
// (file path or URI) to the result.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, text, language, idHint string) (string, error)
}

// TransientError marks a failure worth retrying (engine busy, malformed
// model output, network hiccup).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (unsupported
// language, rejected input).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanent wraps err as not retryable.
func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err is classified as not worth retrying.
// Unclassified errors default to transient: the worker retries until its
// attempt budget runs out.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
