// Package model holds the interview domain types and the error taxonomy
// shared by the store, the generation adapters and the HTTP layer.
// Callers should match errors with errors.Is / errors.As.
package model

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNotFound = errors.New("interview not found")

	// Input errors, raised before any network call.
	ErrValidation     = errors.New("validation error")
	ErrAnswerRequired = errors.New("answer required")

	// Lifecycle errors.
	ErrIllegalTransition = errors.New("illegal status transition")

	// Generation errors.
	ErrGenerationFormat  = errors.New("generation response has an invalid format")
	ErrGenerationService = errors.New("generation service unavailable")

	// Identity errors.
	ErrIdentityNotLoaded = errors.New("identity not loaded")
	ErrUnauthenticated   = errors.New("unauthenticated")

	// Device errors.
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// GenerationOp names the adapter call that failed.
type GenerationOp string

const (
	OpQuestions GenerationOp = "questions"
	OpFeedback  GenerationOp = "feedback"
)

// GenerationError is returned by both generation adapters. Kind is either
// ErrGenerationFormat or ErrGenerationService.
type GenerationError struct {
	Op   GenerationOp
	Kind error
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed, retry: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// UserMessage is the message shown to the user for this failure.
func (e *GenerationError) UserMessage() string {
	if e.Op == OpFeedback {
		return "Failed to generate feedback. Please try again."
	}
	return "Failed to generate interview questions. Please try again."
}

// NewFormatError wraps err as a format failure of op.
func NewFormatError(op GenerationOp, err error) error {
	return &GenerationError{Op: op, Kind: ErrGenerationFormat, Err: err}
}

// NewServiceError wraps err as a service failure of op.
func NewServiceError(op GenerationOp, err error) error {
	return &GenerationError{Op: op, Kind: ErrGenerationService, Err: err}
}

// ValidationError reports a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError describes a rejected (from, event) pair.
type TransitionError struct {
	From   Status
	Event  string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s interview in status %q: %s", e.Event, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s interview in status %q", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}
