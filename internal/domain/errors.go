package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks user input that was rejected; the user is re-prompted.
	ErrValidation = errors.New("validation failed")
	// ErrStaleEvent marks an inbound event that no longer applies to the conversation.
	ErrStaleEvent = errors.New("stale event")
	// ErrNotFound indicates a session or question position lookup failed.
	ErrNotFound = errors.New("not found")
	// ErrStorage wraps any persistence failure. The write it belongs to was not applied.
	ErrStorage = errors.New("storage failure")
	// ErrNotification marks a failed result notification. Never surfaced to the user.
	ErrNotification = errors.New("notification failed")
	// ErrInsufficientBank is returned when a bank has fewer questions than a variant requires.
	ErrInsufficientBank = errors.New("insufficient question bank")
	// ErrActiveSession is returned when an identity already has an in-progress session.
	ErrActiveSession = errors.New("identity already has an active session")
)

var (
	ErrNameTooShort       = fmt.Errorf("%w: name must be at least %d characters", ErrValidation, MinNameLength)
	ErrUnknownVariant     = fmt.Errorf("%w: unknown test variant", ErrValidation)
	ErrOptionOutOfRange   = fmt.Errorf("%w: option index out of range", ErrValidation)
	ErrMalformedSelection = fmt.Errorf("%w: malformed selection payload", ErrStaleEvent)
	ErrNotCurrentQuestion = fmt.Errorf("%w: not the current question", ErrStaleEvent)
	ErrSessionNotFound    = fmt.Errorf("%w: session", ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("%w: question position", ErrNotFound)
	ErrStateNotFound      = fmt.Errorf("%w: conversation state", ErrNotFound)
	ErrBankNotFound       = fmt.Errorf("%w: question bank", ErrNotFound)
)
