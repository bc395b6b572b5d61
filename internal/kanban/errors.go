// Package kanban holds the error taxonomy shared by the board, event log,
// webhook and rate limiting components. Callers branch on Kind, never on
// message text.
package kanban

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// Validation.
	EmptyTask         Kind = "EmptyTask"
	EmptyName         Kind = "EmptyName"
	EmptyQuery        Kind = "EmptyQuery"
	EmptyURL          Kind = "EmptyUrl"
	EmptyBatch        Kind = "EmptyBatch"
	EmptyComment      Kind = "EmptyComment"
	InvalidURL        Kind = "InvalidUrl"
	InvalidColumnList Kind = "InvalidColumnList"
	InvalidEventType  Kind = "InvalidEventType"
	InvalidFormat     Kind = "InvalidFormat"
	InvalidRequest    Kind = "InvalidRequest"
	BatchTooLarge     Kind = "BatchTooLarge"
	InvalidBatchOp    Kind = "InvalidBatchOp"

	// Referential.
	BoardNotFound   Kind = "BoardNotFound"
	ColumnNotFound  Kind = "ColumnNotFound"
	TaskNotFound    Kind = "TaskNotFound"
	WebhookNotFound Kind = "WebhookNotFound"

	// Policy.
	DisplayNameRequired Kind = "DisplayNameRequired"
	AlreadyArchived     Kind = "AlreadyArchived"
	NotArchived         Kind = "NotArchived"
	BoardArchived       Kind = "BoardArchived"
	ColumnArchived      Kind = "ColumnArchived"
	LastColumn          Kind = "LastColumn"
	ColumnNotEmpty      Kind = "ColumnNotEmpty"

	// Conflict.
	AlreadyClaimed   Kind = "AlreadyClaimed"
	WipLimitExceeded Kind = "WipLimitExceeded"

	// Authorization and throttling.
	Unauthorized      Kind = "Unauthorized"
	RateLimitExceeded Kind = "RateLimitExceeded"

	// Internal covers storage and other unexpected failures.
	Internal Kind = "Internal"
)

// Class groups kinds for transport mapping.
type Class int

const (
	ClassInternal Class = iota
	ClassValidation
	ClassReferential
	ClassPolicy
	ClassConflict
	ClassAuthorization
	ClassThrottling
)

var classes = map[Kind]Class{
	EmptyTask:           ClassValidation,
	EmptyName:           ClassValidation,
	EmptyQuery:          ClassValidation,
	EmptyURL:            ClassValidation,
	EmptyBatch:          ClassValidation,
	EmptyComment:        ClassValidation,
	InvalidURL:          ClassValidation,
	InvalidColumnList:   ClassValidation,
	InvalidEventType:    ClassValidation,
	InvalidFormat:       ClassValidation,
	InvalidRequest:      ClassValidation,
	BatchTooLarge:       ClassValidation,
	InvalidBatchOp:      ClassValidation,
	BoardNotFound:       ClassReferential,
	ColumnNotFound:      ClassReferential,
	TaskNotFound:        ClassReferential,
	WebhookNotFound:     ClassReferential,
	DisplayNameRequired: ClassPolicy,
	AlreadyArchived:     ClassPolicy,
	NotArchived:         ClassPolicy,
	BoardArchived:       ClassPolicy,
	ColumnArchived:      ClassPolicy,
	LastColumn:          ClassPolicy,
	ColumnNotEmpty:      ClassPolicy,
	AlreadyClaimed:      ClassConflict,
	WipLimitExceeded:    ClassConflict,
	Unauthorized:        ClassAuthorization,
	RateLimitExceeded:   ClassThrottling,
}

// Class returns the group a kind belongs to. Unknown kinds are internal.
func (k Kind) Class() Class {
	if c, ok := classes[k]; ok {
		return c
	}
	return ClassInternal
}

// Error is a classified failure. Two Errors match under errors.Is when their
// kinds are equal, so sentinels from New can be compared directly.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports kind equality.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// E returns a bare sentinel for kind, suitable for errors.Is comparisons.
func E(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf extracts the kind from err, or Internal when err is unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
