package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable category of a domain failure
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NotFound"
	KindAccessDenied       ErrorKind = "AccessDenied"
	KindInvalidTransition  ErrorKind = "InvalidTransition"
	KindInvariantViolation ErrorKind = "InvariantViolation"
	KindIncompleteSchedule ErrorKind = "IncompleteSchedule"
	KindTimeout            ErrorKind = "Timeout"
	KindSessionExpired     ErrorKind = "SessionExpired"
)

// Error is a domain failure carrying the identifiers it concerns
type Error struct {
	Kind    ErrorKind
	Message string
	IDs     []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.IDs) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.IDs, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the caller may retry the operation
func (e *Error) Retryable() bool { return e.Kind == KindTimeout }

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrAccessDenied       = &Error{Kind: KindAccessDenied}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrIncompleteSchedule = &Error{Kind: KindIncompleteSchedule}
	ErrTimeout            = &Error{Kind: KindTimeout}
	ErrSessionExpired     = &Error{Kind: KindSessionExpired}
)

func NotFound(entity string, ids ...string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found", IDs: ids}
}

func AccessDenied(msg string, ids ...string) *Error {
	return &Error{Kind: KindAccessDenied, Message: msg, IDs: ids}
}

func InvalidTransition(from, to RequestStatus, ids ...string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot move from %s to %s", from, to), IDs: ids}
}

func InvariantViolation(msg string, ids ...string) *Error {
	return &Error{Kind: KindInvariantViolation, Message: msg, IDs: ids}
}

func IncompleteSchedule(msg string, ids ...string) *Error {
	return &Error{Kind: KindIncompleteSchedule, Message: msg, IDs: ids}
}

func Timeout(op string, err error, ids ...string) *Error {
	return &Error{Kind: KindTimeout, Message: op + " timed out", IDs: ids, Err: err}
}

func SessionExpired(msg string) *Error {
	return &Error{Kind: KindSessionExpired, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
