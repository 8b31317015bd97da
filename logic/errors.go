package logic

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies an engine outcome. Domain kinds are expected,
// recoverable-by-caller results; StorageFault marks an underlying store
// failure and is the only kind the request layer should treat as 5xx.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidContext    Kind = "INVALID_CONTEXT"
	KindConversationEnded Kind = "CONVERSATION_ENDED"
	KindForbidden         Kind = "FORBIDDEN"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindInvalidState      Kind = "INVALID_STATE"
	KindStorageFault      Kind = "STORAGE_FAULT"
)

// DomainError is a structured engine failure.
type DomainError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *DomainError) Unwrap() error { return e.Err }

func notFound(msg string) error {
	return &DomainError{Kind: KindNotFound, Msg: msg}
}

func invalidContext(context string) error {
	return &DomainError{Kind: KindInvalidContext, Msg: fmt.Sprintf("unknown context %q", context)}
}

func conversationEnded(context string) error {
	return &DomainError{Kind: KindConversationEnded, Msg: fmt.Sprintf("conversation already completed context %q", context)}
}

func forbidden(msg string) error {
	return &DomainError{Kind: KindForbidden, Msg: msg}
}

func invalidArgument(msg string) error {
	return &DomainError{Kind: KindInvalidArgument, Msg: msg}
}

func invalidState(msg string) error {
	return &DomainError{Kind: KindInvalidState, Msg: msg}
}

// storageFault wraps a store error, preserving the cause for logs.
func storageFault(op string, err error) error {
	return &DomainError{Kind: KindStorageFault, Msg: op, Err: err}
}

// KindOf extracts the kind of an engine error.
func KindOf(err error) (Kind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// isNotFound reports whether a DAO error means "no such row" as opposed to a
// storage fault.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
