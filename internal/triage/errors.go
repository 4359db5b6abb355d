package triage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, matched with errors.Is at every layer.
var (
	// ErrRuleNotFound means a mutation targeted a rule id absent from the document.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrStorageRead means the backend could not be read or parsed.
	ErrStorageRead = errors.New("storage read failed")

	// ErrStorageWrite means the backend could not persist the document.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrNoConfig is returned by a Store that has never been written.
	ErrNoConfig = errors.New("no triage configuration stored")
)

// RuleNotFoundError carries the id that was looked up.
type RuleNotFoundError struct {
	ID string
}

func (e *RuleNotFoundError) Error() string {
	return fmt.Sprintf("rule with id %s not found", e.ID)
}

// Is makes errors.Is(err, ErrRuleNotFound) hold.
func (e *RuleNotFoundError) Is(target error) bool { return target == ErrRuleNotFound }

// StorageOp names the side of a storage failure.
type StorageOp string

const (
	OpRead  StorageOp = "read"
	OpWrite StorageOp = "write"
)

// StorageError wraps a backend failure with the operation that failed.
type StorageError struct {
	Op  StorageOp
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("triage config %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is maps the operation onto ErrStorageRead / ErrStorageWrite.
func (e *StorageError) Is(target error) bool {
	switch e.Op {
	case OpRead:
		return target == ErrStorageRead
	case OpWrite:
		return target == ErrStorageWrite
	}
	return false
}

// FieldError is one violated constraint, addressed by its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated constraint of an input, not just the first.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field == "" {
			parts = append(parts, fe.Message)
			continue
		}
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Kind classifies a service error for the transport boundary.
type Kind int

const (
	// KindInternal is a storage or unexpected failure (500-class).
	KindInternal Kind = iota

	// KindNotFound means the targeted rule does not exist (404-class).
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is what the Service returns instead of raw storage errors. Msg is stable and
// safe to show to clients; Err keeps the cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a not-found failure from any layer.
func IsNotFound(err error) bool {
	var se *Error
	if errors.As(err, &se) && se.Kind == KindNotFound {
		return true
	}
	return errors.Is(err, ErrRuleNotFound)
}
