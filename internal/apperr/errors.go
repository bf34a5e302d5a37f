package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures that callers recover from differently
type Kind string

const (
	KindValidation            Kind = "VALIDATION"
	KindExtractionUnavailable Kind = "EXTRACTION_UNAVAILABLE"
	KindGenerationUnavailable Kind = "GENERATION_UNAVAILABLE"
	KindCatalogInconsistency  Kind = "CATALOG_INCONSISTENCY"
	KindConcurrentMutation    Kind = "CONCURRENT_MUTATION_CONFLICT"
	KindNotFound              Kind = "NOT_FOUND"
	KindAlreadyRecorded       Kind = "ALREADY_RECORDED"
)

// Error is a classified error carrying an optional cause
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a classified error
func New(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of the first classified error in the chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
