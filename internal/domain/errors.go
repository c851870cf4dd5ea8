package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredential means no API key could be resolved for a source.
	ErrCredential = errors.New("credential not resolved")

	// ErrMalformedResponse is wrapped in a ProviderError when a payload
	// cannot be decoded into the expected shape.
	ErrMalformedResponse = errors.New("malformed provider response")

	ErrUnknownSource = errors.New("unknown source")
)

// ProviderError represents a listing or fetch failure against a remote provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, op string, statusCode int, err error) error {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewMalformedError wraps a decode failure as a ProviderError.
func NewMalformedError(provider, op string, cause error) error {
	if cause == nil {
		return NewProviderError(provider, op, 0, ErrMalformedResponse)
	}
	return NewProviderError(provider, op, 0, fmt.Errorf("%w: %v", ErrMalformedResponse, cause))
}

// TagNotFoundError is returned when a tag name has no match on the provider.
type TagNotFoundError struct {
	Tag       string
	Available []string
}

func (e *TagNotFoundError) Error() string {
	return fmt.Sprintf("tag %q not found; available tags: %s", e.Tag, strings.Join(e.Available, ", "))
}

// StorageError wraps a failure of the local store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError returns nil when err is nil so callers can wrap unconditionally.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
