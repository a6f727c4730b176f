package provider

import (
	"errors"
	"fmt"
)

// Common errors for provider operations.
var (
	// ErrNotFound indicates a record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a record already exists with the same name, type, and value.
	ErrConflict = errors.New("record already exists")

	// ErrUnauthorized indicates authentication failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderUnavailable indicates the provider API is unreachable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates the provider rejected the request for exceeding its rate limit.
	ErrRateLimited = errors.New("rate limited")
)

// FetchError reports a failure to read the zone.
// Transient errors are expected to clear up on a later cycle; permanent ones
// (bad credentials, missing zone) need operator action.
type FetchError struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: fetch failed (%s): %v", e.Provider, kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a FetchError, classifying it with IsTransient.
func NewFetchError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{
		Provider:  provider,
		Transient: IsTransient(err),
		Err:       err,
	}
}

// ApplyError wraps a failure of a single action.
type ApplyError struct {
	Action Action
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action.Kind, e.Action.Key(), e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates a record already exists.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnauthorized returns true if the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsProviderUnavailable returns true if the error indicates the provider is unreachable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsTransient returns true unless the error is known to need operator action.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Transient
	}
	return !IsUnauthorized(err) && !IsNotFound(err)
}
