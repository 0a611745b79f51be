package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNodeNotFound   = errors.New("node not found")
	ErrResultNotFound = errors.New("stored result not found")
	ErrBackend        = errors.New("graph backend failure")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ResultLookupError reports a result-store miss together with the identifiers
// that do exist, so the caller can recover without a second round trip.
type ResultLookupError struct {
	ID        string
	Available []string
}

func (e *ResultLookupError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("result %q not found, store is empty", e.ID)
	}
	return fmt.Sprintf("result %q not found, available: %s", e.ID, strings.Join(e.Available, ", "))
}

func (e *ResultLookupError) Unwrap() error { return ErrResultNotFound }
