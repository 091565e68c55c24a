package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/EmanAguilera/FiamBond-sub000/internal/store"
)

// Error kinds. Every error returned by LoanService wraps exactly one of them.
var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("not authorized")
	ErrStateConflict    = errors.New("state conflict")
	ErrLoanNotFound     = errors.New("loan not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUploadFailed     = errors.New("upload failed")
)

var kinds = []error{
	ErrValidation,
	ErrUnauthorized,
	ErrStateConflict,
	ErrLoanNotFound,
	ErrStoreUnavailable,
	ErrUploadFailed,
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func conflictf(format string, args ...any) error {
	return wrap(ErrStateConflict, format, args...)
}

func kindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// storeError translates an error that came back from the store. Errors raised
// by the engine inside the atomic scope pass through untouched.
func storeError(err error) error {
	if kindOf(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, store.ErrLoanNotFound):
		return ErrLoanNotFound
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: loan was modified concurrently, reload and retry", ErrStateConflict)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: outcome unknown: %v", ErrStoreUnavailable, err)
	}
	log.Printf("Store failure: %v", err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func outcome(err error) string {
	switch kindOf(err) {
	case nil:
		if err != nil {
			return "error"
		}
		return "committed"
	case ErrValidation:
		return "validation"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrStateConflict:
		return "conflict"
	case ErrLoanNotFound:
		return "not_found"
	case ErrUploadFailed:
		return "upload_failed"
	default:
		return "store_unavailable"
	}
}
