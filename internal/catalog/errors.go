package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable is returned when the database cannot serve a request.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)

// classify maps driver errors onto the package sentinels.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("catalog %s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("catalog %s: %w", op, ErrConflict)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("catalog %s: %w", op, err)
	default:
		return fmt.Errorf("catalog %s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
