package pricestore

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type ErrorKind string

const (
	KindDuplicateURL ErrorKind = "duplicate_url"
	KindNotFound     ErrorKind = "not_found"
)

// StoreError is returned when an operation conflicts with what is stored.
type StoreError struct {
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pricestore: %s", e.Kind)
	}
	return fmt.Sprintf("pricestore: %s: %s", e.Kind, e.Err.Error())
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, pricestore.ErrNotFound) match any StoreError of the same kind.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

var (
	ErrDuplicateURL = &StoreError{Kind: KindDuplicateURL}
	ErrNotFound     = &StoreError{Kind: KindNotFound}
)

func notFound(format string, args ...any) error {
	return &StoreError{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

// isUniqueViolation recognizes unique constraint failures from both the local sqlite
// driver and the remote libsql one, the latter only exposes the message.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
