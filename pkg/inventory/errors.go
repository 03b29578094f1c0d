package inventory

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced asset, asset type or snapshot
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned when a request would violate a tree or
	// BOM invariant.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrParse is returned when an uploaded document cannot be decoded.
	ErrParse = errors.New("parse error")
)

// Error carries a human readable message and one of the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(kind, id string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %q not found", kind, id)}
}

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidOperation, Msg: fmt.Sprintf(format, args...)}
}

func parsef(format string, args ...any) error {
	return &Error{Kind: ErrParse, Msg: fmt.Sprintf(format, args...)}
}

// isUniqueViolation reports whether err came from a unique index. Drivers
// that do not translate errors are matched on their message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}

// classifyWrite maps storage constraint failures onto ErrInvalidOperation.
func classifyWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return &Error{Kind: ErrInvalidOperation, Msg: op + ": conflicts with an existing asset name or URN"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
