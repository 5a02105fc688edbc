package datastore

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsUniqueConstraintViolation reports whether err is a unique-constraint
// failure from the underlying database. Error strings differ per driver so
// the check combines gorm's translated sentinel with string matching.
//
// The vote admission path depends on this: a concurrent duplicate
// submission loses the insert race and its constraint error is translated
// into a duplicate-vote rejection rather than a server error.
func IsUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "constraint failed") ||
		strings.Contains(errStr, "duplicate entry") ||
		strings.Contains(errStr, "duplicate key")
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
