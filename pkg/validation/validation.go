// Package validation implements the name/key/value validation rules consumed
// by the engine before any write reaches the WAL. It reports failures through
// the tagged ValidationError type rather than bare errors. The size limits
// enforced here have no built-in default of their own; pkg/options carries
// the defaults and any OptionFunc overrides, and the engine passes the
// resolved limits into every call.
package validation

import (
	barusErrors "github.com/myyrakle/barus/pkg/errors"
)

// ValidateTableName checks that name is non-empty, at most maxLen bytes, and
// composed solely of ASCII letters, digits, and underscores.
func ValidateTableName(name string, maxLen int) error {
	if name == "" {
		return barusErrors.NewTableNameEmptyError()
	}
	if len(name) > maxLen {
		return barusErrors.NewTableNameTooLongError(name, maxLen)
	}
	for _, c := range name {
		if !isNameChar(c) {
			return barusErrors.NewTableNameInvalidError(name)
		}
	}
	return nil
}

// ValidateKey checks that key is non-empty and at most maxLen bytes.
func ValidateKey(key string, maxLen int) error {
	if key == "" {
		return barusErrors.NewKeyEmptyError()
	}
	if len(key) > maxLen {
		return barusErrors.NewKeyTooLargeError(key, maxLen)
	}
	return nil
}

// ValidateValue checks that value is at most maxLen bytes. Empty values are
// allowed.
func ValidateValue(value string, maxLen int) error {
	if len(value) > maxLen {
		return barusErrors.NewValueTooLargeError(maxLen)
	}
	return nil
}

func isNameChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_':
		return true
	default:
		return false
	}
}
