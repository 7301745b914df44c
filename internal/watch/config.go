// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidWatchConfig is the sentinel error wrapped by InvalidWatchConfigError.
var ErrInvalidWatchConfig = errors.New("invalid watch config")

// InvalidWatchConfigError is returned when a Config has invalid fields.
// It wraps ErrInvalidWatchConfig for errors.Is() compatibility and collects
// field-level validation errors.
type InvalidWatchConfigError struct {
	FieldErrors []error
}

// Error implements the error interface for InvalidWatchConfigError.
func (e *InvalidWatchConfigError) Error() string {
	return fmt.Sprintf("invalid watch config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidWatchConfig for errors.Is() compatibility.
func (e *InvalidWatchConfigError) Unwrap() error { return ErrInvalidWatchConfig }

// Validate checks the Config fields that can be rejected before any
// filesystem state is touched: pattern syntax, blank patterns, and
// whitespace-only paths. The zero value is valid (watch everything under
// the working directory).
func (c Config) Validate() error {
	var errs []error

	for _, pat := range c.Patterns {
		if err := validatePattern(pat, "watch"); err != nil {
			errs = append(errs, err)
		}
	}
	for _, pat := range c.Ignore {
		if err := validatePattern(pat, "ignore"); err != nil {
			errs = append(errs, err)
		}
	}

	if c.BaseDir != "" && strings.TrimSpace(c.BaseDir) == "" {
		errs = append(errs, fmt.Errorf("invalid base dir %q: must not be whitespace-only", c.BaseDir))
	}
	if c.CacheDir != "" && strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, fmt.Errorf("invalid cache dir %q: must not be whitespace-only", c.CacheDir))
	}

	if len(errs) > 0 {
		return &InvalidWatchConfigError{FieldErrors: errs}
	}
	return nil
}

// validatePattern checks a single glob for blankness and doublestar syntax.
// The label (e.g., "watch" or "ignore") is used in error messages.
func validatePattern(pat, label string) error {
	if strings.TrimSpace(pat) == "" {
		return fmt.Errorf("invalid %s pattern %q: must be non-empty", label, pat)
	}
	if !doublestar.ValidatePattern(pat) {
		return fmt.Errorf("invalid %s pattern %q: malformed glob", label, pat)
	}
	return nil
}
