// Package ids classifies the two identifier shapes Todoist accepts.
// Canonical ids are 26-character Crockford base32 strings; legacy ids
// are the decimal numbers older accounts still emit.
package ids

import (
	"fmt"
	"regexp"

	apperrors "github.com/alexjbarnes/todoist-mcp/internal/errors"
)

// Kind is the shape of an identifier.
type Kind int

const (
	Canonical Kind = iota + 1
	Legacy
)

func (k Kind) String() string {
	switch k {
	case Canonical:
		return "canonical"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

var (
	canonicalRe = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)
	legacyRe    = regexp.MustCompile(`^[0-9]+$`)
)

// IsCanonical reports whether s is a 26-character canonical id.
func IsCanonical(s string) bool {
	return canonicalRe.MatchString(s)
}

// IsLegacy reports whether s is a decimal legacy id.
func IsLegacy(s string) bool {
	return legacyRe.MatchString(s)
}

// Classify returns the shape of s, or an error wrapping
// ErrInvalidIdentifier if it is neither.
func Classify(s string) (Kind, error) {
	switch {
	case IsCanonical(s):
		return Canonical, nil
	case IsLegacy(s):
		return Legacy, nil
	default:
		return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidIdentifier, s)
	}
}

// Validate checks a required identifier argument. The field name is
// included in the error so batch callers can tell which argument failed.
func Validate(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s: %w", field, apperrors.ErrMissingField)
	}

	if _, err := Classify(s); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}

	return nil
}

// ValidateOptional checks an identifier argument that may be omitted
// or explicitly null.
func ValidateOptional(field string, s *string) error {
	if s == nil {
		return nil
	}

	return Validate(field, *s)
}

// FilterLegacy returns the legacy-shaped values of in, deduplicated,
// in first-seen order.
func FilterLegacy(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if !IsLegacy(s) {
			continue
		}

		if _, dup := seen[s]; dup {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
