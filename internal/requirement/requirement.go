// SPDX-License-Identifier: MPL-2.0

// Package requirement parses raw dependency declarations in the
// conventional "name[extra1,extra2]constraint" textual form and
// canonicalizes them into a stable, comparable shape. Canonicalization is
// the identity layer of the whole cache: two declarations that differ only
// in case, separator style, extras ordering, or constraint whitespace must
// canonicalize identically, because the module fingerprint is computed
// over the canonical forms.
package requirement

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ConstraintAny is the explicit "unconstrained" sentinel. A requirement
// declared without a version constraint carries this value instead of an
// empty string so that serialization and hashing stay unambiguous.
const ConstraintAny = "*"

// ErrMalformedRequirement is the sentinel error wrapped by MalformedRequirementError.
var ErrMalformedRequirement = errors.New("malformed requirement")

// nameRegexp matches a PEP 508 style project name: alphanumeric at both
// ends, with dashes, underscores, and dots allowed in between.
var nameRegexp = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][-A-Za-z0-9._]*[A-Za-z0-9])$`)

// separatorRuns matches every run of name separator characters for
// collapsing into the single canonical "-".
var separatorRuns = regexp.MustCompile(`[-_.]+`)

// constraintOperators are the comparison operators a constraint clause may
// start with, longest first so that prefix matching is unambiguous.
var constraintOperators = []string{"===", "==", "!=", "~=", ">=", "<=", ">", "<", "="}

type (
	// Spec is one declared dependency exactly as written: raw name, extras
	// in declaration order, and the raw constraint text (empty means "any").
	// Immutable once parsed.
	Spec struct {
		// Raw is the original requirement line, kept for error reporting.
		Raw string
		// Name is the project name as written.
		Name string
		// Extras are the requested extras as written, in declaration order.
		Extras []string
		// Constraint is the raw version constraint ("" means unconstrained).
		Constraint string
	}

	// Canonical is the normalized form of a Spec. Equality of two Canonical
	// values is the definition of "semantically the same requirement".
	Canonical struct {
		// Name is case-folded with every separator run collapsed to "-".
		Name string
		// Extras are canonicalized, sorted, and deduplicated.
		Extras []string
		// Constraint is whitespace-stripped with single "=" unified to
		// "=="; ConstraintAny when the requirement is unconstrained.
		Constraint string
	}

	// MalformedRequirementError reports a requirement line that could not
	// be parsed or canonicalized. Pos is the byte offset of the offending
	// part within Raw, or -1 when no position is known.
	MalformedRequirementError struct {
		Raw    string
		Pos    int
		Reason string
	}
)

// Error implements the error interface for MalformedRequirementError.
func (e *MalformedRequirementError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("malformed requirement %q at offset %d: %s", e.Raw, e.Pos, e.Reason)
	}
	return fmt.Sprintf("malformed requirement %q: %s", e.Raw, e.Reason)
}

// Unwrap returns ErrMalformedRequirement for errors.Is() compatibility.
func (e *MalformedRequirementError) Unwrap() error { return ErrMalformedRequirement }

// Parse splits a raw requirement line into its Spec parts. Environment
// markers (everything after ";") are discarded: whether a marker applies
// is the resolver's concern, not part of the requirement's cache identity.
func Parse(raw string) (Spec, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Spec{}, &MalformedRequirementError{Raw: raw, Pos: -1, Reason: "empty requirement"}
	}

	// Drop the environment marker.
	if body, _, found := strings.Cut(line, ";"); found {
		line = strings.TrimSpace(body)
		if line == "" {
			return Spec{}, &MalformedRequirementError{Raw: raw, Pos: 0, Reason: "requirement has only an environment marker"}
		}
	}

	name, rest := splitName(line)
	if name == "" {
		return Spec{}, &MalformedRequirementError{Raw: raw, Pos: 0, Reason: "missing package name"}
	}
	if !nameRegexp.MatchString(name) {
		return Spec{}, &MalformedRequirementError{Raw: raw, Pos: 0, Reason: fmt.Sprintf("invalid package name %q", name)}
	}

	spec := Spec{Raw: raw, Name: name}
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Spec{}, &MalformedRequirementError{
				Raw:    raw,
				Pos:    strings.IndexByte(line, '['),
				Reason: "unterminated extras bracket",
			}
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			spec.Extras = append(spec.Extras, extra)
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	// Constraints may be parenthesized ("requests (>=2.0)").
	rest = strings.TrimSpace(strings.Trim(rest, "()"))
	spec.Constraint = rest

	return spec, nil
}

// splitName cuts the leading name token off a requirement line. The name
// ends at the first character that cannot be part of a PEP 508 name.
func splitName(line string) (name, rest string) {
	for i := 0; i < len(line); i++ {
		c := line[i]
		isNameChar := c == '-' || c == '_' || c == '.' ||
			(c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		if !isNameChar {
			return line[:i], line[i:]
		}
	}
	return line, ""
}
