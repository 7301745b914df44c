// SPDX-License-Identifier: MPL-2.0

package requirement

import (
	"fmt"
	"slices"
	"strings"
)

// CanonicalName case-folds a package name and collapses every run of "-",
// "_", and "." into a single "-". "Package_Name", "package-name", and
// "package.name" all map to "package-name". The same rule is applied to
// installed-environment listings before comparison, so an environment
// reporting "Flask" still matches a cached entry for "flask".
func CanonicalName(name string) string {
	return separatorRuns.ReplaceAllString(strings.ToLower(name), "-")
}

// Canonicalize derives the Canonical form of a Spec. It is a pure,
// deterministic, idempotent function: the same input always yields the
// same output, and canonicalizing an already-canonical requirement is the
// identity. The only failure mode is a syntactically invalid constraint.
func Canonicalize(spec Spec) (Canonical, error) {
	constraint, err := canonicalConstraint(spec)
	if err != nil {
		return Canonical{}, err
	}

	return Canonical{
		Name:       CanonicalName(spec.Name),
		Extras:     canonicalExtras(spec.Extras),
		Constraint: constraint,
	}, nil
}

// ParseAndCanonicalize is the common one-step path from a raw requirement
// line to its canonical form.
func ParseAndCanonicalize(raw string) (Canonical, error) {
	spec, err := Parse(raw)
	if err != nil {
		return Canonical{}, err
	}
	return Canonicalize(spec)
}

// canonicalExtras normalizes each extra with the name rules, then sorts
// and deduplicates. Extras are a set: "pkg[b,a]" and "pkg[a,b]" must
// canonicalize identically.
func canonicalExtras(extras []string) []string {
	if len(extras) == 0 {
		return nil
	}
	out := make([]string, 0, len(extras))
	for _, extra := range extras {
		out = append(out, CanonicalName(extra))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// canonicalConstraint strips whitespace, unifies single "=" to "==", and
// validates each comma-separated clause. Absence of a constraint maps to
// the explicit ConstraintAny sentinel so hashing stays stable.
func canonicalConstraint(spec Spec) (string, error) {
	stripped := strings.Join(strings.Fields(spec.Constraint), "")
	if stripped == "" || stripped == ConstraintAny {
		return ConstraintAny, nil
	}

	clauses := strings.Split(stripped, ",")
	for i, clause := range clauses {
		if clause == "" {
			return "", &MalformedRequirementError{Raw: spec.Raw, Pos: -1, Reason: "empty constraint clause"}
		}

		op := matchOperator(clause)
		if op == "" {
			return "", &MalformedRequirementError{
				Raw:    spec.Raw,
				Pos:    -1,
				Reason: fmt.Sprintf("constraint clause %q does not start with a comparison operator", clause),
			}
		}
		version := clause[len(op):]
		if op == "=" {
			op = "=="
		}
		if version == "" {
			return "", &MalformedRequirementError{
				Raw:    spec.Raw,
				Pos:    -1,
				Reason: fmt.Sprintf("constraint clause %q has no version", clause),
			}
		}
		if strings.ContainsAny(version, "<>=!~") {
			return "", &MalformedRequirementError{
				Raw:    spec.Raw,
				Pos:    -1,
				Reason: fmt.Sprintf("constraint clause %q has operator characters inside the version", clause),
			}
		}
		clauses[i] = op + version
	}

	return strings.Join(clauses, ","), nil
}

// matchOperator returns the comparison operator clause starts with, or ""
// when it starts with none. Operators are tried longest-first so "==="
// wins over "==" and "==" over "=".
func matchOperator(clause string) string {
	for _, op := range constraintOperators {
		if strings.HasPrefix(clause, op) {
			return op
		}
	}
	return ""
}

// String renders the canonical serial form "name[extras]constraint". The
// extras bracket is omitted when no extras are requested; an unconstrained
// requirement renders its constraint as "*". This is the exact line shape
// the fingerprint is computed over.
func (c Canonical) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	if len(c.Extras) > 0 {
		sb.WriteByte('[')
		sb.WriteString(strings.Join(c.Extras, ","))
		sb.WriteByte(']')
	}
	sb.WriteString(c.Constraint)
	return sb.String()
}

// StripExtras removes a bracketed extras suffix from a package name, so
// "passlib[bcrypt]" and "passlib" refer to the same distribution. Names
// without extras pass through unchanged.
func StripExtras(name string) string {
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		return name[:idx]
	}
	return name
}

// RequirementLine renders the requirement in the syntax resolver tooling
// accepts: like String, but an unconstrained requirement drops the "*"
// sentinel instead of emitting it.
func (c Canonical) RequirementLine() string {
	if c.Constraint == ConstraintAny {
		unconstrained := c
		unconstrained.Constraint = ""
		return unconstrained.String()
	}
	return c.String()
}

// Compare orders two Canonical requirements by (name, extras, constraint).
// The full-key tie-break makes any sort using it deterministic regardless
// of input ordering.
func Compare(a, b Canonical) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := slices.Compare(a.Extras, b.Extras); c != 0 {
		return c
	}
	return strings.Compare(a.Constraint, b.Constraint)
}

// Equal reports whether two Canonical requirements are the same under set
// semantics for extras (which are already sorted and deduplicated).
func Equal(a, b Canonical) bool {
	return Compare(a, b) == 0
}
