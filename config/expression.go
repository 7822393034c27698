package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kennep/killjoy/unit"
)

// ExpressionType selects how a rule's expression string is interpreted.
type ExpressionType string

// The three expression types a rule may use. The wire names contain a
// space, matching the settings file format.
const (
	ExprUnitName ExpressionType = "unit name"
	ExprUnitType ExpressionType = "unit type"
	ExprRegex    ExpressionType = "regex"
)

// Expression is a compiled unit-name matcher. The zero value matches
// nothing.
type Expression struct {
	kind    ExpressionType
	pattern string
	re      *regexp.Regexp
}

// NewExpression compiles an expression. Unit-name expressions must look
// like a unit name, unit-type expressions must be one of the known type
// suffixes, and regex expressions must compile. Regex patterns are not
// implicitly anchored; write ^ and $ explicitly to match a whole name.
func NewExpression(kind ExpressionType, pattern string) (Expression, error) {
	switch kind {
	case ExprUnitName:
		if !unit.ValidUnitName(pattern) {
			return Expression{}, fmt.Errorf("%q is not a valid unit name", pattern)
		}
		return Expression{kind: kind, pattern: pattern}, nil

	case ExprUnitType:
		if !unit.IsTypeSuffix(pattern) {
			return Expression{}, fmt.Errorf("%q is not a unit type suffix (expected one of %v)",
				pattern, unit.TypeSuffixes)
		}
		return Expression{kind: kind, pattern: pattern}, nil

	case ExprRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Expression{}, fmt.Errorf("regex %q: %w", pattern, err)
		}
		return Expression{kind: kind, pattern: pattern, re: re}, nil

	default:
		return Expression{}, fmt.Errorf("unknown expression type %q (expected %q, %q or %q)",
			kind, ExprUnitName, ExprUnitType, ExprRegex)
	}
}

// Matches reports whether the expression selects the named unit. Matching
// is deterministic and free of side effects.
func (e Expression) Matches(unitName string) bool {
	switch e.kind {
	case ExprUnitName:
		return unitName == e.pattern
	case ExprUnitType:
		return strings.HasSuffix(unitName, e.pattern)
	case ExprRegex:
		return e.re != nil && e.re.MatchString(unitName)
	default:
		return false
	}
}

// Kind returns the expression's type.
func (e Expression) Kind() ExpressionType {
	return e.kind
}

// Pattern returns the source pattern the expression was compiled from.
func (e Expression) Pattern() string {
	return e.pattern
}

// String renders the expression for logs.
func (e Expression) String() string {
	return fmt.Sprintf("%s:%s", e.kind, e.pattern)
}
