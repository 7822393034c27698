package config

import (
	"fmt"

	"github.com/kennep/killjoy/errors"
	"github.com/kennep/killjoy/unit"
)

// SchemaVersion is the only settings schema version this build understands.
const SchemaVersion = 1

// Settings represents the complete daemon configuration: a schema version,
// an ordered list of rules, and a set of named notifiers.
type Settings struct {
	Version   int                 `json:"version"`
	Rules     []Rule              `json:"rules"`
	Notifiers map[string]Notifier `json:"notifiers"`
}

// Rule selects units on one bus and names the notifiers to inform when a
// selected unit changes state.
type Rule struct {
	ActiveStates   []unit.ActiveState `json:"active_states"`
	BusScope       unit.BusScope      `json:"bus_type"`
	Expression     string             `json:"expression"`
	ExpressionType ExpressionType     `json:"expression_type"`
	Notifiers      []string           `json:"notifiers"`

	// compiled holds the matcher built during validation.
	compiled Expression
}

// Notifier is the bus address of one notification receiver.
type Notifier struct {
	BusScope unit.BusScope `json:"bus_type"`
	BusName  string        `json:"bus_name"`
}

// Validate checks the settings tree and compiles every rule expression.
// Settings that fail validation must be rejected as a whole; there is no
// partial acceptance of individual rules.
func (s *Settings) Validate() error {
	if s.Version != SchemaVersion {
		return errors.WrapFatal(
			fmt.Errorf("%w: got %d, want %d", errors.ErrUnsupportedSchema, s.Version, SchemaVersion),
			"Settings", "Validate", "check schema version")
	}

	for name, notifier := range s.Notifiers {
		if err := notifier.validate(); err != nil {
			return errors.WrapInvalid(err, "Settings", "Validate", fmt.Sprintf("notifier %q", name))
		}
	}

	for i := range s.Rules {
		if err := s.Rules[i].validate(s.Notifiers); err != nil {
			return errors.WrapInvalid(err, "Settings", "Validate", fmt.Sprintf("rule %d", i))
		}
	}

	return nil
}

func (r *Rule) validate(notifiers map[string]Notifier) error {
	if len(r.ActiveStates) == 0 {
		return fmt.Errorf("active_states must not be empty")
	}
	for _, state := range r.ActiveStates {
		if _, err := unit.ParseActiveState(state.String()); err != nil {
			return fmt.Errorf("active_states: %w", err)
		}
	}

	if _, err := unit.ParseBusScope(r.BusScope.String()); err != nil {
		return fmt.Errorf("bus_type: %w", err)
	}

	expr, err := NewExpression(r.ExpressionType, r.Expression)
	if err != nil {
		return fmt.Errorf("expression: %w", err)
	}
	r.compiled = expr

	if len(r.Notifiers) == 0 {
		return fmt.Errorf("notifiers must not be empty")
	}
	for _, name := range r.Notifiers {
		if _, ok := notifiers[name]; !ok {
			return fmt.Errorf("%w: %q", errors.ErrUnknownNotifier, name)
		}
	}

	return nil
}

func (n Notifier) validate() error {
	if _, err := unit.ParseBusScope(n.BusScope.String()); err != nil {
		return fmt.Errorf("bus_type: %w", err)
	}
	if err := ValidateBusName(n.BusName); err != nil {
		return fmt.Errorf("bus_name: %w", err)
	}
	return nil
}

// Matcher returns the rule's compiled expression. Valid only after the
// settings passed Validate.
func (r *Rule) Matcher() Expression {
	return r.compiled
}

// WantsState reports whether state is in the rule's active-state set.
func (r *Rule) WantsState(state unit.ActiveState) bool {
	for _, s := range r.ActiveStates {
		if s == state {
			return true
		}
	}
	return false
}

// BusScopes returns the distinct scopes referenced by rules, in stable
// order. One watcher session is run per returned scope.
func (s *Settings) BusScopes() []unit.BusScope {
	return dedupeScopes(func(yield func(unit.BusScope)) {
		for _, r := range s.Rules {
			yield(r.BusScope)
		}
	})
}

// NotifierScopes returns the distinct scopes referenced by notifiers, in
// stable order.
func (s *Settings) NotifierScopes() []unit.BusScope {
	return dedupeScopes(func(yield func(unit.BusScope)) {
		for _, n := range s.Notifiers {
			yield(n.BusScope)
		}
	})
}

// RulesForScope returns the rules bound to one bus scope, preserving file
// order.
func (s *Settings) RulesForScope(scope unit.BusScope) []Rule {
	var out []Rule
	for _, r := range s.Rules {
		if r.BusScope == scope {
			out = append(out, r)
		}
	}
	return out
}

// dedupeScopes collects scopes in the fixed session-then-system order so
// callers get deterministic output regardless of map iteration.
func dedupeScopes(visit func(yield func(unit.BusScope))) []unit.BusScope {
	seen := map[unit.BusScope]bool{}
	visit(func(scope unit.BusScope) {
		seen[scope] = true
	})

	var out []unit.BusScope
	for _, scope := range []unit.BusScope{unit.ScopeSession, unit.ScopeSystem} {
		if seen[scope] {
			out = append(out, scope)
		}
	}
	return out
}

// ValidateBusName checks that name is a syntactically valid well-known
// D-Bus bus name: two or more dot-separated elements of [A-Za-z0-9_-],
// no element starting with a digit, at most 255 bytes total.
func ValidateBusName(name string) error {
	if name == "" {
		return fmt.Errorf("bus name must not be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("bus name exceeds 255 bytes")
	}
	if name[0] == ':' {
		return fmt.Errorf("unique bus name %q not allowed, use a well-known name", name)
	}

	elements := 0
	start := 0
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}
		element := name[start:i]
		if element == "" {
			return fmt.Errorf("bus name %q has an empty element", name)
		}
		if element[0] >= '0' && element[0] <= '9' {
			return fmt.Errorf("bus name %q has an element starting with a digit", name)
		}
		for j := 0; j < len(element); j++ {
			c := element[j]
			ok := c == '_' || c == '-' ||
				(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
			if !ok {
				return fmt.Errorf("bus name %q has an invalid character %q", name, c)
			}
		}
		elements++
		start = i + 1
	}
	if elements < 2 {
		return fmt.Errorf("bus name %q must have at least two dot-separated elements", name)
	}
	return nil
}
