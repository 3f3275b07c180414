// Package siteid extracts the canonical site identifier from the free-text
// labels that alarm and outage exports use for the same physical site.
package siteid

import (
	"regexp"
	"strings"

	"github.com/ethpandaops/backupoor/pkg/normalize"
)

// Rule is a single extraction step. Match reports whether the rule applies
// to the (trimmed, uppercased) label and returns the identifier if so.
type Rule struct {
	Name  string
	Match func(label string) (string, bool)
}

// PatternRule returns a rule that yields the first capture group of re.
func PatternRule(name string, re *regexp.Regexp) Rule {
	return Rule{
		Name: name,
		Match: func(label string) (string, bool) {
			m := re.FindStringSubmatch(label)
			if m == nil || len(m) < 2 {
				return "", false
			}

			return strings.TrimSpace(m[1]), true
		},
	}
}

// FallbackRule keeps every alphanumeric character of the label. It always
// matches.
func FallbackRule() Rule {
	return Rule{
		Name: "fallback",
		Match: func(label string) (string, bool) {
			return normalize.Alnum(label), true
		},
	}
}

var (
	nodebNamePattern = regexp.MustCompile(`NODEB\s*NAME=?\s*([A-Z0-9]+)`)
	namePattern      = regexp.MustCompile(`NAME=?\s*([A-Z0-9]+)`)
)

// DefaultRules is the resolution order used for NMS exports:
// "NODEB NAME=<id>", then a bare "NAME<id>", then the whole cleaned label.
func DefaultRules() []Rule {
	return []Rule{
		PatternRule("nodeb-name", nodebNamePattern),
		PatternRule("name", namePattern),
		FallbackRule(),
	}
}

// Resolver applies an ordered rule list; the first matching rule wins.
type Resolver struct {
	rules []Rule
}

// NewResolver creates a resolver with the given rules. A fallback rule is
// appended when the list does not already end with one, so Resolve always
// produces a value.
func NewResolver(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	if rules[len(rules)-1].Name != "fallback" {
		rules = append(rules, FallbackRule())
	}

	return &Resolver{rules: rules}
}

// Default is the resolver used by the ingestors.
var Default = NewResolver()

// Rules returns the resolver's rules in evaluation order.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)

	return out
}

// Resolve returns the site identifier for label.
func (r *Resolver) Resolve(label string) string {
	id, _ := r.ResolveWithRule(label)

	return id
}

// ResolveWithRule is Resolve that also reports which rule produced the id.
func (r *Resolver) ResolveWithRule(label string) (id, rule string) {
	s := strings.ToUpper(strings.TrimSpace(label))

	for _, rl := range r.rules {
		if id, ok := rl.Match(s); ok {
			return id, rl.Name
		}
	}

	return "", ""
}

// Resolve resolves label with the default rules.
func Resolve(label string) string {
	return Default.Resolve(label)
}
