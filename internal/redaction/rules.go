// Package redaction classifies error context fields and scrubs them before
// they reach the occurrence sink, logs, alerts or the wire.
package redaction

import (
	"fmt"
	"regexp"

	"github.com/vietddude/faultline/internal/core/domain"
)

// Mask replaces every secret value.
const Mask = "[REDACTED]"

// Rule maps a field-name pattern to a classification. Patterns are
// case-insensitive regular expressions matched against both the field name
// and its dotted path (for example "payment.card.number").
type Rule struct {
	Pattern string
	Class   domain.Classification
}

type compiledRule struct {
	re    *regexp.Regexp
	class domain.Classification
}

// Rules is a compiled, immutable rule set.
type Rules struct {
	rules []compiledRule
}

// Compile validates and compiles rules.
func Compile(rules []Rule) (*Rules, error) {
	out := &Rules{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", r.Pattern, err)
		}
		out.rules = append(out.rules, compiledRule{re: re, class: r.Class})
	}
	return out, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(rules []Rule) *Rules {
	r, err := Compile(rules)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the built-in rule set.
func Default() *Rules {
	return MustCompile(DefaultRules())
}

// DefaultRules covers credentials, personal data and well-known correlation
// fields.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `passw(or)?d|pwd|secret|token|api[_-]?key|authori[sz]ation|cookie|session|private[_-]?key|credential`, Class: domain.ClassSecret},
		{Pattern: `credit[_-]?card|card[_-]?number|cvv|ssn|iban`, Class: domain.ClassSecret},
		{Pattern: `e?mail|phone|ip([_-]?addr(ess)?)?$|user[_-]?agent|address`, Class: domain.ClassInternal},
		{Pattern: `^(tenant|correlation|request|contact|deal|task|entity|trace)[_-]?id$`, Class: domain.ClassPublic},
		{Pattern: `^(method|path|route|operation|attempt|status|component|table|queue)$`, Class: domain.ClassPublic},
	}
}

// Classify returns the classification for a field. When several rules match,
// the most restrictive wins. Unmatched fields are internal.
func (r *Rules) Classify(name, path string) domain.Classification {
	class, matched := domain.ClassPublic, false
	if r != nil {
		for _, rule := range r.rules {
			if rule.re.MatchString(name) || (path != name && rule.re.MatchString(path)) {
				class = class.Stricter(rule.class)
				matched = true
			}
		}
	}
	if !matched {
		return domain.ClassInternal
	}
	return class
}
