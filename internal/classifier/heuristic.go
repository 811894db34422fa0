package classifier

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/seantiz/taskroute/internal/model"
)

// Rule is the keyword heuristic for one complexity factor. A description that
// contains any keyword scores Elevated for the factor, otherwise Baseline.
type Rule struct {
	Factor   string   `yaml:"factor" json:"factor"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Elevated float64  `yaml:"elevated" json:"elevated"`
	Baseline float64  `yaml:"baseline" json:"baseline"`
}

// ValidateRules checks that each rule names a known factor at most once and
// that its scores lie in [0,100]. Rules may cover only some factors.
func ValidateRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if !slices.Contains(model.FactorNames, r.Factor) {
			return fmt.Errorf("heuristic rule: unknown factor %q", r.Factor)
		}
		if seen[r.Factor] {
			return fmt.Errorf("heuristic rule: factor %q declared twice", r.Factor)
		}
		seen[r.Factor] = true
		if r.Elevated < 0 || r.Elevated > 100 || r.Baseline < 0 || r.Baseline > 100 {
			return fmt.Errorf("heuristic rule %q: scores must be within [0,100]", r.Factor)
		}
	}
	return nil
}

// heuristic is a compiled rule with its keywords as a lowercase set.
type heuristic struct {
	rule     Rule
	keywords map[string]bool
}

func compile(r Rule) heuristic {
	h := heuristic{rule: r, keywords: make(map[string]bool, len(r.Keywords))}
	for _, k := range r.Keywords {
		h.keywords[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return h
}

func (h heuristic) score(tokens []string) float64 {
	for _, tok := range tokens {
		if h.keywords[tok] {
			return h.rule.Elevated
		}
	}
	return h.rule.Baseline
}

// Tokenize lowercases s and splits it into maximal runs of letters, digits
// and hyphens, so "real-time," yields the token "real-time".
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
