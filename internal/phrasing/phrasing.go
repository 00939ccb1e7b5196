// Package phrasing rewrites backend text into something the Vietnamese voice
// reads naturally, e.g. "50000 VND" into "50000 đồng".
package phrasing

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultMaxPasses = 8

// ErrUnstable is returned when the rules keep rewriting each other past the
// pass limit.
var ErrUnstable = errors.New("phrase rules did not settle")

// Substitution is one entry of the rules file.
//
//	max_passes: 8
//	rules:
//	  - from: "VND"
//	    to: "đồng"
//	    whole_word: true
//	  - pattern: "(\\d+)\\s*%"
//	    to: "$1 phần trăm"
type Substitution struct {
	From      string `yaml:"from"`
	Pattern   string `yaml:"pattern"`
	To        string `yaml:"to"`
	WholeWord bool   `yaml:"whole_word"`
	// Once replaces only the first occurrence.
	Once bool `yaml:"once"`
}

type file struct {
	MaxPasses int            `yaml:"max_passes"`
	Rules     []Substitution `yaml:"rules"`
}

type rewrite struct {
	re   *regexp.Regexp
	to   string
	once bool
}

func (r rewrite) apply(text string) (string, bool) {
	var out string
	if r.once {
		loc := r.re.FindStringSubmatchIndex(text)
		if loc == nil {
			return text, false
		}
		expanded := r.re.ExpandString(nil, r.to, text, loc)
		out = text[:loc[0]] + string(expanded) + text[loc[1]:]
	} else {
		out = r.re.ReplaceAllString(text, r.to)
	}
	return out, out != text
}

// Rewriter applies an ordered list of substitutions until the text stops
// changing.
type Rewriter struct {
	rules     []rewrite
	maxPasses int
}

// Load reads a YAML rules file. An empty path or a missing file yields a
// Rewriter that returns text unchanged.
func Load(path string) (*Rewriter, error) {
	if strings.TrimSpace(path) == "" {
		return &Rewriter{maxPasses: defaultMaxPasses}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Rewriter{maxPasses: defaultMaxPasses}, nil
		}
		return nil, fmt.Errorf("read phrase rules %q: %w", path, err)
	}

	var parsed file
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse phrase rules %q: %w", path, err)
	}
	rewriter, err := New(parsed.MaxPasses, parsed.Rules...)
	if err != nil {
		return nil, fmt.Errorf("phrase rules %q: %w", path, err)
	}
	return rewriter, nil
}

// New compiles substitutions in order. maxPasses <= 0 selects the default.
func New(maxPasses int, subs ...Substitution) (*Rewriter, error) {
	if maxPasses <= 0 {
		maxPasses = defaultMaxPasses
	}
	rules := make([]rewrite, 0, len(subs))
	for i, sub := range subs {
		rule, err := compile(sub)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, rule)
	}
	return &Rewriter{rules: rules, maxPasses: maxPasses}, nil
}

func compile(sub Substitution) (rewrite, error) {
	hasFrom := sub.From != ""
	hasPattern := sub.Pattern != ""
	switch {
	case hasFrom && hasPattern:
		return rewrite{}, errors.New("set either from or pattern, not both")
	case !hasFrom && !hasPattern:
		return rewrite{}, errors.New("from or pattern is required")
	}

	if hasPattern {
		re, err := regexp.Compile(sub.Pattern)
		if err != nil {
			return rewrite{}, fmt.Errorf("invalid pattern: %w", err)
		}
		return rewrite{re: re, to: sub.To, once: sub.Once}, nil
	}

	expr := "(?i)" + regexp.QuoteMeta(strings.TrimSpace(sub.From))
	if sub.WholeWord {
		// \b is ASCII-only, so Vietnamese letters are matched explicitly.
		expr = `(^|[^\p{L}\p{N}])(` + expr + `)($|[^\p{L}\p{N}])`
		to := "${1}" + escapeDollar(sub.To) + "${3}"
		return rewrite{re: regexp.MustCompile(expr), to: to, once: sub.Once}, nil
	}
	return rewrite{re: regexp.MustCompile(expr), to: escapeDollar(sub.To), once: sub.Once}, nil
}

func escapeDollar(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// Len reports the number of compiled rules.
func (r *Rewriter) Len() int {
	return len(r.rules)
}

// Apply rewrites text. Whitespace runs introduced by substitutions are
// collapsed.
func (r *Rewriter) Apply(text string) (string, error) {
	if len(r.rules) == 0 {
		return text, nil
	}

	out := text
	for pass := 0; pass < r.maxPasses; pass++ {
		changed := false
		for _, rule := range r.rules {
			if next, ok := rule.apply(out); ok {
				out = next
				changed = true
			}
		}
		if !changed {
			return strings.Join(strings.Fields(out), " "), nil
		}
	}
	return text, fmt.Errorf("%w after %d passes", ErrUnstable, r.maxPasses)
}
