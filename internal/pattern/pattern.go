// Package pattern compiles response templates with named placeholders into
// matchers and extracts placeholder values from free text.
//
// A template such as "bring the {object} to {who}" matches "bring the bottle to bob"
// and yields {"{object}": "bottle", "{who}": "bob"}. Keys keep their braces so
// they never collide with plain words stored in a resolution context.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe finds {name} tokens. Names are word characters only.
var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Matcher is a compiled template. It is immutable and safe for concurrent use.
type Matcher struct {
	template   string
	re         *regexp.Regexp
	names      []string
	literalLen int
}

// Compile converts a template into a matcher.
//
// Each placeholder becomes a greedy one-or-more capture. Literal text is
// escaped and must match verbatim, case and whitespace included. The match is
// anchored at the start of the input only: text after the last literal is
// ignored, and a trailing placeholder absorbs the rest of the input.
func Compile(template string) (*Matcher, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	var b strings.Builder
	b.WriteString("^")

	m := &Matcher{template: template}
	seen := make(map[string]bool)
	last := 0

	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		literal := template[last:loc[0]]
		b.WriteString(regexp.QuoteMeta(literal))
		m.literalLen += len(literal)

		name := template[loc[2]:loc[3]]
		if seen[name] {
			return nil, fmt.Errorf("template %q: duplicate placeholder %s", template, Token(name))
		}
		seen[name] = true
		m.names = append(m.names, name)

		b.WriteString("(.+)")
		last = loc[1]
	}

	tail := template[last:]
	b.WriteString(regexp.QuoteMeta(tail))
	m.literalLen += len(tail)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("template %q: failed to compile: %w", template, err)
	}
	m.re = re

	return m, nil
}

// MustCompile is like Compile but panics on error. Intended for fixed templates.
func MustCompile(template string) *Matcher {
	m, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return m
}

// Match extracts placeholder values from input.
// On success it returns one entry per placeholder, keyed by the braced token.
// On failure it returns an empty map and false.
func (m *Matcher) Match(input string) (map[string]string, bool) {
	groups := m.re.FindStringSubmatch(input)
	if groups == nil {
		return map[string]string{}, false
	}

	values := make(map[string]string, len(m.names))
	for i, name := range m.names {
		values[Token(name)] = groups[i+1]
	}
	return values, true
}

// Template returns the source template.
func (m *Matcher) Template() string {
	return m.template
}

// Placeholders returns the braced tokens in template order.
func (m *Matcher) Placeholders() []string {
	tokens := make([]string, len(m.names))
	for i, name := range m.names {
		tokens[i] = Token(name)
	}
	return tokens
}

// LiteralLength is the number of literal (non-placeholder) bytes in the template.
// Longer literals mean a more specific template.
func (m *Matcher) LiteralLength() int {
	return m.literalLen
}

// Token returns the braced form of a placeholder name.
func Token(name string) string {
	return "{" + name + "}"
}

// IsToken reports whether s is exactly one placeholder token.
func IsToken(s string) bool {
	loc := placeholderRe.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// FindTokens returns every distinct placeholder token in text, in order of appearance.
func FindTokens(text string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, tok := range placeholderRe.FindAllString(text, -1) {
		if !seen[tok] {
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Expand substitutes known, non-empty values for tokens in text.
// Unknown tokens are left in place so callers can report them as missing.
func Expand(text string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
		if v, ok := values[tok]; ok && v != "" {
			return v
		}
		return tok
	})
}
