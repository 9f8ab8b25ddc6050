package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// placeholderValue matches one placeholder value: a non-empty run of
// characters up to the next "/".
const placeholderValue = `([^/]+)`

var varnamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.]*$`)

// uriTemplate addresses a resource.
//
// Each {name} placeholder stands for part of a single path segment, so a
// template and a URI match only when they have the same number of
// "/"-separated segments. Templates without placeholders match by string
// equality.
type uriTemplate struct {
	raw      string
	varnames []string
	segments []segment
	pattern  *regexp.Regexp
}

// segment is one "/"-separated piece of a template.
type segment []part

// part is either literal text or a placeholder.
type part struct {
	literal string
	name    string
}

func (p part) placeholder() bool {
	return p.name != ""
}

func parseTemplate(raw string) (*uriTemplate, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty URI template")
	}

	if !strings.Contains(raw, "://") {
		return nil, fmt.Errorf("URI template %q has no scheme", raw)
	}

	// RFC 6570 syntax check; only its simple {name} form is accepted below.
	if _, err := uritemplate.New(raw); err != nil {
		return nil, fmt.Errorf("parse URI template %q: %w", raw, err)
	}

	t := &uriTemplate{raw: raw}
	seen := make(map[string]bool)

	for text := range strings.SplitSeq(raw, "/") {
		seg, err := parseSegment(text)
		if err != nil {
			return nil, fmt.Errorf("URI template %q: %w", raw, err)
		}

		for _, p := range seg {
			if !p.placeholder() {
				continue
			}

			if seen[p.name] {
				return nil, fmt.Errorf("URI template %q: placeholder %q appears more than once", raw, p.name)
			}

			seen[p.name] = true
			t.varnames = append(t.varnames, p.name)
		}

		t.segments = append(t.segments, seg)
	}

	t.pattern = regexp.MustCompile("^" + joinPatterns(t.segments) + "$")

	return t, nil
}

func parseSegment(text string) (segment, error) {
	var seg segment

	for text != "" {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			seg = append(seg, part{literal: text})

			break
		}

		if open > 0 {
			seg = append(seg, part{literal: text[:open]})
		}

		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q", text)
		}

		name := text[open+1 : open+end]
		if !varnamePattern.MatchString(name) {
			return nil, fmt.Errorf("placeholder {%s}: only simple {name} placeholders are supported", name)
		}

		seg = append(seg, part{name: name})
		text = text[open+end+1:]
	}

	return seg, nil
}

func joinPatterns(segments []segment) string {
	patterns := make([]string, len(segments))
	for i, seg := range segments {
		patterns[i] = seg.pattern()
	}

	return strings.Join(patterns, "/")
}

// pattern returns the unanchored regular expression for the segment.
func (s segment) pattern() string {
	var b strings.Builder

	for _, p := range s {
		if p.placeholder() {
			b.WriteString(placeholderValue)
		} else {
			b.WriteString(regexp.QuoteMeta(p.literal))
		}
	}

	return b.String()
}

func (s segment) literal() bool {
	for _, p := range s {
		if p.placeholder() {
			return false
		}
	}

	return true
}

func (s segment) text() string {
	var b strings.Builder
	for _, p := range s {
		b.WriteString(p.literal)
	}

	return b.String()
}

// prefix returns the literal text before the first placeholder.
func (s segment) prefix() string {
	if len(s) > 0 && !s[0].placeholder() {
		return s[0].literal
	}

	return ""
}

// suffix returns the literal text after the last placeholder.
func (s segment) suffix() string {
	if len(s) > 0 && !s[len(s)-1].placeholder() {
		return s[len(s)-1].literal
	}

	return ""
}

// compatible reports whether some concrete segment text could match both s
// and other.
func (s segment) compatible(other segment) bool {
	switch {
	case s.literal() && other.literal():
		return s.text() == other.text()
	case s.literal():
		return regexp.MustCompile("^" + other.pattern() + "$").MatchString(s.text())
	case other.literal():
		return regexp.MustCompile("^" + s.pattern() + "$").MatchString(other.text())
	}

	return affixCompatible(s.prefix(), other.prefix(), strings.HasPrefix) &&
		affixCompatible(s.suffix(), other.suffix(), strings.HasSuffix)
}

func affixCompatible(a, b string, has func(s, affix string) bool) bool {
	return has(a, b) || has(b, a)
}

// static reports whether the template has no placeholders.
func (t *uriTemplate) static() bool {
	return len(t.varnames) == 0
}

// match extracts placeholder values from a concrete URI.
//
// Values are percent-decoded; a value that is not valid percent-encoding is
// kept as sent. Empty values and a different segment count never match.
func (t *uriTemplate) match(uri string) (map[string]string, bool) {
	if t.static() {
		return map[string]string{}, uri == t.raw
	}

	m := t.pattern.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}

	values := make(map[string]string, len(t.varnames))

	for i, name := range t.varnames {
		value := m[i+1]
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}

		if value == "" {
			return nil, false
		}

		values[name] = value
	}

	return values, true
}

// overlaps reports whether some URI could be matched by both templates.
//
// Templates overlap when they have the same number of segments and every
// pair of segments is compatible: equal literals, or a placeholder segment
// whose literal prefix and suffix agree with the other side.
func (t *uriTemplate) overlaps(other *uriTemplate) bool {
	if t.raw == other.raw {
		return true
	}

	if len(t.segments) != len(other.segments) {
		return false
	}

	for i := range t.segments {
		if !t.segments[i].compatible(other.segments[i]) {
			return false
		}
	}

	return true
}
