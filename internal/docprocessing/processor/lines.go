package processor

import (
	"strings"
	"unicode"
)

// document is the line view every rule reads from
type document struct {
	lines []string
	lower []string
	text  string
}

func newDocument(lines []string) *document {
	lower := make([]string, len(lines))
	for i, ln := range lines {
		lower[i] = strings.ToLower(ln)
	}
	return &document{
		lines: lines,
		lower: lower,
		text:  strings.Join(lines, "\n"),
	}
}

// next returns the line after i, or "" at the end
func (d *document) next(i int) string {
	if i+1 < len(d.lines) {
		return d.lines[i+1]
	}
	return ""
}

// hasNext reports whether line i has a successor
func (d *document) hasNext(i int) bool {
	return i+1 < len(d.lines)
}

// findLine returns the index of the first line containing any anchor,
// case-insensitively, or -1.
func findLine(lower []string, anchors ...string) int {
	for i, low := range lower {
		for _, a := range anchors {
			if strings.Contains(low, strings.ToLower(a)) {
				return i
			}
		}
	}
	return -1
}

// neighborhood returns lines[i-win : i+win+1], clamped
func neighborhood(lines []string, i, win int) []string {
	start := max(0, i-win)
	end := min(len(lines), i+win+1)
	return lines[start:end]
}

// linesBetween collects the non-empty lines after start until one contains
// a stop anchor or maxAhead lines have been read.
func linesBetween(lines []string, start int, stops []string, maxAhead int) []string {
	var out []string
	end := min(len(lines), start+1+maxAhead)
	for j := start + 1; j < end; j++ {
		low := strings.ToLower(lines[j])
		for _, s := range stops {
			if strings.Contains(low, s) {
				return out
			}
		}
		if t := strings.TrimSpace(lines[j]); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// matcher is the subset of *regexp.Regexp the primitives need
type matcher interface {
	FindString(s string) string
}

// valueAfterLabel looks for a pattern match in the text after the first
// colon, then in the whole line, then the same on next.
func valueAfterLabel(line string, re matcher, next string) string {
	try := func(s string) string {
		if _, tail, ok := strings.Cut(s, ":"); ok {
			if m := re.FindString(tail); m != "" {
				return m
			}
		}
		return re.FindString(s)
	}

	if v := try(line); v != "" {
		return v
	}
	if next != "" {
		return try(next)
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// collapse joins whitespace runs into single spaces and trims
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func digitsOf(s string) string {
	return reNonDigit.ReplaceAllString(s, "")
}

// capitalize upper-cases the first rune and lower-cases the rest
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
