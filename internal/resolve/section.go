package resolve

import (
	"regexp"
	"strings"
	"unicode"
)

var headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// Heading is one markdown heading of a note.
type Heading struct {
	Level int
	Text  string
	Slug  string
}

// Slugify lowercases s, keeps letters and digits, and joins words with "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			dash = true
		}
	}
	return b.String()
}

// Headings lists the headings of content, skipping fenced code.
func Headings(content string) []Heading {
	var out []Heading
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingLine.FindStringSubmatch(line); m != nil {
			out = append(out, Heading{Level: len(m[1]), Text: m[2], Slug: Slugify(m[2])})
		}
	}
	return out
}

// ExtractSection returns the section whose heading slug matches section,
// heading included, up to the next heading of the same or higher level.
func ExtractSection(content, section string) (string, bool) {
	slug := Slugify(section)
	lines := strings.Split(content, "\n")
	start, level := -1, 0
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		m := headingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if start >= 0 && len(m[1]) <= level {
			return strings.TrimRight(strings.Join(lines[start:i], "\n"), "\n"), true
		}
		if start < 0 && Slugify(m[2]) == slug {
			start, level = i, len(m[1])
		}
	}
	if start < 0 {
		return "", false
	}
	return strings.TrimRight(strings.Join(lines[start:], "\n"), "\n"), true
}
