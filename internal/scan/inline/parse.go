package inline

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	sizePixels  = regexp.MustCompile(`^(\d+)$`)
	sizePercent = regexp.MustCompile(`^(\d+)%$`)
	sizeHeight  = regexp.MustCompile(`^x(\d+)$`)
	sizeBoth    = regexp.MustCompile(`^(\d+)x(\d+)$`)
)

// ParseWikiLink parses the inside of [[...]].
func ParseWikiLink(inner string) WikiLink {
	var w WikiLink
	target := inner
	if i := strings.IndexByte(target, '|'); i >= 0 {
		w.Alias = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		w.Section = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	w.Target = strings.TrimSpace(target)
	return w
}

// ParseEmbed parses the inside of ![[...]]. The part after "|" is read as a
// size; suffixes that do not parse are ignored.
func ParseEmbed(inner string) Embed {
	var e Embed
	target := inner
	if i := strings.IndexByte(target, '|'); i >= 0 {
		e.Size = ParseSize(strings.TrimSpace(target[i+1:]))
		target = target[:i]
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		e.Section = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	e.Target = strings.TrimSpace(target)
	return e
}

// ParseSize parses "300", "50%", "x200" or "300x200". It returns nil otherwise.
func ParseSize(s string) *Size {
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	if m := sizePixels.FindStringSubmatch(s); m != nil {
		return &Size{Width: atoi(m[1])}
	}
	if m := sizePercent.FindStringSubmatch(s); m != nil {
		return &Size{Width: atoi(m[1]), Percent: true}
	}
	if m := sizeHeight.FindStringSubmatch(s); m != nil {
		return &Size{Height: atoi(m[1])}
	}
	if m := sizeBoth.FindStringSubmatch(s); m != nil {
		return &Size{Width: atoi(m[1]), Height: atoi(m[2])}
	}
	return nil
}

// String formats the size the way it is written.
func (s *Size) String() string {
	switch {
	case s == nil:
		return ""
	case s.Percent:
		return strconv.Itoa(s.Width) + "%"
	case s.Width > 0 && s.Height > 0:
		return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
	case s.Height > 0:
		return "x" + strconv.Itoa(s.Height)
	default:
		return strconv.Itoa(s.Width)
	}
}
