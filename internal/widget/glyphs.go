package widget

import "strings"

// Glyphs are the symbols widgets draw with.
type Glyphs struct {
	Bullet     string
	TaskOpen   string
	TaskDone   string
	FoldOpen   string
	FoldClosed string
	Ellipsis   string
	Loading    string
	Error      string
	Embed      string
	Nested     string
	Check      string
	Empty      string
	Star       string
}

// DefaultGlyphs returns the Unicode glyph set.
func DefaultGlyphs() Glyphs {
	return Glyphs{
		Bullet:     "•",
		TaskOpen:   "☐",
		TaskDone:   "☑",
		FoldOpen:   "▾",
		FoldClosed: "▸",
		Ellipsis:   "…",
		Loading:    "⋯",
		Error:      "⚠",
		Embed:      "▣",
		Nested:     "│ ",
		Check:      "✓",
		Empty:      "·",
		Star:       "★",
	}
}

// ASCIIGlyphs returns a glyph set for terminals without Unicode.
func ASCIIGlyphs() Glyphs {
	return Glyphs{
		Bullet:     "*",
		TaskOpen:   "[ ]",
		TaskDone:   "[x]",
		FoldOpen:   "v",
		FoldClosed: ">",
		Ellipsis:   "~",
		Loading:    "...",
		Error:      "!",
		Embed:      "#",
		Nested:     "| ",
		Check:      "x",
		Empty:      ".",
		Star:       "*",
	}
}

// calloutFamilies maps callout type aliases to their family.
var calloutFamilies = map[string]string{
	"note":      "note",
	"info":      "info",
	"tip":       "tip",
	"hint":      "tip",
	"important": "tip",
	"warning":   "warning",
	"caution":   "warning",
	"attention": "warning",
	"danger":    "danger",
	"error":     "danger",
	"bug":       "bug",
	"example":   "example",
	"quote":     "quote",
	"cite":      "quote",
	"success":   "success",
	"check":     "success",
	"done":      "success",
	"question":  "question",
	"help":      "question",
	"faq":       "question",
	"failure":   "failure",
	"fail":      "failure",
	"missing":   "failure",
	"abstract":  "abstract",
	"summary":   "abstract",
	"tldr":      "abstract",
	"todo":      "todo",
}

var calloutIcons = map[string]string{
	"note":     "✎",
	"info":     "ℹ",
	"tip":      "✦",
	"warning":  "⚠",
	"danger":   "⚡",
	"bug":      "✗",
	"example":  "≡",
	"quote":    "❝",
	"success":  "✓",
	"question": "?",
	"failure":  "✘",
	"abstract": "☰",
	"todo":     "☐",
}

// CalloutFamily returns the family of a callout type. Unknown types belong
// to the note family.
func CalloutFamily(typ string) string {
	if f, ok := calloutFamilies[strings.ToLower(typ)]; ok {
		return f
	}
	return "note"
}

// CalloutIcon returns the icon for a callout type.
func CalloutIcon(typ string) string {
	return calloutIcons[CalloutFamily(typ)]
}
