// Package inline scans single lines for inline markdown syntax.
//
// The scanner runs ordered pattern passes over a line. Each accepted token masks
// the bytes it owns so later passes cannot match across them: code spans first,
// then embeds and links, then bold before strikethrough and italic, so a bold
// delimiter run is never read as two italics.
package inline

import "github.com/dshills/livemark/internal/document"

// Kind is the type of an inline token.
type Kind uint8

const (
	KindHeading Kind = iota
	KindBlockquote
	KindListBullet
	KindTask
	KindBold
	KindItalic
	KindStrike
	KindCode
	KindWikiLink
	KindEmbed
	KindLink
	KindURL
	KindPlugin
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindBlockquote:
		return "blockquote"
	case KindListBullet:
		return "bullet"
	case KindTask:
		return "task"
	case KindBold:
		return "bold"
	case KindItalic:
		return "italic"
	case KindStrike:
		return "strikethrough"
	case KindCode:
		return "code"
	case KindWikiLink:
		return "wikilink"
	case KindEmbed:
		return "embed"
	case KindLink:
		return "link"
	case KindURL:
		return "url"
	case KindPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// Token is one inline finding. All offsets are absolute document offsets.
type Token struct {
	Kind Kind

	// Line is the line number the token was found on.
	Line int

	// From and To span the whole token, delimiters included.
	From int
	To   int

	// Hide lists the syntax ranges to hide when the line is inactive.
	Hide []document.Range

	// Content is the visible part that receives Class.
	Content document.Range

	// Class is the style class for Content. Empty means no styling.
	Class string

	// LineClass tags the whole line (headings, quotes).
	LineClass string

	// Replace means [From, To) is replaced by a widget.
	Replace bool

	// Raw is the source text the widget is bound to.
	Raw string

	// Target is the navigation target for links.
	Target string

	Level int
	Wiki  *WikiLink
	Embed *Embed
	Task  *Task

	// Source names the scanner that produced the token.
	Source string
}

// WikiLink is a parsed [[target#section|alias]] link.
type WikiLink struct {
	Target  string
	Section string
	Alias   string
}

// Size is an embed size suffix. Zero fields are unset.
type Size struct {
	Width   int
	Height  int
	Percent bool
}

// Embed is a parsed ![[target#section|size]] or ![alt](src) embed.
type Embed struct {
	Target  string
	Section string
	Alt     string
	Size    *Size
}

// Task is a parsed checkbox line.
type Task struct {
	Checked bool

	// CheckAt is the offset of the character between the brackets.
	CheckAt int

	// Text is the task description with annotations removed.
	Text string

	Context  string
	Priority string
	Due      string
}
