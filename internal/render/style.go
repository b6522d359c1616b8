package render

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute is a set of text attributes.
type Attribute uint16

const (
	AttrNone Attribute = 0
	AttrBold Attribute = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrReverse
	AttrStrikethrough
)

// Has reports whether a contains attr.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// Color is a terminal color: the default color, a palette index or RGB.
type Color struct {
	R, G, B uint8
	// Indexed colors keep the palette index in R.
	Indexed bool
	Default bool
}

// ColorDefault is the terminal's own color.
var ColorDefault = Color{Default: true}

// Index returns a palette color.
func Index(n uint8) Color {
	return Color{R: n, Indexed: true}
}

// RGB returns a true color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Hex parses "#RRGGBB" or "#RGB".
func Hex(s string) (Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func mustHex(s string) Color {
	c, err := Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c.Default
}

// String returns "default", "idx(N)" or "#RRGGBB".
func (c Color) String() string {
	switch {
	case c.Default:
		return "default"
	case c.Indexed:
		return fmt.Sprintf("idx(%d)", c.R)
	default:
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
}

// Style is the look of a run of text.
type Style struct {
	Foreground Color
	Background Color
	Attributes Attribute
}

// DefaultStyle returns the terminal's default style.
func DefaultStyle() Style {
	return Style{Foreground: ColorDefault, Background: ColorDefault}
}

// Fg returns a style with only a foreground color.
func Fg(c Color) Style {
	return Style{Foreground: c, Background: ColorDefault}
}

// With returns s with attrs added.
func (s Style) With(attrs Attribute) Style {
	s.Attributes |= attrs
	return s
}

// On returns s with a background color.
func (s Style) On(bg Color) Style {
	s.Background = bg
	return s
}

// Merge layers other over s. Non-default colors of other win and
// attributes are combined.
func (s Style) Merge(other Style) Style {
	if !other.Foreground.IsDefault() {
		s.Foreground = other.Foreground
	}
	if !other.Background.IsDefault() {
		s.Background = other.Background
	}
	s.Attributes |= other.Attributes
	return s
}

// IsDefault reports whether s changes nothing.
func (s Style) IsDefault() bool {
	return s.Foreground.IsDefault() && s.Background.IsDefault() && s.Attributes == AttrNone
}
