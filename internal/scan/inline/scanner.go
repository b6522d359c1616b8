package inline

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/livemark/internal/document"
)

var (
	quoteRe   = regexp.MustCompile(`^ {0,3}>[ \t]?`)
	headingRe = regexp.MustCompile(`^(#{1,6})[ \t]+`)
	taskRe    = regexp.MustCompile(`^([ \t]*)([-*+]|\d+[.)])[ \t]+\[([ xX])\](?:[ \t]+|$)`)
	bulletRe  = regexp.MustCompile(`^([ \t]*)([-*+])[ \t]+`)

	contextRe  = regexp.MustCompile(`(?:^|[ \t])@([\w-]+)`)
	priorityRe = regexp.MustCompile(`(?:^|[ \t])!(high|medium|low)\b`)
	dueRe      = regexp.MustCompile(`(?:^|[ \t])\^(\d{4}-\d{2}-\d{2})`)

	codeRe       = regexp.MustCompile("`([^`]+)`")
	embedRe      = regexp.MustCompile(`!\[\[([^\[\]]+)\]\]`)
	imageRe      = regexp.MustCompile(`!\[([^\[\]]*)\]\(([^()\s]+)\)`)
	wikiRe       = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	linkRe       = regexp.MustCompile(`\[([^\[\]]+)\]\(([^()\s]+)\)`)
	urlRe        = regexp.MustCompile(`https?://[^\s<>()\[\]\x00]+`)
	boldStarRe   = regexp.MustCompile(`\*\*([^*\s](?:.*?[^*\s])?)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__([^_\s](?:.*?[^_\s])?)__`)
	strikeRe     = regexp.MustCompile(`~~([^~\s](?:[^~]*[^~\s])?)~~`)
	italicStarRe = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
	italicUndRe  = regexp.MustCompile(`_([^_\s](?:[^_]*[^_\s])?)_`)
)

// Scanner is the built-in inline token scanner.
type Scanner struct{}

// NewScanner creates an inline scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Name returns the scanner name.
func (s *Scanner) Name() string { return "inline" }

// ScanLine scans one line. The first skip bytes belong to an enclosing block
// (such as a callout's quote prefix) and are not scanned.
func (s *Scanner) ScanLine(line document.Line, skip int) []Token {
	if skip > len(line.Text) {
		skip = len(line.Text)
	}
	ls := &lineScan{line: line, buf: []byte(line.Text)}
	pos := ls.lineLevel(skip)
	ls.spans(pos)

	sort.SliceStable(ls.tokens, func(i, j int) bool {
		return ls.tokens[i].From < ls.tokens[j].From
	})
	for i := range ls.tokens {
		ls.tokens[i].Source = s.Name()
		ls.tokens[i].Line = line.Number
	}
	return ls.tokens
}

// lineScan holds the state of one line scan. buf is a copy of the line in
// which bytes owned by accepted tokens are zeroed.
type lineScan struct {
	line   document.Line
	buf    []byte
	tokens []Token
}

func (l *lineScan) abs(i int) int {
	return l.line.From + i
}

func (l *lineScan) rng(from, to int) document.Range {
	return document.Range{From: l.abs(from), To: l.abs(to)}
}

func (l *lineScan) mask(from, to int) {
	for i := from; i < to; i++ {
		l.buf[i] = 0
	}
}

// lineLevel handles the quote, heading, task and bullet prefixes. It returns
// the offset where inline spans start.
func (l *lineScan) lineLevel(pos int) int {
	if m := quoteRe.FindIndex(l.buf[pos:]); m != nil && m[1] > 0 {
		l.tokens = append(l.tokens, Token{
			Kind:      KindBlockquote,
			From:      l.abs(pos),
			To:        l.abs(pos + m[1]),
			Hide:      []document.Range{l.rng(pos, pos+m[1])},
			LineClass: "blockquote",
		})
		l.mask(pos, pos+m[1])
		pos += m[1]
	}

	if m := headingRe.FindSubmatchIndex(l.buf[pos:]); m != nil {
		level := m[3] - m[2]
		l.tokens = append(l.tokens, Token{
			Kind:      KindHeading,
			From:      l.abs(pos),
			To:        l.abs(len(l.buf)),
			Hide:      []document.Range{l.rng(pos, pos+m[1])},
			LineClass: "heading-" + strconv.Itoa(level),
			Level:     level,
		})
		l.mask(pos, pos+m[1])
		return pos + m[1]
	}

	if m := taskRe.FindSubmatchIndex(l.buf[pos:]); m != nil {
		l.task(pos, m)
		return pos + m[1]
	}

	if m := bulletRe.FindSubmatchIndex(l.buf[pos:]); m != nil {
		from, to := pos+m[4], pos+m[1]
		l.tokens = append(l.tokens, Token{
			Kind:    KindListBullet,
			From:    l.abs(from),
			To:      l.abs(to),
			Replace: true,
			Raw:     l.line.Text[from:to],
		})
		l.mask(from, to)
		return to
	}
	return pos
}

// task builds the checkbox token and hides trailing annotations.
func (l *lineScan) task(pos int, m []int) {
	markerFrom, markerTo := pos+m[4], pos+m[1]
	check := pos + m[6]
	t := &Task{
		Checked: l.buf[check] != ' ',
		CheckAt: l.abs(check),
	}
	l.mask(markerFrom, markerTo)

	var hides []document.Range
	annotate := func(re *regexp.Regexp, set func(string)) {
		am := re.FindSubmatchIndex(l.buf[markerTo:])
		if am == nil {
			return
		}
		from, to := markerTo+am[0], markerTo+am[1]
		set(l.line.Text[markerTo+am[2] : markerTo+am[3]])
		hides = append(hides, l.rng(from, to))
		l.mask(from, to)
	}
	annotate(contextRe, func(v string) { t.Context = v })
	annotate(priorityRe, func(v string) { t.Priority = v })
	annotate(dueRe, func(v string) { t.Due = v })
	sort.Slice(hides, func(i, j int) bool { return hides[i].From < hides[j].From })

	var text strings.Builder
	for i := markerTo; i < len(l.buf); i++ {
		if !inRanges(hides, l.abs(i)) {
			text.WriteByte(l.line.Text[i])
		}
	}
	t.Text = strings.TrimSpace(text.String())

	tok := Token{
		Kind:    KindTask,
		From:    l.abs(markerFrom),
		To:      l.abs(markerTo),
		Hide:    hides,
		Replace: true,
		Raw:     l.line.Text,
		Task:    t,
	}
	if t.Checked {
		tok.Content = l.rng(markerTo, len(l.buf))
		tok.Class = "task-done"
	}
	l.tokens = append(l.tokens, tok)
}

// spans runs the inline passes in priority order.
func (l *lineScan) spans(pos int) {
	if pos >= len(l.buf) {
		return
	}

	l.each(codeRe, pos, func(m []int) {
		l.add(Token{
			Kind:    KindCode,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Hide:    []document.Range{l.rng(m[0], m[2]), l.rng(m[3], m[1])},
			Content: l.rng(m[2], m[3]),
			Class:   "code",
		}, m[0], m[1])
	})

	l.each(embedRe, pos, func(m []int) {
		e := ParseEmbed(l.line.Text[m[2]:m[3]])
		l.add(Token{
			Kind:    KindEmbed,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Replace: true,
			Raw:     l.line.Text[m[0]:m[1]],
			Target:  e.Target,
			Embed:   &e,
		}, m[0], m[1])
	})

	l.each(imageRe, pos, func(m []int) {
		e := Embed{Alt: l.line.Text[m[2]:m[3]], Target: l.line.Text[m[4]:m[5]]}
		l.add(Token{
			Kind:    KindEmbed,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Replace: true,
			Raw:     l.line.Text[m[0]:m[1]],
			Target:  e.Target,
			Embed:   &e,
		}, m[0], m[1])
	})

	l.each(wikiRe, pos, func(m []int) {
		inner := l.line.Text[m[2]:m[3]]
		w := ParseWikiLink(inner)
		tok := Token{
			Kind:    KindWikiLink,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Content: l.rng(m[2], m[3]),
			Class:   "wikilink",
			Target:  w.Target,
			Wiki:    &w,
		}
		if bar := strings.IndexByte(inner, '|'); bar >= 0 && w.Alias != "" {
			tok.Hide = []document.Range{l.rng(m[0], m[2]+bar+1), l.rng(m[3], m[1])}
			tok.Content = l.rng(m[2]+bar+1, m[3])
		} else {
			tok.Hide = []document.Range{l.rng(m[0], m[2]), l.rng(m[3], m[1])}
		}
		l.add(tok, m[0], m[1])
	})

	l.each(linkRe, pos, func(m []int) {
		l.add(Token{
			Kind:    KindLink,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Hide:    []document.Range{l.rng(m[0], m[2]), l.rng(m[3], m[1])},
			Content: l.rng(m[2], m[3]),
			Class:   "link",
			Target:  l.line.Text[m[4]:m[5]],
		}, m[0], m[1])
	})

	l.each(urlRe, pos, func(m []int) {
		l.add(Token{
			Kind:    KindURL,
			From:    l.abs(m[0]),
			To:      l.abs(m[1]),
			Content: l.rng(m[0], m[1]),
			Class:   "url",
			Target:  l.line.Text[m[0]:m[1]],
		}, m[0], m[1])
	})

	l.delimited(boldStarRe, pos, 2, KindBold, "bold", false)
	l.delimited(boldUnderRe, pos, 2, KindBold, "bold", true)
	l.delimited(strikeRe, pos, 2, KindStrike, "strikethrough", false)
	l.delimited(italicStarRe, pos, 1, KindItalic, "italic", false)
	l.delimited(italicUndRe, pos, 1, KindItalic, "italic", true)
}

// each calls fn with line-relative submatch indices for every match at or after pos.
func (l *lineScan) each(re *regexp.Regexp, pos int, fn func(m []int)) {
	for _, m := range re.FindAllSubmatchIndex(l.buf[pos:], -1) {
		for i := range m {
			if m[i] >= 0 {
				m[i] += pos
			}
		}
		fn(m)
	}
}

// add records a token that owns [from, to) entirely.
func (l *lineScan) add(tok Token, from, to int) {
	l.tokens = append(l.tokens, tok)
	l.mask(from, to)
}

// delimited handles symmetric emphasis. Only the delimiters are masked so
// emphasis can nest inside the content.
func (l *lineScan) delimited(re *regexp.Regexp, pos, width int, kind Kind, class string, wordBound bool) {
	l.each(re, pos, func(m []int) {
		from, to := m[0], m[1]
		if wordBound && !l.atWordBoundary(from, to) {
			return
		}
		l.tokens = append(l.tokens, Token{
			Kind:    kind,
			From:    l.abs(from),
			To:      l.abs(to),
			Hide:    []document.Range{l.rng(from, from+width), l.rng(to-width, to)},
			Content: l.rng(from+width, to-width),
			Class:   class,
		})
		l.mask(from, from+width)
		l.mask(to-width, to)
	})
}

// atWordBoundary reports whether [from, to) is not glued to letters or digits,
// so snake_case_names do not turn italic.
func (l *lineScan) atWordBoundary(from, to int) bool {
	text := l.line.Text
	if from > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:from])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if to < len(text) {
		r, _ := utf8.DecodeRuneInString(text[to:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func inRanges(ranges []document.Range, offset int) bool {
	for _, r := range ranges {
		if r.Contains(offset) {
			return true
		}
	}
	return false
}
