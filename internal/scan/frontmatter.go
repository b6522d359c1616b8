package scan

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/livemark/internal/document"
)

// Property is one frontmatter key with its value rendered as text.
type Property struct {
	Key   string
	Value string
	List  []string
	// Type is a hint: "text", "number", "boolean", "list", "null" or "object".
	Type string
}

// Frontmatter is the payload of the frontmatter block.
type Frontmatter struct {
	// Body is the YAML text between the delimiters.
	Body string

	// Properties holds the top-level keys in source order.
	Properties []Property

	// Tags and Aliases are normalized from the "tags"/"tag" and "aliases"/"alias" keys.
	Tags    []string
	Aliases []string

	// Err is set when the YAML could not be parsed as a mapping.
	Err error
}

func (*Frontmatter) isPayload() {}

// FrontmatterScanner detects YAML frontmatter at the start of the document.
type FrontmatterScanner struct{}

// NewFrontmatterScanner creates a frontmatter scanner.
func NewFrontmatterScanner() *FrontmatterScanner {
	return &FrontmatterScanner{}
}

// Name returns the scanner name.
func (s *FrontmatterScanner) Name() string { return "frontmatter" }

// Scan returns at most one block. The opening "---" must be the first non-blank
// line, and the block needs a matching "---" or "..." to close it.
func (s *FrontmatterScanner) Scan(doc *document.Document) []Block {
	start := -1
	for n := 0; n < doc.LineCount(); n++ {
		text := strings.TrimRight(doc.Line(n).Text, " \t")
		if text == "" {
			continue
		}
		if text == "---" {
			start = n
		}
		break
	}
	if start < 0 {
		return nil
	}

	var body []string
	for n := start + 1; n < doc.LineCount(); n++ {
		text := strings.TrimRight(doc.Line(n).Text, " \t")
		if text == "---" || text == "..." {
			fm := ParseFrontmatter(strings.Join(body, "\n"))
			return []Block{newBlock(doc, KindFrontmatter, start, n, fm)}
		}
		body = append(body, doc.Line(n).Text)
	}
	return nil
}

// ParseFrontmatter parses a YAML mapping into ordered properties.
func ParseFrontmatter(body string) *Frontmatter {
	fm := &Frontmatter{Body: body}
	if strings.TrimSpace(body) == "" {
		return fm
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(body), &root); err != nil {
		fm.Err = err
		return fm
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		fm.Err = fmt.Errorf("frontmatter is not a mapping")
		return fm
	}

	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		prop := nodeToProperty(key, m.Content[i+1])
		fm.Properties = append(fm.Properties, prop)

		switch strings.ToLower(key) {
		case "tags", "tag":
			fm.Tags = normalizeTags(prop)
		case "aliases", "alias":
			if prop.Type == "list" {
				fm.Aliases = prop.List
			} else if prop.Value != "" {
				fm.Aliases = []string{prop.Value}
			}
		}
	}
	return fm
}

func nodeToProperty(key string, n *yaml.Node) Property {
	p := Property{Key: key}
	switch n.Kind {
	case yaml.ScalarNode:
		p.Value = n.Value
		switch n.ShortTag() {
		case "!!int", "!!float":
			p.Type = "number"
			if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
				p.Value = strconv.FormatFloat(f, 'f', -1, 64)
			}
		case "!!bool":
			p.Type = "boolean"
		case "!!null":
			p.Type = "null"
			p.Value = ""
		default:
			p.Type = "text"
		}
	case yaml.SequenceNode:
		p.Type = "list"
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode && item.ShortTag() != "!!null" {
				p.List = append(p.List, item.Value)
			}
		}
		p.Value = strings.Join(p.List, ", ")
	case yaml.MappingNode:
		p.Type = "object"
		out, err := yaml.Marshal(n)
		if err == nil {
			p.Value = strings.TrimSpace(string(out))
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			return nodeToProperty(key, n.Alias)
		}
	}
	return p
}

func normalizeTags(p Property) []string {
	var raw []string
	if p.Type == "list" {
		raw = p.List
	} else {
		raw = strings.FieldsFunc(p.Value, func(r rune) bool { return r == ',' || r == ' ' })
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimLeft(strings.TrimSpace(t), "#")
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
