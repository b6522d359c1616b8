package inline

import (
	"strings"

	"github.com/dshills/livemark/internal/document"
)

// Mark is a styled run of visible bytes. Marks produced for one line never
// overlap.
type Mark struct {
	From    int
	To      int
	Classes []string
	Target  string
}

// Range returns the mark's byte range.
func (m Mark) Range() document.Range {
	return document.Range{From: m.From, To: m.To}
}

// Class joins the classes with spaces.
func (m Mark) Class() string {
	return strings.Join(m.Classes, " ")
}

// Marks flattens the styled content of tokens on line into disjoint runs.
// Hidden and replaced bytes carry no style. Nested emphasis such as bold
// around italic yields separate runs with combined classes.
func Marks(line document.Line, tokens []Token) []Mark {
	n := len(line.Text)
	if n == 0 || len(tokens) == 0 {
		return nil
	}
	hidden := make([]bool, n)
	classes := make([][]string, n)
	targets := make([]string, n)

	local := func(r document.Range) (int, int) {
		from, to := r.From-line.From, r.To-line.From
		if from < 0 {
			from = 0
		}
		if to > n {
			to = n
		}
		return from, to
	}

	for _, t := range tokens {
		for _, h := range t.Hide {
			from, to := local(h)
			for i := from; i < to; i++ {
				hidden[i] = true
			}
		}
		if t.Replace {
			from, to := local(document.Range{From: t.From, To: t.To})
			for i := from; i < to; i++ {
				hidden[i] = true
			}
		}
	}
	for _, t := range tokens {
		if t.Class == "" || t.Content.IsEmpty() {
			continue
		}
		from, to := local(t.Content)
		for i := from; i < to; i++ {
			if !containsString(classes[i], t.Class) {
				classes[i] = append(classes[i], t.Class)
			}
			if t.Target != "" && targets[i] == "" {
				targets[i] = t.Target
			}
		}
	}

	var marks []Mark
	for i := 0; i < n; {
		if hidden[i] || len(classes[i]) == 0 {
			i++
			continue
		}
		j := i + 1
		for j < n && !hidden[j] && targets[j] == targets[i] && sameStrings(classes[j], classes[i]) {
			j++
		}
		marks = append(marks, Mark{
			From:    line.From + i,
			To:      line.From + j,
			Classes: classes[i],
			Target:  targets[i],
		})
		i = j
	}
	return marks
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
