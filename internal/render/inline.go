package render

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Run is a span of text with uniform styling.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
}

// inlineParser knows no block syntax besides paragraphs, so list, rule and heading
// markers left in a line stay literal text.
var inlineParser = parser.NewParser(
	parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
	parser.WithInlineParsers(parser.DefaultInlineParsers()...),
)

// Inline reduces one line of markdown to styled runs. Markers are consumed and links keep only their text.
func Inline(line string) []Run {
	src := []byte(line)
	doc := inlineParser.Parse(text.NewReader(src))

	var runs []Run
	bold, italic, code := 0, 0, 0
	add := func(s string) {
		if s == "" {
			return
		}
		r := Run{Text: s, Bold: bold > 0, Italic: italic > 0, Code: code > 0}
		if n := len(runs); n > 0 && sameStyle(runs[n-1], r) {
			runs[n-1].Text += s
			return
		}
		runs = append(runs, r)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.Emphasis:
			d := 1
			if !entering {
				d = -1
			}
			if n.Level >= 2 {
				bold += d
			} else {
				italic += d
			}
		case *ast.CodeSpan:
			if entering {
				code++
			} else {
				code--
			}
		case *ast.Text:
			if entering {
				add(string(n.Segment.Value(src)))
				if n.SoftLineBreak() || n.HardLineBreak() {
					add(" ")
				}
			}
		case *ast.String:
			if entering {
				add(string(n.Value))
			}
		case *ast.AutoLink:
			if entering {
				add(string(n.Label(src)))
			}
		case *ast.RawHTML:
			if entering {
				for i := 0; i < n.Segments.Len(); i++ {
					seg := n.Segments.At(i)
					add(string(seg.Value(src)))
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return runs
}

func sameStyle(a, b Run) bool {
	return a.Bold == b.Bold && a.Italic == b.Italic && a.Code == b.Code
}
