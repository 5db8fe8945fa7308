package entry

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading represents a parsed heading.
type Heading struct {
	Level int
	Text  string
}

// bodyInfo is what the markdown pass extracts from an entry body.
type bodyInfo struct {
	Headings  []Heading
	PlainText string
}

// analyzeBody walks the goldmark AST of body and collects headings and the
// plain text of every text-bearing node. Code blocks are kept as text so
// they remain searchable.
func analyzeBody(body string) bodyInfo {
	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var info bodyInfo
	var plain strings.Builder

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Kind() == ast.KindParagraph || n.Kind() == ast.KindHeading {
				plain.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if t := strings.TrimSpace(nodeText(node, src)); t != "" {
				info.Headings = append(info.Headings, Heading{Level: node.Level, Text: t})
			}
		case *ast.Text:
			plain.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				plain.WriteByte(' ')
			}
		case *ast.String:
			plain.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				plain.Write(seg.Value(src))
			}
			plain.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	info.PlainText = strings.TrimSpace(plain.String())
	return info
}

// nodeText concatenates the text segments under n.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
		case *ast.String:
			b.Write(c.Value)
		default:
			b.WriteString(nodeText(child, src))
		}
	}
	return b.String()
}

// countWords counts whitespace-separated words.
func countWords(s string) int {
	return len(strings.Fields(s))
}
