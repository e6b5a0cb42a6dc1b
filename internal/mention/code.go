// ABOUTME: Locates code spans and code blocks in markdown source using the goldmark parser.
// ABOUTME: Mentions inside code are shown verbatim and never turned into links.

package mention

import (
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// codeParser must recognise the same code syntax as the markdown renderer.
var codeParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// span is a half-open byte range of the source.
type span struct {
	start, stop int
}

// codeSpans returns the byte ranges of source holding code, sorted by start.
func codeSpans(source string) []span {
	src := []byte(source)
	doc := codeParser.Parse(text.NewReader(src))

	var out []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					out = append(out, span{t.Segment.Start, t.Segment.Stop})
				}
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeBlock, ast.KindFencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				out = append(out, span{seg.Start, seg.Stop})
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// inCode reports whether offset falls inside one of spans.
func inCode(spans []span, offset int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].stop > offset })
	return i < len(spans) && spans[i].start <= offset
}
