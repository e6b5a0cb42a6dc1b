// ABOUTME: goldmark AST transformers for link resolution and hashtag linking.
// ABOUTME: Runs after parsing so code spans and existing links are never rewritten.

package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const externalRel = "nofollow noopener"

// linkTransformer resolves link and image destinations and marks external
// links as not followable.
type linkTransformer struct {
	resolver *resolver
}

func (t *linkTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			v.Destination = []byte(t.resolver.resolve(string(v.Destination)))
			if t.resolver.external(string(v.Destination)) {
				v.SetAttributeString("rel", []byte(externalRel))
			}
		case *ast.Image:
			v.Destination = []byte(t.resolver.resolve(string(v.Destination)))
		case *ast.AutoLink:
			if v.AutoLinkType == ast.AutoLinkURL && t.resolver.external(string(v.URL(source))) {
				v.SetAttributeString("rel", []byte(externalRel))
			}
		}
		return ast.WalkContinue, nil
	})
}

var hashtagPattern = regexp.MustCompile(`(^|[^\w&/#])#([a-zA-Z][a-zA-Z0-9-]{0,31})`)

// hashtagTransformer turns #tag in plain text into a link to the tag route.
type hashtagTransformer struct {
	resolver *resolver
	route    func(tag string) string
}

func (t *hashtagTransformer) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()

	// Collect first; the tree must not change while it is being walked
	var texts []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link, *ast.AutoLink, *ast.Image, *ast.CodeSpan, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			texts = append(texts, v)
		}
		return ast.WalkContinue, nil
	})

	for _, node := range texts {
		t.split(node, source)
	}
}

// split replaces node with text and link nodes when it contains hashtags.
func (t *hashtagTransformer) split(node *ast.Text, source []byte) {
	seg := node.Segment
	value := node.Segment.Value(source)

	matches := hashtagPattern.FindAllSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return
	}

	parent := node.Parent()
	if parent == nil {
		return
	}

	cursor := 0
	for _, m := range matches {
		tagStart, tagEnd := m[4], m[5]
		tag := strings.TrimRight(string(value[tagStart:tagEnd]), "-")
		tagEnd = tagStart + len(tag)
		if tagEnd < len(value) && isWordByte(value[tagEnd]) {
			continue
		}
		hashStart := tagStart - 1

		if hashStart > cursor {
			parent.InsertBefore(parent, node, ast.NewTextSegment(text.NewSegment(seg.Start+cursor, seg.Start+hashStart)))
		}

		link := ast.NewLink()
		link.Destination = []byte(t.resolver.resolve(t.route(strings.ToLower(tag))))
		link.AppendChild(link, ast.NewTextSegment(text.NewSegment(seg.Start+hashStart, seg.Start+tagEnd)))
		parent.InsertBefore(parent, node, link)

		cursor = tagEnd
	}

	if cursor == 0 {
		return
	}

	rest := ast.NewTextSegment(text.NewSegment(seg.Start+cursor, seg.Stop))
	rest.SetSoftLineBreak(node.SoftLineBreak())
	rest.SetHardLineBreak(node.HardLineBreak())
	parent.InsertBefore(parent, node, rest)
	parent.RemoveChild(parent, node)
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
