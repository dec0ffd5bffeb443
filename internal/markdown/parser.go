package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// Parser renders user Markdown documents for previews. Raw HTML in the
// source is omitted from the output.
type Parser struct {
	md goldmark.Markdown
}

// Document is a rendered Markdown file.
type Document struct {
	HTML []byte
	// Title is the front matter title, else the first level-1 heading.
	Title string
	Meta  map[string]any
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{md: md}
}

// Render parses source once and renders it. Undecodable front matter is
// ignored rather than failing the preview.
func (p *Parser) Render(source []byte) (*Document, error) {
	pctx := parser.NewContext()
	root := p.md.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))

	var buf bytes.Buffer
	err := p.md.Renderer().Render(&buf, source, root)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	doc := &Document{
		HTML: buf.Bytes(),
		Meta: make(map[string]any),
	}
	if data := frontmatter.Get(pctx); data != nil {
		err = data.Decode(&doc.Meta)
		if err != nil {
			doc.Meta = make(map[string]any)
		}
	}

	if t, ok := doc.Meta["title"].(string); ok && strings.TrimSpace(t) != "" {
		doc.Title = strings.TrimSpace(t)
	} else {
		doc.Title = firstHeading(root, source)
	}
	return doc, nil
}

func firstHeading(root ast.Node, source []byte) string {
	var title string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !entering || !ok || h.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(inlineText(h, source))
		return ast.WalkStop, nil
	})
	return title
}

func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(inlineText(c, source))
		}
	}
	return sb.String()
}
