// Package markdown converts markdown documents into Notion blocks.
//
// Documents are parsed with goldmark (CommonMark plus the GFM strikethrough,
// task list and autolink extensions) and the AST is mapped onto the block
// types Notion accepts: headings, paragraphs, bulleted, numbered and to-do
// items, quotes, fenced code and dividers. Nested list items become child
// blocks. Output is deterministic for identical input.
package markdown

import (
	"bytes"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// maxDepth is how many block levels one Notion request may carry. Deeper
// list items are flattened into their deepest allowed ancestor.
const maxDepth = 3

var md = goldmark.New(goldmark.WithExtensions(
	extension.Strikethrough,
	extension.TaskList,
	extension.Linkify,
))

// ToBlocks converts markdown text into Notion blocks.
func ToBlocks(src string) []notion.Block {
	source := []byte(strings.ReplaceAll(src, "\r\n", "\n"))
	source = stripFrontMatter(source)

	doc := md.Parser().Parse(text.NewReader(source))
	c := converter{source: source}
	return c.blocks(doc, 0)
}

type converter struct {
	source []byte
}

// blocks converts the children of a container node.
func (c converter) blocks(parent ast.Node, depth int) []notion.Block {
	var out []notion.Block
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n, depth)...)
	}
	return out
}

func (c converter) block(n ast.Node, depth int) []notion.Block {
	switch n := n.(type) {
	case *ast.Heading:
		return []notion.Block{{Type: headingType(n.Level), RichText: c.inline(n)}}

	case *ast.Paragraph, *ast.TextBlock:
		rts := c.inline(n)
		if len(rts) == 0 {
			return nil
		}
		return []notion.Block{{Type: notion.BlockParagraph, RichText: rts}}

	case *ast.ThematicBreak:
		return []notion.Block{{Type: notion.BlockDivider}}

	case *ast.FencedCodeBlock:
		return []notion.Block{codeBlock(c.lines(n), string(n.Language(c.source)))}

	case *ast.CodeBlock:
		return []notion.Block{codeBlock(c.lines(n), "")}

	case *ast.Blockquote:
		return []notion.Block{c.container(n, notion.BlockQuote, depth)}

	case *ast.List:
		t := notion.BlockBulleted
		if n.IsOrdered() {
			t = notion.BlockNumbered
		}
		var out []notion.Block
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			out = append(out, c.listItem(item, t, depth)...)
		}
		return out

	case *ast.HTMLBlock:
		// Raw HTML, usually comments, has no block equivalent.
		return nil
	}

	// Unknown containers still contribute their children.
	if n.HasChildren() && n.Type() == ast.TypeBlock {
		return c.blocks(n, depth)
	}
	return nil
}

// container maps a node whose first paragraph becomes the block text and
// whose remaining children become child blocks.
func (c converter) container(n ast.Node, t notion.BlockType, depth int) notion.Block {
	b := notion.Block{Type: t}
	rest := n.FirstChild()
	if rest != nil && isTextual(rest) {
		b.RichText = c.inline(rest)
		rest = rest.NextSibling()
	}

	var children []notion.Block
	for ; rest != nil; rest = rest.NextSibling() {
		children = append(children, c.block(rest, depth+1)...)
	}
	b.Children = children
	return b
}

func (c converter) listItem(item ast.Node, t notion.BlockType, depth int) []notion.Block {
	box := checkBox(item)
	if box != nil {
		t = notion.BlockToDo
	}
	b := c.container(item, t, depth)
	if box != nil {
		b.Checked = box.IsChecked
	}

	if depth+1 < maxDepth || len(b.Children) == 0 {
		return []notion.Block{b}
	}
	children := flatten(b.Children)
	b.Children = nil
	return append([]notion.Block{b}, children...)
}

// checkBox returns the task marker opening a list item, if any.
func checkBox(item ast.Node) *extast.TaskCheckBox {
	first := item.FirstChild()
	if first == nil || !isTextual(first) {
		return nil
	}
	box, _ := first.FirstChild().(*extast.TaskCheckBox)
	return box
}

// flatten lifts nested children to a single level.
func flatten(blocks []notion.Block) []notion.Block {
	var out []notion.Block
	for _, b := range blocks {
		children := b.Children
		b.Children = nil
		out = append(out, b)
		out = append(out, flatten(children)...)
	}
	return out
}

func isTextual(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return true
	}
	return false
}

// lines returns the raw content of a code block without the final newline.
func (c converter) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(c.source))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func headingType(level int) notion.BlockType {
	switch level {
	case 1:
		return notion.BlockHeading1
	case 2:
		return notion.BlockHeading2
	default:
		return notion.BlockHeading3
	}
}

func codeBlock(code, lang string) notion.Block {
	var rts []notion.RichText
	for _, chunk := range notion.SplitText(code) {
		if chunk != "" {
			rts = append(rts, notion.Text(chunk))
		}
	}
	return notion.Block{Type: notion.BlockCode, RichText: rts, Language: codeLanguage(lang)}
}

// stripFrontMatter drops a leading YAML front matter block. A leading
// "---" whose body is not a YAML mapping is a thematic break and is kept.
func stripFrontMatter(source []byte) []byte {
	const fence = "---\n"
	if !bytes.HasPrefix(source, []byte(fence)) {
		return source
	}
	body := source[len(fence):]

	var end, rest int
	if i := bytes.Index(body, []byte("\n"+fence)); i >= 0 {
		end, rest = i, i+len("\n"+fence)
	} else if bytes.HasSuffix(body, []byte("\n---")) {
		end, rest = len(body)-len("\n---"), len(body)
	} else {
		return source
	}

	var meta map[string]interface{}
	if err := yaml.Unmarshal(body[:end], &meta); err != nil || len(meta) == 0 {
		return source
	}
	return body[rest:]
}
