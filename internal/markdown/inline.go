package markdown

import (
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type style struct {
	bold, italic, strike, code bool
	link                       string
}

func (st style) run(content string) notion.RichText {
	return notion.RichText{
		Content:       content,
		Link:          st.link,
		Bold:          st.bold,
		Italic:        st.italic,
		Strikethrough: st.strike,
		Code:          st.code,
	}
}

// ParseInline converts inline markdown into rich text runs. Runs longer
// than notion.MaxTextLength are split.
func ParseInline(s string) []notion.RichText {
	source := []byte(s)
	doc := md.Parser().Parse(text.NewReader(source))
	c := converter{source: source}

	var runs []notion.RichText
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if len(runs) > 0 {
			runs = append(runs, notion.Text("\n"))
		}
		c.walkInline(n, style{}, &runs)
	}
	return finish(runs)
}

// inline returns the rich text of a block's inline children.
func (c converter) inline(n ast.Node) []notion.RichText {
	var runs []notion.RichText
	c.walkInline(n, style{}, &runs)
	return finish(runs)
}

func (c converter) walkInline(parent ast.Node, st style, runs *[]notion.RichText) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		inner := st
		switch n := n.(type) {
		case *ast.Text:
			v := n.Segment.Value(c.source)
			if !st.code {
				v = util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(v)))
			}
			content := string(v)
			if n.SoftLineBreak() || n.HardLineBreak() {
				content = strings.TrimRight(content, " \t")
				if n.HardLineBreak() {
					content = strings.TrimSuffix(content, "\\")
				}
				if st.code {
					content += " "
				} else {
					content += "\n"
				}
			}
			*runs = append(*runs, st.run(content))

		case *ast.String:
			*runs = append(*runs, st.run(string(n.Value)))

		case *ast.CodeSpan:
			inner.code = true
			c.walkInline(n, inner, runs)

		case *ast.Emphasis:
			if n.Level >= 2 {
				inner.bold = true
			} else {
				inner.italic = true
			}
			c.walkInline(n, inner, runs)

		case *extast.Strikethrough:
			inner.strike = true
			c.walkInline(n, inner, runs)

		case *ast.Link:
			inner.link = string(n.Destination)
			c.walkInline(n, inner, runs)

		case *ast.Image:
			inner.link = string(n.Destination)
			c.walkInline(n, inner, runs)

		case *ast.AutoLink:
			inner.link = autoLinkURL(n, c.source)
			*runs = append(*runs, inner.run(string(n.Label(c.source))))

		case *ast.RawHTML, *extast.TaskCheckBox:

		default:
			c.walkInline(n, inner, runs)
		}
	}
}

func autoLinkURL(n *ast.AutoLink, source []byte) string {
	url := string(n.URL(source))
	switch {
	case n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(url, "mailto:"):
		return "mailto:" + url
	case n.AutoLinkType == ast.AutoLinkURL && !strings.Contains(url, "://"):
		return "https://" + url
	}
	return url
}

// finish merges neighbouring runs with the same annotations, then splits
// runs that are too long for one rich text object.
func finish(runs []notion.RichText) []notion.RichText {
	var merged []notion.RichText
	for _, rt := range runs {
		if rt.Content == "" {
			continue
		}
		if last := len(merged) - 1; last >= 0 && sameStyle(merged[last], rt) {
			merged[last].Content += rt.Content
			continue
		}
		merged = append(merged, rt)
	}
	if n := len(merged); n > 0 {
		merged[n-1].Content = strings.TrimRight(merged[n-1].Content, "\n")
		if merged[n-1].Content == "" {
			merged = merged[:n-1]
		}
	}

	var out []notion.RichText
	for _, rt := range merged {
		for _, chunk := range notion.SplitText(rt.Content) {
			if chunk == "" {
				continue
			}
			c := rt
			c.Content = chunk
			out = append(out, c)
		}
	}
	return out
}

func sameStyle(a, b notion.RichText) bool {
	a.Content, b.Content = "", ""
	return a == b
}

var languages = map[string]string{
	"":           "plain text",
	"text":       "plain text",
	"txt":        "plain text",
	"sh":         "shell",
	"bash":       "bash",
	"zsh":        "shell",
	"shell":      "shell",
	"console":    "shell",
	"go":         "go",
	"golang":     "go",
	"py":         "python",
	"python":     "python",
	"js":         "javascript",
	"javascript": "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"typescript": "typescript",
	"tsx":        "typescript",
	"json":       "json",
	"yaml":       "yaml",
	"yml":        "yaml",
	"toml":       "toml",
	"sql":        "sql",
	"html":       "html",
	"css":        "css",
	"md":         "markdown",
	"markdown":   "markdown",
	"mermaid":    "mermaid",
	"rust":       "rust",
	"rs":         "rust",
	"java":       "java",
	"kotlin":     "kotlin",
	"c":          "c",
	"cpp":        "c++",
	"c++":        "c++",
	"cs":         "c#",
	"csharp":     "c#",
	"ruby":       "ruby",
	"rb":         "ruby",
	"docker":     "docker",
	"dockerfile": "docker",
	"graphql":    "graphql",
	"xml":        "xml",
	"diff":       "diff",
}

// codeLanguage maps a fence info string to a Notion code language.
func codeLanguage(lang string) string {
	if l, ok := languages[strings.ToLower(lang)]; ok {
		return l
	}
	return "plain text"
}
