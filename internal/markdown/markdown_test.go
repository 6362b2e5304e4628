package markdown

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/google/go-cmp/cmp"
)

func types(blocks []notion.Block) []notion.BlockType {
	out := make([]notion.BlockType, len(blocks))
	for i, b := range blocks {
		out[i] = b.Type
	}
	return out
}

func TestToBlocks_Structure(t *testing.T) {
	input := `# Title

Intro line one
line two

## Section
### Sub
#### Deep

- bullet
* star bullet
1. first
2. second
- [ ] open task
- [x] done task

> quoted
> more

---

` + "```go\nfunc main() {}\n```"

	blocks := ToBlocks(input)

	want := []notion.BlockType{
		notion.BlockHeading1,
		notion.BlockParagraph,
		notion.BlockHeading2,
		notion.BlockHeading3,
		notion.BlockHeading3,
		notion.BlockBulleted,
		notion.BlockBulleted,
		notion.BlockNumbered,
		notion.BlockNumbered,
		notion.BlockToDo,
		notion.BlockToDo,
		notion.BlockQuote,
		notion.BlockDivider,
		notion.BlockCode,
	}
	if diff := cmp.Diff(want, types(blocks)); diff != "" {
		t.Fatalf("block types mismatch (-want +got):\n%s", diff)
	}

	if got := blocks[1].PlainText(); got != "Intro line one\nline two" {
		t.Errorf("paragraph = %q", got)
	}
	if got := blocks[4].PlainText(); got != "Deep" {
		t.Errorf("clamped heading = %q", got)
	}
	if blocks[9].Checked || !blocks[10].Checked {
		t.Errorf("to-do checked = %v, %v", blocks[9].Checked, blocks[10].Checked)
	}
	if got := blocks[11].PlainText(); got != "quoted\nmore" {
		t.Errorf("quote = %q", got)
	}
	if blocks[13].Language != "go" || blocks[13].PlainText() != "func main() {}" {
		t.Errorf("code block = %+v", blocks[13])
	}
}

func TestToBlocks_CodeFenceKeepsMarkdown(t *testing.T) {
	input := "```\n# not a heading\n- not a list\n\n**raw**\n```\nafter"
	blocks := ToBlocks(input)

	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Type != notion.BlockCode || blocks[0].Language != "plain text" {
		t.Errorf("first block = %+v", blocks[0])
	}
	if got := blocks[0].PlainText(); got != "# not a heading\n- not a list\n\n**raw**" {
		t.Errorf("code = %q", got)
	}
	if blocks[1].PlainText() != "after" {
		t.Errorf("trailing paragraph = %q", blocks[1].PlainText())
	}
}

func TestToBlocks_UnclosedFence(t *testing.T) {
	blocks := ToBlocks("```python\nprint(1)")
	if len(blocks) != 1 || blocks[0].Type != notion.BlockCode || blocks[0].Language != "python" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestToBlocks_FrontMatterAndEmpty(t *testing.T) {
	if got := ToBlocks(""); len(got) != 0 {
		t.Errorf("empty input produced %d blocks", len(got))
	}

	blocks := ToBlocks("---\nstepsCompleted: [1]\n---\n# PRD v1\n")
	if len(blocks) != 1 || blocks[0].Type != notion.BlockHeading1 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].PlainText() != "PRD v1" {
		t.Errorf("heading = %q", blocks[0].PlainText())
	}
}

func item(t notion.BlockType, content string, children ...notion.Block) notion.Block {
	return notion.Block{Type: t, RichText: []notion.RichText{{Content: content}}, Children: children}
}

func TestToBlocks_NestedLists(t *testing.T) {
	input := `- parent
  - child
    - grandchild
      - great
- sibling
  1. first step

> quoted
>
> - inside
`
	want := []notion.Block{
		item(notion.BlockBulleted, "parent",
			item(notion.BlockBulleted, "child",
				item(notion.BlockBulleted, "grandchild"),
				item(notion.BlockBulleted, "great"),
			),
		),
		item(notion.BlockBulleted, "sibling",
			item(notion.BlockNumbered, "first step"),
		),
		item(notion.BlockQuote, "quoted",
			item(notion.BlockBulleted, "inside"),
		),
	}
	if diff := cmp.Diff(want, ToBlocks(input)); diff != "" {
		t.Errorf("ToBlocks mismatch (-want +got):\n%s", diff)
	}
}

func TestToBlocks_LeadingRuleIsNotFrontMatter(t *testing.T) {
	blocks := ToBlocks("---\n\nIntro\n\n---\n\nBody\n")

	want := []notion.BlockType{
		notion.BlockDivider,
		notion.BlockParagraph,
		notion.BlockDivider,
		notion.BlockParagraph,
	}
	if diff := cmp.Diff(want, types(blocks)); diff != "" {
		t.Fatalf("block types mismatch (-want +got):\n%s", diff)
	}
	if blocks[1].PlainText() != "Intro" || blocks[3].PlainText() != "Body" {
		t.Errorf("paragraphs = %q, %q", blocks[1].PlainText(), blocks[3].PlainText())
	}
}

func TestToBlocks_SkipsHTML(t *testing.T) {
	blocks := ToBlocks("<!-- generated -->\n\nKept <b>text</b>\n")
	if len(blocks) != 1 || blocks[0].PlainText() != "Kept text" {
		t.Fatalf("blocks = %+v", blocks)
	}
}

func TestToBlocks_Deterministic(t *testing.T) {
	input := "# A\n\n**b** _c_ [d](https://e.example)\n"
	first, _ := json.Marshal(ToBlocks(input))
	second, _ := json.Marshal(ToBlocks(input))
	if string(first) != string(second) {
		t.Error("ToBlocks is not deterministic")
	}
}

func TestParseInline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []notion.RichText
	}{
		{
			name:  "plain",
			input: "hello world",
			want:  []notion.RichText{{Content: "hello world"}},
		},
		{
			name:  "bold and italic",
			input: "a **b** *c* d",
			want: []notion.RichText{
				{Content: "a "},
				{Content: "b", Bold: true},
				{Content: " "},
				{Content: "c", Italic: true},
				{Content: " d"},
			},
		},
		{
			name:  "code span keeps markers",
			input: "run `go test ./...` now",
			want: []notion.RichText{
				{Content: "run "},
				{Content: "go test ./...", Code: true},
				{Content: " now"},
			},
		},
		{
			name:  "link with bold text",
			input: "see [**docs**](https://x.example/a) here",
			want: []notion.RichText{
				{Content: "see "},
				{Content: "docs", Bold: true, Link: "https://x.example/a"},
				{Content: " here"},
			},
		},
		{
			name:  "strikethrough",
			input: "~~gone~~",
			want:  []notion.RichText{{Content: "gone", Strikethrough: true}},
		},
		{
			name:  "snake case is literal",
			input: "use sprint_status_file here",
			want:  []notion.RichText{{Content: "use sprint_status_file here"}},
		},
		{
			name:  "lone markers are literal",
			input: "2 * 3 and **open",
			want:  []notion.RichText{{Content: "2 * 3 and **open"}},
		},
		{
			name:  "escaped marker",
			input: `\*not italic\*`,
			want:  []notion.RichText{{Content: "*not italic*"}},
		},
		{
			name:  "autolink",
			input: "see <https://x.example/a> now",
			want: []notion.RichText{
				{Content: "see "},
				{Content: "https://x.example/a", Link: "https://x.example/a"},
				{Content: " now"},
			},
		},
		{
			name:  "entity",
			input: "fish &amp; chips",
			want:  []notion.RichText{{Content: "fish & chips"}},
		},
		{
			name:  "broken link is literal",
			input: "[text](no close",
			want:  []notion.RichText{{Content: "[text](no close"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInline(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseInline(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseInline_SplitsLongText(t *testing.T) {
	long := strings.Repeat("é", notion.MaxTextLength+10)
	got := ParseInline(long)

	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2", len(got))
	}
	if n := len([]rune(got[0].Content)); n != notion.MaxTextLength {
		t.Errorf("first run has %d runes, want %d", n, notion.MaxTextLength)
	}
	if got[0].Content+got[1].Content != long {
		t.Error("split runs do not reassemble the input")
	}
}

func TestBlockJSON_Children(t *testing.T) {
	data, err := json.Marshal(ToBlocks("- a\n  - b\n"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded []struct {
		Item struct {
			Children []map[string]interface{} `json:"children"`
		} `json:"bulleted_list_item"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 1 || len(decoded[0].Item.Children) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded[0].Item.Children[0]["type"] != "bulleted_list_item" {
		t.Errorf("child = %v", decoded[0].Item.Children[0])
	}
}

func TestBlockJSON(t *testing.T) {
	blocks := ToBlocks("- [x] **done**\n\n---\n")
	data, err := json.Marshal(blocks)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded[0]["type"] != "to_do" {
		t.Errorf("type = %v", decoded[0]["type"])
	}
	todo := decoded[0]["to_do"].(map[string]interface{})
	if todo["checked"] != true {
		t.Errorf("checked = %v", todo["checked"])
	}
	rt := todo["rich_text"].([]interface{})[0].(map[string]interface{})
	if rt["annotations"].(map[string]interface{})["bold"] != true {
		t.Errorf("annotations = %v", rt["annotations"])
	}
	if _, ok := decoded[1]["divider"]; !ok {
		t.Errorf("divider block = %v", decoded[1])
	}
}
