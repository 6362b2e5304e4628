package notion

import (
	"encoding/json"
	"unicode/utf8"
)

// BlockType is a Notion block type name.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading1  BlockType = "heading_1"
	BlockHeading2  BlockType = "heading_2"
	BlockHeading3  BlockType = "heading_3"
	BlockBulleted  BlockType = "bulleted_list_item"
	BlockNumbered  BlockType = "numbered_list_item"
	BlockToDo      BlockType = "to_do"
	BlockQuote     BlockType = "quote"
	BlockCode      BlockType = "code"
	BlockDivider   BlockType = "divider"
)

// MaxTextLength is the longest content a single rich text object may carry.
const MaxTextLength = 2000

// MaxBlocksPerRequest is the most children one create or append call accepts.
const MaxBlocksPerRequest = 100

// RichText is a run of text with uniform annotations.
type RichText struct {
	Content       string
	Link          string
	Bold          bool
	Italic        bool
	Strikethrough bool
	Code          bool
}

// Text returns an unannotated run.
func Text(s string) RichText {
	return RichText{Content: s}
}

// Block is a single content block.
type Block struct {
	Type     BlockType
	RichText []RichText
	// Language applies to code blocks.
	Language string
	// Checked applies to to-do blocks.
	Checked bool
	// Children are nested blocks, such as the sub-items of a list item.
	Children []Block
}

// PlainText concatenates the block's text runs.
func (b Block) PlainText() string {
	var s string
	for _, rt := range b.RichText {
		s += rt.Content
	}
	return s
}

type textJSON struct {
	Content string    `json:"content"`
	Link    *linkJSON `json:"link,omitempty"`
}

type linkJSON struct {
	URL string `json:"url"`
}

type annotationsJSON struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color"`
}

type richTextJSON struct {
	Type        string           `json:"type"`
	Text        textJSON         `json:"text"`
	Annotations *annotationsJSON `json:"annotations,omitempty"`
}

// MarshalJSON encodes the run in Notion's rich text shape.
func (rt RichText) MarshalJSON() ([]byte, error) {
	out := richTextJSON{Type: "text", Text: textJSON{Content: rt.Content}}
	if rt.Link != "" {
		out.Text.Link = &linkJSON{URL: rt.Link}
	}
	if rt.Bold || rt.Italic || rt.Strikethrough || rt.Code {
		out.Annotations = &annotationsJSON{
			Bold:          rt.Bold,
			Italic:        rt.Italic,
			Strikethrough: rt.Strikethrough,
			Code:          rt.Code,
			Color:         "default",
		}
	}
	return json.Marshal(out)
}

// MarshalJSON encodes the block in Notion's block shape.
func (b Block) MarshalJSON() ([]byte, error) {
	body := map[string]interface{}{}
	if b.Type != BlockDivider {
		rts := b.RichText
		if rts == nil {
			rts = []RichText{}
		}
		body["rich_text"] = rts
	}
	switch b.Type {
	case BlockCode:
		lang := b.Language
		if lang == "" {
			lang = "plain text"
		}
		body["language"] = lang
	case BlockToDo:
		body["checked"] = b.Checked
	}
	if len(b.Children) > 0 {
		body["children"] = b.Children
	}

	return json.Marshal(map[string]interface{}{
		"object":       "block",
		"type":         string(b.Type),
		string(b.Type): body,
	})
}

// SplitText breaks s into chunks of at most MaxTextLength runes without
// splitting a UTF-8 sequence.
func SplitText(s string) []string {
	if utf8.RuneCountInString(s) <= MaxTextLength {
		return []string{s}
	}

	var chunks []string
	for len(s) > 0 {
		n, i := 0, 0
		for i < len(s) && n < MaxTextLength {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			n++
		}
		chunks = append(chunks, s[:i])
		s = s[i:]
	}
	return chunks
}

// Batches splits blocks into request-sized slices.
func Batches(blocks []Block) [][]Block {
	var out [][]Block
	for len(blocks) > MaxBlocksPerRequest {
		out = append(out, blocks[:MaxBlocksPerRequest])
		blocks = blocks[MaxBlocksPerRequest:]
	}
	if len(blocks) > 0 {
		out = append(out, blocks)
	}
	return out
}
