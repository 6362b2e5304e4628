package notion

import (
	"encoding/json"
	"sort"
	"time"
)

// PropertyKind is a Notion database property type.
type PropertyKind string

const (
	KindTitle    PropertyKind = "title"
	KindRichText PropertyKind = "rich_text"
	KindStatus   PropertyKind = "status"
	KindSelect   PropertyKind = "select"
	KindRelation PropertyKind = "relation"
)

// Property is a value written to a database row property.
type Property struct {
	Kind PropertyKind
	Text string
	IDs  []string
}

// TitleProperty returns a title value.
func TitleProperty(s string) Property { return Property{Kind: KindTitle, Text: s} }

// RichTextProperty returns a rich text value.
func RichTextProperty(s string) Property { return Property{Kind: KindRichText, Text: s} }

// StatusProperty returns a status value naming an existing option.
func StatusProperty(name string) Property { return Property{Kind: KindStatus, Text: name} }

// SelectProperty returns a select value.
func SelectProperty(name string) Property { return Property{Kind: KindSelect, Text: name} }

// RelationProperty returns a relation to the given entity ids.
func RelationProperty(ids ...string) Property { return Property{Kind: KindRelation, IDs: ids} }

// MarshalJSON encodes the property value.
func (p Property) MarshalJSON() ([]byte, error) {
	var v interface{}
	switch p.Kind {
	case KindTitle, KindRichText:
		var rts []RichText
		for _, chunk := range SplitText(p.Text) {
			if chunk != "" {
				rts = append(rts, Text(chunk))
			}
		}
		if rts == nil {
			rts = []RichText{}
		}
		v = rts
	case KindStatus, KindSelect:
		v = map[string]string{"name": p.Text}
	case KindRelation:
		refs := make([]map[string]string, 0, len(p.IDs))
		for _, id := range p.IDs {
			refs = append(refs, map[string]string{"id": id})
		}
		v = refs
	}
	return json.Marshal(map[string]interface{}{string(p.Kind): v})
}

// Properties maps property names to values.
type Properties map[string]Property

// Relations maps relation property names to target entity ids.
type Relations map[string][]string

// Merge returns the properties with relations added as relation values.
func (p Properties) Merge(rel Relations) Properties {
	out := make(Properties, len(p)+len(rel))
	for k, v := range p {
		out[k] = v
	}
	for k, ids := range rel {
		out[k] = RelationProperty(ids...)
	}
	return out
}

// Names returns property names in sorted order.
func (p Properties) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Entity is the subset of a page or database the sync engine inspects.
type Entity struct {
	ID             string
	Object         string // "page" or "database"
	Title          string
	URL            string
	Archived       bool
	ParentID       string
	LastEditedTime time.Time
}
