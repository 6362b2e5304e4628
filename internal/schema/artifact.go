package schema

import (
	"fmt"
	"strings"
	"time"
)

// Category distinguishes artifact identity-key spaces.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryEpic     Category = "epic"
	CategoryStory    Category = "story"
	// CategoryProject tags the cached project row; it has no local artifact.
	CategoryProject Category = "project"
)

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDocument, CategoryEpic, CategoryStory, CategoryProject:
		return true
	}
	return false
}

// Artifact is the shape shared by Document, Epic and Story.
type Artifact interface {
	// Key is unique within Category for one sync session.
	Key() string
	Category() Category
	// Content returns the material rendered remotely and whether it is present.
	Content() (string, bool)
	// ModTime is advisory; zero when the artifact has no backing file.
	ModTime() time.Time

	artifact()
}

// Document is a planning artifact synced to a standalone page.
type Document struct {
	// Path is relative to the planning-artifacts directory, e.g. "prd.md".
	Path  string
	Title string
	Body  *string
	MTime time.Time
}

func (d *Document) Key() string        { return d.Path }
func (d *Document) Category() Category { return CategoryDocument }
func (d *Document) ModTime() time.Time { return d.MTime }
func (d *Document) artifact()          {}

func (d *Document) Content() (string, bool) {
	if d.Body == nil {
		return "", false
	}
	return *d.Body, true
}

// Epic is an epic entry of the sprint status manifest.
type Epic struct {
	ID       string // epic-<n>
	Title    string
	Status   string
	FilePath string // empty when no epic file exists
	Body     *string
	MTime    time.Time
}

func (e *Epic) Key() string        { return e.ID }
func (e *Epic) Category() Category { return CategoryEpic }
func (e *Epic) ModTime() time.Time { return e.MTime }
func (e *Epic) artifact()          {}

// Content renders the epic record. It is always present.
func (e *Epic) Content() (string, bool) {
	return renderRecord(e.ID, e.Title, e.Status, "", e.Body), true
}

// Story is a story entry of the sprint status manifest.
type Story struct {
	ID string // <epic>-<n>-<slug>
	// EpicKey names the owning epic. It is a lookup key, not an owning pointer.
	EpicKey  string
	Title    string
	Status   string
	FilePath string
	Body     *string
	MTime    time.Time
}

func (s *Story) Key() string        { return s.ID }
func (s *Story) Category() Category { return CategoryStory }
func (s *Story) ModTime() time.Time { return s.MTime }
func (s *Story) artifact()          {}

// Content renders the story record. It is always present.
func (s *Story) Content() (string, bool) {
	return renderRecord(s.ID, s.Title, s.Status, s.EpicKey, s.Body), true
}

// HasBody reports whether the story has a local file to append as page content.
func (s *Story) HasBody() bool { return s.Body != nil }

func renderRecord(key, title, status, epicKey string, body *string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "key: %s\ntitle: %s\nstatus: %s\n", key, title, status)
	if epicKey != "" {
		fmt.Fprintf(&b, "epic: %s\n", epicKey)
	}
	if body != nil {
		b.WriteString("---\n")
		b.WriteString(*body)
	}
	return b.String()
}

// ProjectKey returns the db state key of the project row for name.
func ProjectKey(name string) string {
	return "project:" + name
}
