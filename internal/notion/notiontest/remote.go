// Package notiontest provides an in-memory Notion workspace for tests.
package notiontest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/google/uuid"
)

// Method names recorded in Call.Method.
const (
	MethodCreatePage        = "CreatePage"
	MethodUpdatePage        = "UpdatePage"
	MethodCreateDatabaseRow = "CreateDatabaseRow"
	MethodUpdateDatabaseRow = "UpdateDatabaseRow"
	MethodAppendBlocks      = "AppendBlocks"
	MethodGetEntity         = "GetEntity"
	MethodFindDatabaseRow   = "FindDatabaseRow"
	MethodEnsureProperties  = "EnsureProperties"
)

// Call is one recorded request.
type Call struct {
	Method string
	// Target is the parent or database id for creates and the entity id otherwise.
	Target    string
	Title     string
	Blocks    []notion.Block
	Props     notion.Properties
	Relations notion.Relations
}

// Page is a stored page or database row.
type Page struct {
	ID        string
	ParentID  string
	Row       bool
	Title     string
	Blocks    []notion.Block
	Props     notion.Properties
	Relations notion.Relations
	Archived  bool
}

type failure struct {
	method  string
	subject string
	err     error
}

// Remote is a fake Notion workspace. The zero value is not usable; call New.
type Remote struct {
	mu        sync.Mutex
	calls     []Call
	pages     map[string]*Page
	databases map[string]map[string]bool
	failures  []failure
	noID      map[string]bool
}

// New returns an empty workspace.
func New() *Remote {
	return &Remote{
		pages:     make(map[string]*Page),
		databases: make(map[string]map[string]bool),
	}
}

// FailOn makes every call of method fail with err. Subject narrows the
// failure to one title (creates) or entity id (everything else); empty
// matches all.
func (r *Remote) FailOn(method, subject string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failure{method: method, subject: subject, err: err})
}

// ReturnNoID makes creates of method succeed without returning an id.
func (r *Remote) ReturnNoID(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.noID == nil {
		r.noID = make(map[string]bool)
	}
	r.noID[method] = true
}

// ClearFailures removes all injected failures.
func (r *Remote) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = nil
}

// Calls returns a copy of the recorded calls.
func (r *Remote) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Methods returns the recorded method names in call order.
func (r *Remote) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Method
	}
	return out
}

// Reset forgets recorded calls but keeps stored pages.
func (r *Remote) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Page returns a copy of a stored page.
func (r *Remote) Page(id string) (Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pages[id]
	if !ok {
		return Page{}, false
	}
	return *p, true
}

// Rows returns the rows of a database ordered by title.
func (r *Remote) Rows(databaseID string) []Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Page
	for _, p := range r.pages {
		if p.Row && p.ParentID == databaseID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// Len returns the number of stored pages and rows.
func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// Archive marks an entity as archived, as if removed in the Notion UI.
func (r *Remote) Archive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pages[id]; ok {
		p.Archived = true
	}
}

// Delete removes an entity entirely.
func (r *Remote) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pages, id)
}

// AddDatabase registers a database with the given property names.
func (r *Remote) AddDatabase(id string, properties ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	props := make(map[string]bool, len(properties))
	for _, p := range properties {
		props[p] = true
	}
	r.databases[id] = props
}

// AddRow stores a row without recording a call and returns its id.
func (r *Remote) AddRow(databaseID string, props notion.Properties) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &Page{ID: uuid.NewString(), ParentID: databaseID, Row: true, Title: titleOf(props), Props: props}
	r.pages[p.ID] = p
	return p.ID
}

func titleOf(props notion.Properties) string {
	for _, name := range props.Names() {
		if props[name].Kind == notion.KindTitle {
			return props[name].Text
		}
	}
	return ""
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", notion.ErrNotFound, id)
}

// record logs the call and returns an injected failure, if any. Callers
// hold r.mu.
func (r *Remote) record(c Call, subject string) error {
	r.calls = append(r.calls, c)
	for _, f := range r.failures {
		if f.method == c.Method && (f.subject == "" || f.subject == subject) {
			return f.err
		}
	}
	return nil
}

func (r *Remote) live(id string) (*Page, error) {
	p, ok := r.pages[id]
	if !ok || p.Archived {
		return nil, notFound(id)
	}
	return p, nil
}

// CreatePage stores a new child page.
func (r *Remote) CreatePage(ctx context.Context, parentID, title string, blocks []notion.Block) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodCreatePage, Target: parentID, Title: title, Blocks: blocks}, title); err != nil {
		return "", err
	}
	if r.noID[MethodCreatePage] {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := &Page{ID: uuid.NewString(), ParentID: parentID, Title: title, Blocks: append([]notion.Block(nil), blocks...)}
	r.pages[p.ID] = p
	return p.ID, nil
}

// UpdatePage replaces a page's content.
func (r *Remote) UpdatePage(ctx context.Context, id string, blocks []notion.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodUpdatePage, Target: id, Blocks: blocks}, id); err != nil {
		return err
	}
	p, err := r.live(id)
	if err != nil {
		return err
	}
	p.Blocks = append([]notion.Block(nil), blocks...)
	return nil
}

// CreateDatabaseRow stores a new row.
func (r *Remote) CreateDatabaseRow(ctx context.Context, databaseID string, props notion.Properties, rel notion.Relations) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	title := titleOf(props)
	if err := r.record(Call{Method: MethodCreateDatabaseRow, Target: databaseID, Title: title, Props: props, Relations: rel}, title); err != nil {
		return "", err
	}
	if r.noID[MethodCreateDatabaseRow] {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := &Page{ID: uuid.NewString(), ParentID: databaseID, Row: true, Title: title, Props: props, Relations: rel}
	r.pages[p.ID] = p
	return p.ID, nil
}

// UpdateDatabaseRow overwrites a row's properties and relations.
func (r *Remote) UpdateDatabaseRow(ctx context.Context, id string, props notion.Properties, rel notion.Relations) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodUpdateDatabaseRow, Target: id, Title: titleOf(props), Props: props, Relations: rel}, id); err != nil {
		return err
	}
	p, err := r.live(id)
	if err != nil {
		return err
	}
	p.Title = titleOf(props)
	p.Props = props
	p.Relations = rel
	return nil
}

// AppendBlocks adds blocks to the end of a page.
func (r *Remote) AppendBlocks(ctx context.Context, id string, blocks []notion.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodAppendBlocks, Target: id, Blocks: blocks}, id); err != nil {
		return err
	}
	p, err := r.live(id)
	if err != nil {
		return err
	}
	p.Blocks = append(p.Blocks, blocks...)
	return nil
}

// GetEntity returns a page, row or database.
func (r *Remote) GetEntity(ctx context.Context, id string) (*notion.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodGetEntity, Target: id}, id); err != nil {
		return nil, err
	}
	if _, ok := r.databases[id]; ok {
		return &notion.Entity{ID: id, Object: "database"}, nil
	}
	p, ok := r.pages[id]
	if !ok {
		return nil, notFound(id)
	}
	return &notion.Entity{ID: p.ID, Object: "page", Title: p.Title, ParentID: p.ParentID, Archived: p.Archived}, nil
}

// FindDatabaseRow returns the first live row whose property text equals value.
func (r *Remote) FindDatabaseRow(ctx context.Context, databaseID, property, value string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodFindDatabaseRow, Target: databaseID, Title: value}, databaseID); err != nil {
		return "", false, err
	}
	ids := make([]string, 0, len(r.pages))
	for id := range r.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := r.pages[id]
		if !p.Row || p.Archived || p.ParentID != databaseID {
			continue
		}
		if prop, ok := p.Props[property]; ok && prop.Text == value {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

// EnsureProperties adds missing property names to a registered database.
func (r *Remote) EnsureProperties(ctx context.Context, databaseID string, names []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Method: MethodEnsureProperties, Target: databaseID}, databaseID); err != nil {
		return nil, err
	}
	props, ok := r.databases[databaseID]
	if !ok {
		return nil, notFound(databaseID)
	}
	var added []string
	for _, name := range names {
		if name == "" || props[name] {
			continue
		}
		props[name] = true
		added = append(added, name)
	}
	return added, nil
}
