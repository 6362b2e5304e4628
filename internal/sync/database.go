package sync

import (
	"context"
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/markdown"
	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// placeholderPrefix marks remote ids invented during dry runs.
const placeholderPrefix = "dry-run:"

// DatabaseEngine syncs epics to the sprints database and stories to the
// tasks database.
type DatabaseEngine struct {
	engine
	cfg *config.DatabaseSyncConfig
}

// NewDatabaseEngine returns a database engine. Remote may be nil for dry runs.
func NewDatabaseEngine(cfg *config.DatabaseSyncConfig, st Store, remote Remote, opts Options) *DatabaseEngine {
	return &DatabaseEngine{engine: newEngine(st, remote, opts), cfg: cfg}
}

// DatabaseResult holds the epic and story outcomes of one run.
type DatabaseResult struct {
	Epics   *CategoryResult
	Stories *CategoryResult
}

// rowSpec is what an epic or story contributes to a row write.
type rowSpec struct {
	artifact   schema.Artifact
	title      string
	status     string
	databaseID string
	keyProp    string
	nameProp   string
	statusProp string
	mapping    map[string]string
	relations  notion.Relations
	warning    string
	body       *string
	// unlinked is set when a story row is written without its epic relation.
	unlinked bool
}

// Sync handles all epics, then all stories. ProjectID, when set, is linked
// through the configured project relation properties.
func (e *DatabaseEngine) Sync(ctx context.Context, epics []*schema.Epic, stories []*schema.Story, projectID string) (*DatabaseResult, error) {
	out := &DatabaseResult{
		Epics:   newResult(schema.CategoryEpic, e.opts.DryRun),
		Stories: newResult(schema.CategoryStory, e.opts.DryRun),
	}

	// Remote ids of epics that were synced or skipped in this run.
	epicIDs := make(map[string]string, len(epics))

	for _, epic := range epics {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sc := &e.cfg.Sprints
		row := rowSpec{
			artifact:   epic,
			title:      epic.Title,
			status:     epic.Status,
			databaseID: sc.DatabaseID,
			keyProp:    sc.KeyProperty,
			nameProp:   sc.NameProperty,
			statusProp: sc.StatusProperty,
			mapping:    sc.StatusMapping,
			relations:  projectRelation(sc.ProjectProperty, projectID),
		}
		a, err := e.syncRow(ctx, row)
		if err != nil {
			return out, err
		}
		if a.Err == nil && a.RemoteID != "" {
			epicIDs[epic.ID] = a.RemoteID
		}
		e.finish(out.Epics, a)
	}

	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tc := &e.cfg.Tasks
		row := rowSpec{
			artifact:   story,
			title:      story.Title,
			status:     story.Status,
			databaseID: tc.DatabaseID,
			keyProp:    tc.KeyProperty,
			nameProp:   tc.NameProperty,
			statusProp: tc.StatusProperty,
			mapping:    tc.StatusMapping,
			relations:  projectRelation(tc.ProjectProperty, projectID),
			body:       story.Body,
		}
		if id, ok := epicIDs[story.EpicKey]; ok {
			row.relations[tc.EpicProperty] = []string{id}
		} else {
			row.warning = fmt.Sprintf("story %s: epic %s was not synced, relation omitted", story.ID, story.EpicKey)
			row.unlinked = true
		}
		a, err := e.syncRow(ctx, row)
		if err != nil {
			return out, err
		}
		e.finish(out.Stories, a)
	}

	for _, cr := range []*CategoryResult{out.Epics, out.Stories} {
		seen := make(map[string]bool)
		for _, a := range cr.Actions {
			seen[a.Key] = true
		}
		stored, err := e.store.ListDb(ctx, cr.Category)
		if err != nil {
			return out, fmt.Errorf("failed to list %s state: %w", cr.Category, err)
		}
		keys := make([]string, len(stored))
		for i, st := range stored {
			keys[i] = st.LocalKey
		}
		cr.Orphans = orphans(keys, seen)
	}

	return out, nil
}

func projectRelation(property, projectID string) notion.Relations {
	rel := notion.Relations{}
	if property != "" && projectID != "" {
		rel[property] = []string{projectID}
	}
	return rel
}

// syncRow detects and applies one row. Only store failures are returned.
func (e *DatabaseEngine) syncRow(ctx context.Context, row rowSpec) (Action, error) {
	art := row.artifact
	prior, err := e.priorDb(ctx, art.Key(), art.Category())
	if err != nil {
		return Action{}, err
	}

	d := Detect(art, prior.View(), e.opts.Force)
	a := Action{
		Key:      art.Key(),
		Category: art.Category(),
		Title:    row.title,
		Verdict:  d.Verdict,
		RemoteID: d.RemoteID,
	}
	if d.Verdict == Skip {
		return a, nil
	}

	label, ok := row.mapping[row.status]
	if !ok {
		a.Err = fmt.Errorf("%w %q", ErrUnmappedStatus, row.status)
		return a, nil
	}
	a.Warning = row.warning

	if e.opts.DryRun {
		if a.RemoteID == "" {
			a.RemoteID = placeholderPrefix + art.Key()
		}
		return a, nil
	}

	props := notion.Properties{
		row.nameProp:   notion.TitleProperty(row.title),
		row.statusProp: notion.StatusProperty(label),
		row.keyProp:    notion.RichTextProperty(art.Key()),
	}

	var body []notion.Block
	if row.body != nil {
		body = markdown.ToBlocks(*row.body)
	}
	fingerprint := d.Fingerprint

	switch d.Verdict {
	case Create:
		id, err := e.remote.CreateDatabaseRow(ctx, row.databaseID, props, row.relations)
		if err == nil && id == "" {
			err = ErrNoRemoteID
		}
		if err != nil {
			a.Err = err
			return a, nil
		}
		a.RemoteID = id
		if len(body) > 0 {
			if err := e.remote.AppendBlocks(ctx, id, body); err != nil {
				a.Err = contentFailed(err)
			}
		}

	case Update:
		if err := e.remote.UpdateDatabaseRow(ctx, d.RemoteID, props, row.relations); err != nil {
			a.Err = remoteGone("row", d.RemoteID, err)
			return a, nil
		}
		if row.body != nil {
			if err := e.remote.UpdatePage(ctx, d.RemoteID, body); err != nil {
				a.Err = contentFailed(err)
			}
		}
	}

	if a.Err != nil {
		a.Partial = true
		fingerprint = schema.IncompleteFingerprint
	}
	// A row missing its epic link is rewritten once the epic has an id.
	if row.unlinked {
		fingerprint = schema.IncompleteFingerprint
	}

	st := &schema.DbSyncState{
		LocalKey:        art.Key(),
		Category:        art.Category(),
		RemoteID:        a.RemoteID,
		Fingerprint:     fingerprint,
		LastSyncedMTime: art.ModTime(),
		SyncedAt:        e.now(),
	}
	if err := e.store.PutDb(ctx, st); err != nil {
		return a, fmt.Errorf("failed to save sync state for %s %s: %w", art.Category(), art.Key(), err)
	}
	return a, nil
}
