package sync

import (
	"context"
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// EnsureProject resolves the project row in the projects database, creating
// it if needed. It returns nil when no projects database is configured.
//
// The cached id in the store is trusted without a remote call. Otherwise
// the row is looked up by its key property before one is created. Dry runs
// never call the remote; an unknown row is reported as a placeholder.
func EnsureProject(ctx context.Context, cfg *config.Config, st Store, remote Remote, opts Options) (*ProjectResult, error) {
	pc := cfg.DatabaseSync.Projects
	if pc.DatabaseID == "" {
		return nil, nil
	}

	e := newEngine(st, remote, opts)
	key := schema.ProjectKey(cfg.Project)
	res := &ProjectResult{Key: key, Name: cfg.Project, Verdict: Skip}

	prior, err := e.priorDb(ctx, key, schema.CategoryProject)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		res.RemoteID = prior.RemoteID
		return res, nil
	}

	if opts.DryRun {
		res.Verdict = Create
		res.Placeholder = true
		res.RemoteID = placeholderPrefix + key
		return res, nil
	}

	id, found, err := remote.FindDatabaseRow(ctx, pc.DatabaseID, pc.KeyProperty, cfg.Project)
	if err != nil {
		res.Err = fmt.Errorf("failed to look up project %s: %w", cfg.Project, err)
		e.logger.Printf("WARNING: %v", res.Err)
		return res, nil
	}

	if found {
		res.Found = true
	} else {
		props := notion.Properties{
			pc.NameProperty: notion.TitleProperty(cfg.Project),
			pc.KeyProperty:  notion.RichTextProperty(cfg.Project),
		}
		id, err = remote.CreateDatabaseRow(ctx, pc.DatabaseID, props, nil)
		if err != nil {
			res.Err = fmt.Errorf("failed to create project %s: %w", cfg.Project, err)
			e.logger.Printf("WARNING: %v", res.Err)
			return res, nil
		}
		res.Verdict = Create
	}
	res.RemoteID = id

	state := &schema.DbSyncState{
		LocalKey: key,
		Category: schema.CategoryProject,
		RemoteID: id,
		SyncedAt: e.now(),
	}
	if err := st.PutDb(ctx, state); err != nil {
		return res, fmt.Errorf("failed to save project state: %w", err)
	}
	e.logger.Printf("Project %s -> %s (%s)", cfg.Project, id, res.Verdict)
	return res, nil
}
