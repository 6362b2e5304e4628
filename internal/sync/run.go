package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/scanner"
	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Request describes one sync invocation.
type Request struct {
	Config *config.Config
	Store  Store
	// Remote may be nil when Options.DryRun is set.
	Remote Remote
	// FS defaults to the OS filesystem.
	FS afero.Fs

	Pages    bool
	Database bool
	Options  Options

	// RunID tags the run in logs; generated when empty.
	RunID string
}

// Run scans the project and syncs the requested categories: the project
// row first, then pages, then database rows.
//
// Scanning happens before any remote call, so configuration and manifest
// errors abort the run with nothing written. A failed page never stops the
// database category. The returned error is fatal; the report still
// describes the work done before it.
func Run(ctx context.Context, req Request) (*Report, error) {
	if req.Config == nil || req.Store == nil {
		return nil, errors.New("sync: config and store are required")
	}
	if req.Remote == nil && !req.Options.DryRun {
		return nil, errors.New("sync: remote is required unless dry run")
	}

	cfg := req.Config
	if err := cfg.ValidateFor(req.Pages, req.Database); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	report := &Report{RunID: runID, DryRun: req.Options.DryRun}

	sc := scanner.New(cfg, req.FS)

	var docs []*schema.Document
	if req.Pages {
		var err error
		if docs, err = sc.ConfiguredDocuments(); err != nil {
			return nil, fmt.Errorf("failed to scan documents: %w", err)
		}
	}

	var epics []*schema.Epic
	var stories []*schema.Story
	if req.Database {
		var err error
		if epics, stories, err = sc.ScanSprintStatus(); err != nil {
			return nil, err
		}
	}

	if !req.Pages && !req.Database {
		return report, nil
	}

	e := newEngine(req.Store, req.Remote, req.Options)
	e.logger.Printf("Run %s started (dry_run=%t force=%t)", runID, req.Options.DryRun, req.Options.Force)

	project, err := EnsureProject(ctx, cfg, req.Store, req.Remote, req.Options)
	if err != nil {
		return report, err
	}
	report.Project = project

	projectID := ""
	if project != nil {
		projectID = project.RemoteID
	}

	if req.Pages {
		parentID := projectID
		if parentID == "" {
			parentID = cfg.PageParentID()
		}
		res, err := NewPageEngine(req.Store, req.Remote, req.Options).Sync(ctx, docs, parentID)
		report.Pages = res
		if err != nil {
			return report, err
		}
	}

	if req.Database {
		res, err := NewDatabaseEngine(&cfg.DatabaseSync, req.Store, req.Remote, req.Options).Sync(ctx, epics, stories, projectID)
		if res != nil {
			report.Epics = res.Epics
			report.Stories = res.Stories
		}
		if err != nil {
			return report, err
		}
	}

	e.logger.Printf("Run %s finished: %d failures", runID, len(report.Failures()))
	return report, nil
}
