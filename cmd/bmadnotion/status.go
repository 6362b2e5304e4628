package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/bmad-tools/bmadnotion/internal/store"
	"github.com/bmad-tools/bmadnotion/internal/ui"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var (
		since    string
		category string
	)

	cmd := &cobra.Command{
		Use:     "status",
		GroupID: "sync",
		Short:   "Show what has been synced",
		Long: `Show the project, the state store and every synced artifact.

--since accepts a date (2026-03-01), an RFC 3339 time, a duration (36h)
or a phrase such as "yesterday" or "2 days ago".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := a.loadProject()
			if err != nil {
				return err
			}

			var cutoff time.Time
			if since != "" {
				if cutoff, err = parseSince(since, time.Now()); err != nil {
					return err
				}
			}
			var only schema.Category
			if category != "" {
				only = schema.Category(category)
				if !only.IsValid() {
					return fmt.Errorf("unknown category %q (want document, epic, story or project)", category)
				}
			}

			ctx := cmd.Context()
			st, err := store.OpenReadOnlyContext(ctx, root.StorePath())
			if err != nil {
				return err
			}
			defer st.Close()

			p := a.printer()
			p.Title("bmadnotion status")
			p.Info("Project: %s", cfg.Project)
			p.Info("Root:    %s", root.Dir)
			if _, err := os.Stat(root.StorePath()); errors.Is(err, os.ErrNotExist) {
				p.Info("Store:   %s (not created yet)", root.StorePath())
			} else {
				version, err := st.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				p.Info("Store:   %s (schema %s)", root.StorePath(), version)
			}
			p.Info("Pages:   %s", enabled(cfg.PageSync.Enabled))
			p.Info("Rows:    %s", enabled(cfg.DatabaseSync.Enabled))
			p.Info("")

			rows, err := stateRows(cmd, st, only, cutoff)
			if err != nil {
				return err
			}
			p.States(rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only show artifacts synced after this time")
	cmd.Flags().StringVar(&category, "category", "", "Only show one category (document, epic, story, project)")
	return cmd
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func stateRows(cmd *cobra.Command, st *store.Store, only schema.Category, cutoff time.Time) ([]ui.StateRow, error) {
	ctx := cmd.Context()
	keep := func(c schema.Category, syncedAt time.Time) bool {
		if only != "" && c != only {
			return false
		}
		return cutoff.IsZero() || !syncedAt.Before(cutoff)
	}

	var rows []ui.StateRow
	pages, err := st.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range pages {
		if !keep(schema.CategoryDocument, s.SyncedAt) {
			continue
		}
		rows = append(rows, ui.StateRow{
			Category:   schema.CategoryDocument,
			Key:        s.LocalPath,
			RemoteID:   s.RemoteID,
			SyncedAt:   s.SyncedAt,
			Incomplete: s.Fingerprint == schema.IncompleteFingerprint,
		})
	}

	dbs, err := st.ListDb(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, s := range dbs {
		if !keep(s.Category, s.SyncedAt) {
			continue
		}
		rows = append(rows, ui.StateRow{
			Category:   s.Category,
			Key:        s.LocalKey,
			RemoteID:   s.RemoteID,
			SyncedAt:   s.SyncedAt,
			Incomplete: s.Fingerprint == schema.IncompleteFingerprint,
		})
	}
	return rows, nil
}

// parseSince turns a --since value into a cutoff time relative to now.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a date, duration or phrase", s)
	}
	return r.Time, nil
}
