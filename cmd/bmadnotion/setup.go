package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/logging"
	"github.com/bmad-tools/bmadnotion/internal/ui"
	"github.com/spf13/cobra"
)

// setupTarget is one database whose key property setup checks.
type setupTarget struct {
	label      string
	databaseID string
	property   string
}

func (a *app) setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "setup",
		GroupID: "setup",
		Short:   "Check Notion access and add the key properties",
		Long: `Check that the token can reach the configured parent page and databases,
and add the rich text key properties sync uses to find its rows
(BMADProject, BMADEpic and BMADStory by default) where missing.

Existing properties are never changed. Running setup twice is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := a.loadProject()
			if err != nil {
				return err
			}

			logs := logging.New(logging.Options{Dir: root.StateDir(), Verbose: a.verbose, Stderr: a.stderr})
			defer logs.Close()

			r, err := a.connect(cfg, logs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p := a.printer()
			problems := 0

			if me, ok := r.(interface {
				Me(ctx context.Context) (string, error)
			}); ok {
				name, err := me.Me(ctx)
				if err != nil {
					return fmt.Errorf("token rejected: %w", err)
				}
				p.Info("Connected as %s", name)
			}

			if id := cfg.PageParentID(); id != "" && cfg.PageSync.Enabled {
				entity, err := r.GetEntity(ctx, id)
				switch {
				case err != nil:
					p.Error("Parent page %s: %v", id, err)
					problems++
				case entity.Archived:
					p.Error("Parent page %s is archived", id)
					problems++
				default:
					p.Success("Parent page %s", describe(entity.Title, id))
				}
			}

			var targets []setupTarget
			db := cfg.DatabaseSync
			if db.Projects.DatabaseID != "" {
				targets = append(targets, setupTarget{"Projects", db.Projects.DatabaseID, db.Projects.KeyProperty})
			}
			if db.Enabled {
				targets = append(targets,
					setupTarget{"Sprints", db.Sprints.DatabaseID, db.Sprints.KeyProperty},
					setupTarget{"Tasks", db.Tasks.DatabaseID, db.Tasks.KeyProperty},
				)
			}
			for _, t := range targets {
				if !a.setupDatabase(ctx, p, r, t) {
					problems++
				}
			}

			if problems > 0 {
				return &exitError{code: 1, msg: fmt.Sprintf("setup found %d %s", problems, pluralize(problems, "problem"))}
			}
			return nil
		},
	}
}

func (a *app) setupDatabase(ctx context.Context, p *ui.Printer, r remote, t setupTarget) bool {
	if t.databaseID == "" {
		p.Error("%s database: no id configured", t.label)
		return false
	}

	entity, err := r.GetEntity(ctx, t.databaseID)
	if err != nil {
		p.Error("%s database %s: %v", t.label, t.databaseID, err)
		return false
	}
	if entity.Object != "database" {
		p.Error("%s database %s is a %s, not a database", t.label, t.databaseID, entity.Object)
		return false
	}

	added, err := r.EnsureProperties(ctx, t.databaseID, []string{t.property})
	if err != nil {
		p.Error("%s database %s: %v", t.label, t.databaseID, err)
		return false
	}
	name := describe(entity.Title, t.databaseID)
	if len(added) > 0 {
		p.Success("%s database %s: added %s", t.label, name, strings.Join(added, ", "))
		return true
	}
	p.Success("%s database %s: ok", t.label, name)
	return true
}

func describe(title, id string) string {
	if title == "" {
		return id
	}
	return fmt.Sprintf("%q (%s)", title, id)
}
