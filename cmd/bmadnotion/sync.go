package main

import (
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/logging"
	"github.com/bmad-tools/bmadnotion/internal/store"
	"github.com/bmad-tools/bmadnotion/internal/sync"
	"github.com/spf13/cobra"
)

func (a *app) syncCmd() *cobra.Command {
	var (
		dryRun bool
		force  bool
		docs   []string
	)

	cmd := &cobra.Command{
		Use:       "sync [pages|db]",
		GroupID:   "sync",
		Short:     "Sync changed artifacts to Notion",
		ValidArgs: []string{"pages", "db"},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		Long: `Sync planning documents and sprint status to Notion.

Without an argument every enabled category is synced: the project row,
then document pages, then epic and story rows. "pages" or "db" limits
the run to one category.

Only artifacts whose content changed since the last sync are sent.
Remote pages are never deleted; artifacts that disappeared locally are
listed as orphans.

Exit status is 0 when everything synced, 2 when some artifacts failed
and 1 when the run could not start.

Examples:
  # Preview what would change
  bmadnotion sync --dry-run

  # Re-send every planning document
  bmadnotion sync pages --force

  # Sync a single document
  bmadnotion sync pages --doc prd.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := a.loadProject()
			if err != nil {
				return err
			}

			pages, db := cfg.PageSync.Enabled, cfg.DatabaseSync.Enabled
			if len(args) == 1 {
				switch args[0] {
				case "pages":
					if !pages {
						return fmt.Errorf("page sync is disabled in %s", root.ConfigPath())
					}
					db = false
				case "db":
					if !db {
						return fmt.Errorf("database sync is disabled in %s", root.ConfigPath())
					}
					pages = false
				}
			}
			if len(docs) > 0 && !pages {
				return fmt.Errorf("--doc only applies to page sync")
			}

			ctx := cmd.Context()

			logOpts := logging.Options{Verbose: a.verbose, Stderr: a.stderr}
			if !dryRun {
				logOpts.Dir = root.StateDir()
			}
			logs := logging.New(logOpts)
			defer logs.Close()

			var st *store.Store
			if dryRun {
				st, err = store.OpenReadOnlyContext(ctx, root.StorePath())
			} else {
				st, err = store.OpenContext(ctx, root.StorePath())
			}
			if err != nil {
				return err
			}
			defer st.Close()

			var r remote
			if !dryRun {
				if r, err = a.connect(cfg, logs); err != nil {
					return err
				}
			}

			report, err := sync.Run(ctx, sync.Request{
				Config:   cfg,
				Store:    st,
				Remote:   r,
				Pages:    pages,
				Database: db,
				Options: sync.Options{
					DryRun: dryRun,
					Force:  force,
					Only:   docs,
					Logger: logs.Named("sync"),
				},
				RunID: logs.RunID,
			})
			if report != nil {
				a.printer().Report(report)
			}
			if err != nil {
				return err
			}

			if code := report.ExitCode(); code != sync.ExitOK {
				n := len(report.Failures())
				return &exitError{code: code, msg: fmt.Sprintf("%d %s failed to sync", n, pluralize(n, "artifact"))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would change without calling Notion or writing state")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Sync every artifact even when unchanged")
	cmd.Flags().StringArrayVar(&docs, "doc", nil, "Only sync this planning document (repeatable)")
	return cmd
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
