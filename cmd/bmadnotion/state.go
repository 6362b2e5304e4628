package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/bmad-tools/bmadnotion/internal/store"
	"github.com/spf13/cobra"
)

func (a *app) stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "state",
		GroupID: "maint",
		Short:   "Manage the local sync state",
		Long: `Manage .bmadnotion/sync.db, the record of what was synced and to which
Notion page or row.

None of these commands call Notion.`,
	}
	cmd.AddCommand(a.stateExportCmd(), a.stateImportCmd(), a.stateForgetCmd())
	return cmd
}

func (a *app) stateExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write all sync state as JSONL",
		Long: `Write every sync state record as one JSON object per line, to file or
stdout. Use it to carry sync state to another clone of the project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.detect()
			if err != nil {
				return err
			}
			st, err := store.OpenReadOnlyContext(cmd.Context(), root.StorePath())
			if err != nil {
				return err
			}
			defer st.Close()

			var w io.Writer = a.stdout
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Create(a.resolve(args[0]))
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[0], err)
				}
				defer f.Close()
				w = f
			}

			n, err := st.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			if w != a.stdout {
				a.printer().Success("Exported %d %s to %s", n, pluralize(n, "record"), args[0])
			}
			return nil
		},
	}
}

func (a *app) stateImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load sync state written by export",
		Long: `Upsert the records of a state export. Existing records with the same
key are overwritten; the import is all or nothing. Use "-" for stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.detect()
			if err != nil {
				return err
			}

			var r io.Reader = a.stdin
			if args[0] != "-" {
				f, err := os.Open(a.resolve(args[0]))
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			st, err := store.OpenContext(cmd.Context(), root.StorePath())
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			a.printer().Success("Imported %d page %s and %d row %s",
				res.Pages, pluralize(res.Pages, "state"), res.Rows, pluralize(res.Rows, "state"))
			return nil
		},
	}
}

func (a *app) stateForgetCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "forget <key>",
		Short: "Drop the sync state of one artifact",
		Long: `Drop the sync state of one artifact so the next sync creates it anew.
The Notion page or row is left untouched.

The category is inferred from the key when not given: "*.md" is a
document, "epic-*" an epic, "project:*" the project row, anything else
a story.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			c := schema.Category(category)
			if c == "" {
				c = inferCategory(key)
			}
			if !c.IsValid() {
				return fmt.Errorf("unknown category %q (want document, epic, story or project)", category)
			}

			root, err := a.detect()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := store.OpenContext(ctx, root.StorePath())
			if err != nil {
				return err
			}
			defer st.Close()

			var remoteID string
			if c == schema.CategoryDocument {
				prior, err := st.GetPage(ctx, key)
				if err != nil {
					return forgetErr(key, c, err)
				}
				remoteID = prior.RemoteID
				if err := st.DeletePage(ctx, key); err != nil {
					return err
				}
			} else {
				prior, err := st.GetDb(ctx, key, c)
				if err != nil {
					return forgetErr(key, c, err)
				}
				remoteID = prior.RemoteID
				if err := st.DeleteDb(ctx, key, c); err != nil {
					return err
				}
			}

			a.printer().Success("Forgot %s %s (remote %s left unchanged)", c, key, remoteID)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Artifact category: document, epic, story or project")
	return cmd
}

func forgetErr(key string, c schema.Category, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no sync state for %s %s", c, key)
	}
	return err
}

func inferCategory(key string) schema.Category {
	switch {
	case strings.HasSuffix(key, ".md"):
		return schema.CategoryDocument
	case strings.HasPrefix(key, "project:"):
		return schema.CategoryProject
	case strings.HasPrefix(key, "epic-"):
		return schema.CategoryEpic
	default:
		return schema.CategoryStory
	}
}
