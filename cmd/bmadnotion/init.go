package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/project"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

type initOptions struct {
	project    string
	parentPage string
	sprintsDB  string
	tasksDB    string
	projectsDB string
	yes        bool
	force      bool
}

func (a *app) initCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:     "init",
		GroupID: "setup",
		Short:   "Create .bmadnotion.yaml for this project",
		Long: `Create .bmadnotion.yaml at the project root.

Artifact paths are read from _bmad/bmm/config.yaml when present. On a
terminal the Notion ids are asked for interactively unless --yes is set.
The state directory is added to .gitignore when the project is under
version control.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := project.DetectOrCwd(a.startDir())
			if err != nil {
				return err
			}
			path := root.ConfigPath()
			if a.configPath != "" {
				path = a.configPath
			}
			if _, err := os.Stat(path); err == nil && !opts.force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			paths, err := config.DiscoverBMADPaths(root.Dir)
			if err != nil {
				return err
			}

			if opts.project == "" {
				opts.project = filepath.Base(root.Dir)
			}
			if !opts.yes && a.isTerminal() {
				if err := a.promptInit(cmd, &opts); err != nil {
					return err
				}
			}

			cfg := config.DefaultConfigWithPaths(strings.TrimSpace(opts.project), paths)
			cfg.PageSync.ParentPageID = strings.TrimSpace(opts.parentPage)
			cfg.DatabaseSync.Sprints.DatabaseID = strings.TrimSpace(opts.sprintsDB)
			cfg.DatabaseSync.Tasks.DatabaseID = strings.TrimSpace(opts.tasksDB)
			cfg.DatabaseSync.Projects.DatabaseID = strings.TrimSpace(opts.projectsDB)
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := cfg.WriteFile(path); err != nil {
				return err
			}

			p := a.printer()
			p.Success("Created %s", path)
			if paths != (config.PathsConfig{}) {
				p.Info("Artifact paths read from %s", config.BMADConfigPath(root.Dir))
			}
			if added, err := root.EnsureIgnored(); err != nil {
				p.Warn("%v", err)
			} else if added {
				p.Info("Added %s/ to .gitignore", filepath.Base(root.StateDir()))
			}

			p.Info("")
			p.Info("Next steps:")
			p.Info("  export %s=<integration token>", cfg.Notion.TokenEnv)
			if err := cfg.ValidateFor(true, true); err != nil {
				p.Info("  fill in the Notion ids in %s", filepath.Base(path))
			}
			p.Info("  bmadnotion setup")
			p.Info("  bmadnotion sync --dry-run")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.project, "project", "", "Project name (default: directory name)")
	f.StringVar(&opts.parentPage, "parent-page", "", "Notion page id to create document pages under")
	f.StringVar(&opts.sprintsDB, "sprints-db", "", "Notion database id for epics")
	f.StringVar(&opts.tasksDB, "tasks-db", "", "Notion database id for stories")
	f.StringVar(&opts.projectsDB, "projects-db", "", "Notion database id for the project row (optional)")
	f.BoolVarP(&opts.yes, "yes", "y", false, "Do not prompt; use flags and defaults")
	f.BoolVar(&opts.force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func (a *app) promptInit(cmd *cobra.Command, opts *initOptions) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Value(&opts.project).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("project name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Parent page id").
				Description("Document pages are created under this page").
				Value(&opts.parentPage),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Sprints database id").
				Description("One row per epic").
				Value(&opts.sprintsDB),
			huh.NewInput().
				Title("Tasks database id").
				Description("One row per story").
				Value(&opts.tasksDB),
			huh.NewInput().
				Title("Projects database id").
				Description("Optional; leave empty to skip the project row").
				Value(&opts.projectsDB),
		),
	).WithInput(a.stdin).WithOutput(a.stdout)

	if err := form.RunWithContext(cmd.Context()); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("init cancelled")
		}
		return err
	}
	return nil
}
