package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/logging"
	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/project"
	"github.com/bmad-tools/bmadnotion/internal/sync"
	"github.com/bmad-tools/bmadnotion/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// remote is what the commands need from Notion: the sync surface plus the
// schema check used by setup.
type remote interface {
	sync.Remote
	EnsureProperties(ctx context.Context, databaseID string, names []string) ([]string, error)
}

// app carries the process dependencies so commands can run in-process in
// tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// wd is the directory commands start from when --dir is not given.
	wd         string
	lookupEnv  func(string) (string, bool)
	newRemote  func(token string, logger *log.Logger) remote
	isTerminal func() bool

	// Persistent flags
	dir        string
	configPath string
	verbose    bool
	noColor    bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
		wd:        ".",
		lookupEnv: os.LookupEnv,
		newRemote: func(token string, logger *log.Logger) remote {
			c := notion.New(token)
			c.Logger = logger
			return c
		},
		isTerminal: func() bool {
			f, ok := stdin.(*os.File)
			return ok && term.IsTerminal(int(f.Fd()))
		},
	}
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return newApp(stdin, stdout, stderr).execute(ctx, args)
}

// exitError carries a non-zero exit code for a command that already
// reported its outcome.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return sync.ExitOK
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintf(a.stderr, "Error: %s\n", exit.msg)
		}
		return exit.code
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return sync.ExitFatal
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bmadnotion",
		Short: "Sync BMAD planning artifacts to Notion",
		Long: `bmadnotion pushes BMAD planning documents to Notion pages and the
sprint status manifest to Notion database rows.

Sync is incremental: a content fingerprint per artifact is kept in
.bmadnotion/sync.db, and only new or changed artifacts reach Notion.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.dir, "dir", "C", "", "Run as if started in this directory")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file (default <project>/.bmadnotion.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log sync details to stderr")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)

	root.AddCommand(
		a.initCmd(),
		a.setupCmd(),
		a.syncCmd(),
		a.statusCmd(),
		a.configCmd(),
		a.stateCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) printer() *ui.Printer {
	return ui.NewPrinter(a.stdout, a.noColor)
}

func (a *app) startDir() string {
	if a.dir != "" {
		return a.dir
	}
	return a.wd
}

// resolve makes a relative file argument relative to the start directory.
func (a *app) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.startDir(), path)
}

func (a *app) detect() (*project.Root, error) {
	return project.Detect(a.startDir())
}

// loadProject finds the project root and loads its configuration.
func (a *app) loadProject() (*project.Root, *config.Config, error) {
	root, err := a.detect()
	if err != nil {
		return nil, nil, err
	}

	var cfg *config.Config
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath, root.Dir)
	} else {
		cfg, err = config.Load(root.Dir)
	}
	if err != nil {
		return nil, nil, err
	}
	return root, cfg, nil
}

// connect builds the Notion client from the configured token variable.
func (a *app) connect(cfg *config.Config, logs *logging.Logger) (remote, error) {
	token, err := cfg.TokenFrom(a.lookupEnv)
	if err != nil {
		return nil, err
	}
	return a.newRemote(token, logs.Named("notion")), nil
}
