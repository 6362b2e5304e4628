package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() err = %v, want ErrNotFound", err)
	}
}

func TestLoad_MinimalAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "project: acme\n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Project != "acme" {
		t.Errorf("Project = %q, want acme", cfg.Project)
	}
	if cfg.Notion.TokenEnv != "NOTION_TOKEN" {
		t.Errorf("TokenEnv = %q, want NOTION_TOKEN", cfg.Notion.TokenEnv)
	}
	if !cfg.PageSync.Enabled || !cfg.DatabaseSync.Enabled {
		t.Error("sync categories should be enabled by default")
	}
	if diff := cmp.Diff(DefaultPaths(), cfg.Paths); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultDocuments(), cfg.PageSync.Documents); diff != "" {
		t.Errorf("Documents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultTaskStatusMapping(), cfg.DatabaseSync.Tasks.StatusMapping); diff != "" {
		t.Errorf("task mapping mismatch (-want +got):\n%s", diff)
	}
	if cfg.DatabaseSync.Tasks.EpicProperty != "Sprint" {
		t.Errorf("EpicProperty = %q, want Sprint", cfg.DatabaseSync.Tasks.EpicProperty)
	}
	if got, want := cfg.SprintStatusPath(), filepath.Join(root, "_bmad-output", "implementation-artifacts", "sprint-status.yaml"); got != want {
		t.Errorf("SprintStatusPath() = %q, want %q", got, want)
	}
}

func TestLoad_FullFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `
project: acme
notion:
  token_env: ACME_NOTION
  workspace_page_id: ws-1
page_sync:
  enabled: false
  documents:
    - path: prd.md
      title: "Requirements for {project}"
database_sync:
  sprints:
    database_id: db-sprints
    status_mapping:
      backlog: Todo
      done: Shipped
  tasks:
    database_id: db-tasks
    epic_property: Epic
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PageSync.Enabled {
		t.Error("page sync should be disabled")
	}
	if len(cfg.PageSync.Documents) != 1 {
		t.Fatalf("Documents = %d, want 1", len(cfg.PageSync.Documents))
	}
	if got := cfg.PageSync.Documents[0].RenderTitle(cfg.Project); got != "Requirements for acme" {
		t.Errorf("RenderTitle() = %q", got)
	}
	want := map[string]string{"backlog": "Todo", "done": "Shipped"}
	if diff := cmp.Diff(want, cfg.DatabaseSync.Sprints.StatusMapping); diff != "" {
		t.Errorf("sprint mapping should replace defaults (-want +got):\n%s", diff)
	}
	if cfg.DatabaseSync.Tasks.EpicProperty != "Epic" {
		t.Errorf("EpicProperty = %q, want Epic", cfg.DatabaseSync.Tasks.EpicProperty)
	}
	if cfg.PageParentID() != "ws-1" {
		t.Errorf("PageParentID() = %q, want ws-1", cfg.PageParentID())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing project",
			content: "notion:\n  token_env: X\n",
			errMsg:  "project is required",
		},
		{
			name:    "unknown key",
			content: "project: acme\nbogus: 1\n",
			errMsg:  "bogus",
		},
		{
			name:    "malformed yaml",
			content: "project: [acme\n",
			errMsg:  "failed to read",
		},
		{
			name:    "duplicate document",
			content: "project: acme\npage_sync:\n  documents:\n    - {path: prd.md, title: A}\n    - {path: prd.md, title: B}\n",
			errMsg:  "duplicate path",
		},
		{
			name:    "document without title",
			content: "project: acme\npage_sync:\n  documents:\n    - {path: prd.md}\n",
			errMsg:  "title is required",
		},
		{
			name:    "empty status label",
			content: "project: acme\ndatabase_sync:\n  tasks:\n    status_mapping:\n      backlog: \"\"\n",
			errMsg:  "empty label",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, tt.content)

			_, err := Load(root)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "project: acme\n")
	t.Setenv("BMADNOTION_DATABASE_SYNC_SPRINTS_DATABASE_ID", "db-from-env")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DatabaseSync.Sprints.DatabaseID != "db-from-env" {
		t.Errorf("DatabaseID = %q, want db-from-env", cfg.DatabaseSync.Sprints.DatabaseID)
	}
}

func TestLoad_DiscoversBMADPaths(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "project: acme\n")

	bmad := BMADConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(bmad), 0755); err != nil {
		t.Fatal(err)
	}
	content := `output_folder: "{project-root}/out"
planning_artifacts: "{project-root}/out/plan"
implementation_artifacts: "{project-root}/out/impl"
`
	if err := os.WriteFile(bmad, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := PathsConfig{
		BmadOutput:              "out",
		PlanningArtifacts:       "out/plan",
		ImplementationArtifacts: "out/impl",
		EpicsDir:                "out/plan/epics",
		SprintStatus:            "out/impl/sprint-status.yaml",
	}
	if diff := cmp.Diff(want, cfg.Paths); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ExplicitPathsSkipDiscovery(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "project: acme\npaths:\n  bmad_output: custom\n")

	bmad := BMADConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(bmad), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bmad, []byte("output_folder: elsewhere\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.BmadOutput != "custom" {
		t.Errorf("BmadOutput = %q, want custom", cfg.Paths.BmadOutput)
	}
	if cfg.Paths.PlanningArtifacts != "custom/planning-artifacts" {
		t.Errorf("PlanningArtifacts = %q", cfg.Paths.PlanningArtifacts)
	}
}

func TestValidateFor(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		pages   bool
		db      bool
		wantErr bool
	}{
		{name: "pages without parent", pages: true, wantErr: true},
		{name: "pages with parent", mutate: func(c *Config) { c.PageSync.ParentPageID = "p" }, pages: true},
		{name: "pages via projects database", mutate: func(c *Config) { c.DatabaseSync.Projects.DatabaseID = "d" }, pages: true},
		{name: "pages disabled", mutate: func(c *Config) { c.PageSync.Enabled = false }, pages: true},
		{name: "db without ids", db: true, wantErr: true},
		{name: "db missing tasks", mutate: func(c *Config) { c.DatabaseSync.Sprints.DatabaseID = "s" }, db: true, wantErr: true},
		{
			name: "db complete",
			mutate: func(c *Config) {
				c.DatabaseSync.Sprints.DatabaseID = "s"
				c.DatabaseSync.Tasks.DatabaseID = "t"
			},
			db: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("acme")
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.ValidateFor(tt.pages, tt.db)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFor() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestToken(t *testing.T) {
	cfg := DefaultConfig("acme")
	cfg.Notion.TokenEnv = "BMADNOTION_TEST_TOKEN"

	t.Setenv("BMADNOTION_TEST_TOKEN", "")
	if _, err := cfg.Token(); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Token() err = %v, want ErrTokenNotFound", err)
	}

	t.Setenv("BMADNOTION_TEST_TOKEN", "secret")
	token, err := cfg.Token()
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if token != "secret" {
		t.Errorf("Token() = %q, want secret", token)
	}
}

func TestTokenFrom(t *testing.T) {
	cfg := DefaultConfig("acme")
	env := map[string]string{"NOTION_TOKEN": "from-map"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	token, err := cfg.TokenFrom(lookup)
	if err != nil || token != "from-map" {
		t.Errorf("TokenFrom() = %q, %v", token, err)
	}

	cfg.Notion.TokenEnv = "OTHER"
	if _, err := cfg.TokenFrom(lookup); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("TokenFrom() err = %v, want ErrTokenNotFound", err)
	}
}

func TestDefaultConfigWithPaths(t *testing.T) {
	cfg := DefaultConfigWithPaths("acme", PathsConfig{PlanningArtifacts: "docs"})

	want := PathsConfig{
		BmadOutput:              "_bmad-output",
		PlanningArtifacts:       "docs",
		ImplementationArtifacts: "_bmad-output/implementation-artifacts",
		EpicsDir:                "docs/epics",
		SprintStatus:            "_bmad-output/implementation-artifacts/sprint-status.yaml",
	}
	if diff := cmp.Diff(want, cfg.Paths); diff != "" {
		t.Errorf("Paths mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile_RoundTripsThroughLoad(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig("acme")
	cfg.PageSync.ParentPageID = "parent-1"

	if err := cfg.WriteFile(filepath.Join(root, FileName)); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	loaded.Root = ""
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}
