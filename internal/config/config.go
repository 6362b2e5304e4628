// Package config loads and validates the .bmadnotion.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the project configuration file, looked up at the project root.
const FileName = ".bmadnotion.yaml"

var (
	// ErrNotFound is returned when the project has no configuration file.
	ErrNotFound = errors.New("configuration file not found")

	// ErrInvalid wraps every parse and validation failure.
	ErrInvalid = errors.New("invalid configuration")

	// ErrTokenNotFound is returned when the Notion token variable is unset.
	ErrTokenNotFound = errors.New("notion token not found")
)

// Config is the full project configuration.
type Config struct {
	Project      string             `mapstructure:"project" yaml:"project" toml:"project" json:"project"`
	Notion       NotionConfig       `mapstructure:"notion" yaml:"notion" toml:"notion" json:"notion"`
	Paths        PathsConfig        `mapstructure:"paths" yaml:"paths" toml:"paths" json:"paths"`
	PageSync     PageSyncConfig     `mapstructure:"page_sync" yaml:"page_sync" toml:"page_sync" json:"page_sync"`
	DatabaseSync DatabaseSyncConfig `mapstructure:"database_sync" yaml:"database_sync" toml:"database_sync" json:"database_sync"`

	// Root is the project root the relative paths resolve against.
	Root string `mapstructure:"-" yaml:"-" toml:"-" json:"-"`
}

// NotionConfig holds API access settings.
type NotionConfig struct {
	TokenEnv        string `mapstructure:"token_env" yaml:"token_env" toml:"token_env" json:"token_env"`
	WorkspacePageID string `mapstructure:"workspace_page_id" yaml:"workspace_page_id,omitempty" toml:"workspace_page_id,omitempty" json:"workspace_page_id,omitempty"`
}

// PathsConfig locates BMAD artifacts, relative to the project root.
type PathsConfig struct {
	BmadOutput              string `mapstructure:"bmad_output" yaml:"bmad_output" toml:"bmad_output" json:"bmad_output"`
	PlanningArtifacts       string `mapstructure:"planning_artifacts" yaml:"planning_artifacts" toml:"planning_artifacts" json:"planning_artifacts"`
	ImplementationArtifacts string `mapstructure:"implementation_artifacts" yaml:"implementation_artifacts" toml:"implementation_artifacts" json:"implementation_artifacts"`
	EpicsDir                string `mapstructure:"epics_dir" yaml:"epics_dir" toml:"epics_dir" json:"epics_dir"`
	SprintStatus            string `mapstructure:"sprint_status" yaml:"sprint_status" toml:"sprint_status" json:"sprint_status"`
}

// DocumentConfig names one planning document and its page title template.
// "{project}" in Title is replaced with the project name.
type DocumentConfig struct {
	Path  string `mapstructure:"path" yaml:"path" toml:"path" json:"path"`
	Title string `mapstructure:"title" yaml:"title" toml:"title" json:"title"`
}

// RenderTitle substitutes the project name into the title template.
func (d DocumentConfig) RenderTitle(project string) string {
	return strings.ReplaceAll(d.Title, "{project}", project)
}

// PageSyncConfig controls document → page sync.
type PageSyncConfig struct {
	Enabled      bool             `mapstructure:"enabled" yaml:"enabled" toml:"enabled" json:"enabled"`
	ParentPageID string           `mapstructure:"parent_page_id" yaml:"parent_page_id,omitempty" toml:"parent_page_id,omitempty" json:"parent_page_id,omitempty"`
	Documents    []DocumentConfig `mapstructure:"documents" yaml:"documents" toml:"documents" json:"documents"`
}

// ProjectsDbConfig describes the optional projects database.
type ProjectsDbConfig struct {
	DatabaseID   string `mapstructure:"database_id" yaml:"database_id,omitempty" toml:"database_id,omitempty" json:"database_id,omitempty"`
	KeyProperty  string `mapstructure:"key_property" yaml:"key_property" toml:"key_property" json:"key_property"`
	NameProperty string `mapstructure:"name_property" yaml:"name_property" toml:"name_property" json:"name_property"`
}

// SprintsDbConfig describes the epics (sprints) database.
type SprintsDbConfig struct {
	DatabaseID      string            `mapstructure:"database_id" yaml:"database_id,omitempty" toml:"database_id,omitempty" json:"database_id,omitempty"`
	KeyProperty     string            `mapstructure:"key_property" yaml:"key_property" toml:"key_property" json:"key_property"`
	NameProperty    string            `mapstructure:"name_property" yaml:"name_property" toml:"name_property" json:"name_property"`
	StatusProperty  string            `mapstructure:"status_property" yaml:"status_property" toml:"status_property" json:"status_property"`
	ProjectProperty string            `mapstructure:"project_property" yaml:"project_property,omitempty" toml:"project_property,omitempty" json:"project_property,omitempty"`
	StatusMapping   map[string]string `mapstructure:"status_mapping" yaml:"status_mapping" toml:"status_mapping" json:"status_mapping"`
}

// TasksDbConfig describes the stories (tasks) database.
type TasksDbConfig struct {
	DatabaseID      string            `mapstructure:"database_id" yaml:"database_id,omitempty" toml:"database_id,omitempty" json:"database_id,omitempty"`
	KeyProperty     string            `mapstructure:"key_property" yaml:"key_property" toml:"key_property" json:"key_property"`
	NameProperty    string            `mapstructure:"name_property" yaml:"name_property" toml:"name_property" json:"name_property"`
	StatusProperty  string            `mapstructure:"status_property" yaml:"status_property" toml:"status_property" json:"status_property"`
	ProjectProperty string            `mapstructure:"project_property" yaml:"project_property,omitempty" toml:"project_property,omitempty" json:"project_property,omitempty"`
	EpicProperty    string            `mapstructure:"epic_property" yaml:"epic_property" toml:"epic_property" json:"epic_property"`
	StatusMapping   map[string]string `mapstructure:"status_mapping" yaml:"status_mapping" toml:"status_mapping" json:"status_mapping"`
}

// DatabaseSyncConfig controls sprint-status → database sync.
type DatabaseSyncConfig struct {
	Enabled  bool             `mapstructure:"enabled" yaml:"enabled" toml:"enabled" json:"enabled"`
	Projects ProjectsDbConfig `mapstructure:"projects" yaml:"projects" toml:"projects" json:"projects"`
	Sprints  SprintsDbConfig  `mapstructure:"sprints" yaml:"sprints" toml:"sprints" json:"sprints"`
	Tasks    TasksDbConfig    `mapstructure:"tasks" yaml:"tasks" toml:"tasks" json:"tasks"`
}

// DefaultDocuments returns the planning documents synced when none are configured.
func DefaultDocuments() []DocumentConfig {
	return []DocumentConfig{
		{Path: "prd.md", Title: "PRD - {project}"},
		{Path: "architecture.md", Title: "Architecture - {project}"},
		{Path: "ux-design-specification.md", Title: "UX Design - {project}"},
		{Path: "product-brief.md", Title: "Product Brief - {project}"},
	}
}

// DefaultSprintStatusMapping maps epic statuses to Notion status labels.
func DefaultSprintStatusMapping() map[string]string {
	return map[string]string{
		"backlog":     "Not Started",
		"in-progress": "In Progress",
		"done":        "Done",
	}
}

// DefaultTaskStatusMapping maps story statuses to Notion status labels.
func DefaultTaskStatusMapping() map[string]string {
	return map[string]string{
		"backlog":       "Backlog",
		"ready-for-dev": "Ready",
		"in-progress":   "In Progress",
		"review":        "Review",
		"done":          "Done",
	}
}

// DefaultPaths returns the standard BMAD output layout.
func DefaultPaths() PathsConfig {
	return PathsConfig{
		BmadOutput:              "_bmad-output",
		PlanningArtifacts:       "_bmad-output/planning-artifacts",
		ImplementationArtifacts: "_bmad-output/implementation-artifacts",
		EpicsDir:                "_bmad-output/planning-artifacts/epics",
		SprintStatus:            "_bmad-output/implementation-artifacts/sprint-status.yaml",
	}
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig(project string) *Config {
	return DefaultConfigWithPaths(project, PathsConfig{})
}

// DefaultConfigWithPaths is DefaultConfig with known artifact paths, such as
// those returned by DiscoverBMADPaths. Empty paths are derived as usual.
func DefaultConfigWithPaths(project string, paths PathsConfig) *Config {
	cfg := &Config{Project: project, Paths: paths}
	cfg.applyDefaults()
	cfg.PageSync.Enabled = true
	cfg.DatabaseSync.Enabled = true
	return cfg
}

// applyDefaults fills empty fields. Booleans are defaulted by the loader.
func (c *Config) applyDefaults() {
	if c.Notion.TokenEnv == "" {
		c.Notion.TokenEnv = "NOTION_TOKEN"
	}

	def := DefaultPaths()
	if c.Paths.BmadOutput == "" {
		c.Paths.BmadOutput = def.BmadOutput
	}
	if c.Paths.PlanningArtifacts == "" {
		c.Paths.PlanningArtifacts = filepath.ToSlash(filepath.Join(c.Paths.BmadOutput, "planning-artifacts"))
	}
	if c.Paths.ImplementationArtifacts == "" {
		c.Paths.ImplementationArtifacts = filepath.ToSlash(filepath.Join(c.Paths.BmadOutput, "implementation-artifacts"))
	}
	if c.Paths.EpicsDir == "" {
		c.Paths.EpicsDir = filepath.ToSlash(filepath.Join(c.Paths.PlanningArtifacts, "epics"))
	}
	if c.Paths.SprintStatus == "" {
		c.Paths.SprintStatus = filepath.ToSlash(filepath.Join(c.Paths.ImplementationArtifacts, "sprint-status.yaml"))
	}

	if len(c.PageSync.Documents) == 0 {
		c.PageSync.Documents = DefaultDocuments()
	}

	p := &c.DatabaseSync.Projects
	if p.KeyProperty == "" {
		p.KeyProperty = "BMADProject"
	}
	if p.NameProperty == "" {
		p.NameProperty = "Project name"
	}

	s := &c.DatabaseSync.Sprints
	if s.KeyProperty == "" {
		s.KeyProperty = "BMADEpic"
	}
	if s.NameProperty == "" {
		s.NameProperty = "Name"
	}
	if s.StatusProperty == "" {
		s.StatusProperty = "Status"
	}
	if s.StatusMapping == nil {
		s.StatusMapping = DefaultSprintStatusMapping()
	}

	t := &c.DatabaseSync.Tasks
	if t.KeyProperty == "" {
		t.KeyProperty = "BMADStory"
	}
	if t.NameProperty == "" {
		t.NameProperty = "Name"
	}
	if t.StatusProperty == "" {
		t.StatusProperty = "Status"
	}
	if t.EpicProperty == "" {
		t.EpicProperty = "Sprint"
	}
	if t.StatusMapping == nil {
		t.StatusMapping = DefaultTaskStatusMapping()
	}
}

// Resolve returns p joined to the project root unless it is absolute.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}

// PlanningDir returns the absolute planning-artifacts directory.
func (c *Config) PlanningDir() string { return c.Resolve(c.Paths.PlanningArtifacts) }

// ImplementationDir returns the absolute implementation-artifacts directory.
func (c *Config) ImplementationDir() string { return c.Resolve(c.Paths.ImplementationArtifacts) }

// EpicsDir returns the absolute epics directory.
func (c *Config) EpicsDir() string { return c.Resolve(c.Paths.EpicsDir) }

// SprintStatusPath returns the absolute sprint status manifest path.
func (c *Config) SprintStatusPath() string { return c.Resolve(c.Paths.SprintStatus) }

// PageParentID returns the configured parent for document pages, preferring
// the explicit page_sync parent over the workspace page.
func (c *Config) PageParentID() string {
	if c.PageSync.ParentPageID != "" {
		return c.PageSync.ParentPageID
	}
	return c.Notion.WorkspacePageID
}

// Token reads the Notion API token from the configured environment variable.
func (c *Config) Token() (string, error) {
	return c.TokenFrom(os.LookupEnv)
}

// TokenFrom is Token with a custom environment lookup.
func (c *Config) TokenFrom(lookup func(string) (string, bool)) (string, error) {
	token, ok := lookup(c.Notion.TokenEnv)
	if !ok || token == "" {
		return "", fmt.Errorf("%w: set the %s environment variable", ErrTokenNotFound, c.Notion.TokenEnv)
	}
	return token, nil
}
