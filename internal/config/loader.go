package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. BMADNOTION_PROJECT.
const EnvPrefix = "BMADNOTION"

// envKeys can be supplied from the environment even when absent from the file.
var envKeys = []string{
	"project",
	"notion.token_env",
	"notion.workspace_page_id",
	"page_sync.parent_page_id",
	"database_sync.projects.database_id",
	"database_sync.sprints.database_id",
	"database_sync.tasks.database_id",
}

// Load reads <root>/.bmadnotion.yaml.
func Load(root string) (*Config, error) {
	return LoadFile(filepath.Join(root, FileName), root)
}

// LoadFile reads the configuration at path, resolving relative paths
// against root. Unknown keys are rejected.
func LoadFile(path, root string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s\nRun 'bmadnotion init' to create one", ErrNotFound, path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault("page_sync.enabled", true)
	v.SetDefault("database_sync.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalid, path, err)
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Root = root

	if !v.IsSet("paths") {
		discovered, err := DiscoverBMADPaths(root)
		if err != nil {
			return nil, err
		}
		cfg.Paths = discovered
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BMADConfigPath returns the location of the BMAD module configuration.
func BMADConfigPath(root string) string {
	return filepath.Join(root, "_bmad", "bmm", "config.yaml")
}

// DiscoverBMADPaths reads artifact locations from _bmad/bmm/config.yaml.
// A missing file yields empty paths, which the defaults then fill.
func DiscoverBMADPaths(root string) (PathsConfig, error) {
	var paths PathsConfig

	data, err := os.ReadFile(BMADConfigPath(root))
	if errors.Is(err, os.ErrNotExist) {
		return paths, nil
	}
	if err != nil {
		return paths, fmt.Errorf("failed to read BMAD config: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return paths, fmt.Errorf("%w: %s: %v", ErrInvalid, BMADConfigPath(root), err)
	}

	get := func(key string) string {
		s, ok := raw[key].(string)
		if !ok {
			return ""
		}
		s = strings.ReplaceAll(s, "{project-root}/", "")
		return strings.ReplaceAll(s, "{project-root}", "")
	}

	paths.BmadOutput = get("output_folder")
	paths.PlanningArtifacts = get("planning_artifacts")
	paths.ImplementationArtifacts = get("implementation_artifacts")
	return paths, nil
}

// Validate checks the fields that can be verified without knowing which
// sync categories will run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Project) == "" {
		return fmt.Errorf("%w: project is required", ErrInvalid)
	}
	if c.Notion.TokenEnv == "" {
		return fmt.Errorf("%w: notion.token_env is required", ErrInvalid)
	}

	seen := make(map[string]bool)
	for i, doc := range c.PageSync.Documents {
		if doc.Path == "" {
			return fmt.Errorf("%w: page_sync.documents[%d].path is required", ErrInvalid, i)
		}
		if doc.Title == "" {
			return fmt.Errorf("%w: page_sync.documents[%d].title is required", ErrInvalid, i)
		}
		if seen[doc.Path] {
			return fmt.Errorf("%w: page_sync.documents: duplicate path %q", ErrInvalid, doc.Path)
		}
		seen[doc.Path] = true
	}

	if err := validateMapping("database_sync.sprints.status_mapping", c.DatabaseSync.Sprints.StatusMapping); err != nil {
		return err
	}
	return validateMapping("database_sync.tasks.status_mapping", c.DatabaseSync.Tasks.StatusMapping)
}

func validateMapping(name string, m map[string]string) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalid, name)
	}
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: %s has an empty status key", ErrInvalid, name)
		}
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s[%s] has an empty label", ErrInvalid, name, k)
		}
	}
	return nil
}

// ValidateFor checks the settings required by the categories about to sync.
// Disabled categories are not checked.
func (c *Config) ValidateFor(pages, db bool) error {
	if pages && c.PageSync.Enabled {
		if c.PageParentID() == "" && c.DatabaseSync.Projects.DatabaseID == "" {
			return fmt.Errorf("%w: page sync needs page_sync.parent_page_id, notion.workspace_page_id or database_sync.projects.database_id", ErrInvalid)
		}
	}
	if db && c.DatabaseSync.Enabled {
		if c.DatabaseSync.Sprints.DatabaseID == "" {
			return fmt.Errorf("%w: database_sync.sprints.database_id is required", ErrInvalid)
		}
		if c.DatabaseSync.Tasks.DatabaseID == "" {
			return fmt.Errorf("%w: database_sync.tasks.database_id is required", ErrInvalid)
		}
	}
	return nil
}

// WriteFile writes c as YAML, atomically via a temp file.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append([]byte("# bmadnotion configuration\n"), data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
