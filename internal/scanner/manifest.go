package scanner

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// developmentStatusKey holds the ordered key → status mapping.
const developmentStatusKey = "development_status"

// Entry is one development_status line of the manifest.
type Entry struct {
	Key    string
	Status string
	Line   int
}

func (s *Scanner) readManifest() ([]Entry, error) {
	path := s.cfg.SprintStatusPath()

	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s\nRun the BMAD sprint-planning workflow to create it", ErrManifestNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	entries, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ParseManifest decodes sprint-status YAML, keeping development_status in
// document order. A manifest without development_status has no entries.
func ParseManifest(data []byte) ([]Entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := resolve(doc.Content[0])
	if isNull(root) {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrManifestInvalid)
	}

	var status *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == developmentStatusKey {
			status = resolve(root.Content[i+1])
			break
		}
	}
	if status == nil || isNull(status) {
		return nil, nil
	}
	if status.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s must be a mapping (line %d)", ErrManifestInvalid, developmentStatusKey, status.Line)
	}

	seen := make(map[string]int)
	entries := make([]Entry, 0, len(status.Content)/2)
	for i := 0; i+1 < len(status.Content); i += 2 {
		k := resolve(status.Content[i])
		v := resolve(status.Content[i+1])

		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return nil, fmt.Errorf("%w: invalid key at line %d", ErrManifestInvalid, k.Line)
		}
		if prev, ok := seen[k.Value]; ok {
			return nil, fmt.Errorf("%w: duplicate key %q at lines %d and %d", ErrManifestInvalid, k.Value, prev, k.Line)
		}
		seen[k.Value] = k.Line

		if v.Kind != yaml.ScalarNode || isNull(v) || v.Value == "" {
			return nil, fmt.Errorf("%w: %q has no status (line %d)", ErrManifestInvalid, k.Value, k.Line)
		}

		entries = append(entries, Entry{Key: k.Value, Status: v.Value, Line: k.Line})
	}
	return entries, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}
