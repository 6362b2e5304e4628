// Package project locates the bmadnotion project root.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/store"
)

// ErrNotInProject is returned when no project marker is found.
var ErrNotInProject = errors.New("not in a bmadnotion or BMAD project")

// VCS identifies the version control system of the project root.
type VCS string

const (
	VCSNone VCS = ""
	VCSGit  VCS = "git"
	VCSJJ   VCS = "jj"
)

// Root describes a detected project root.
type Root struct {
	// Dir is the absolute project root.
	Dir string

	// HasConfig indicates .bmadnotion.yaml exists in Dir.
	HasConfig bool

	// HasBMAD indicates _bmad/ or _bmad-output/ exists in Dir.
	HasBMAD bool

	// VCS is the version control system found at or above Dir.
	VCS VCS
}

// ConfigPath returns the configuration file location.
func (r *Root) ConfigPath() string {
	return filepath.Join(r.Dir, config.FileName)
}

// StorePath returns the sync state store location.
func (r *Root) StorePath() string {
	return store.PathFor(r.Dir)
}

// StateDir returns the project-local state directory.
func (r *Root) StateDir() string {
	return filepath.Join(r.Dir, store.DirName)
}

// Detect walks up from path to find the project root.
//
// Detection precedence:
//  1. The nearest directory holding .bmadnotion.yaml
//  2. The nearest directory holding _bmad/ or _bmad-output/
//  3. The nearest version control root (.jj or .git)
//
// Returns ErrNotInProject if none is found.
func Detect(path string) (*Root, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	var bmadDir, vcsDir string
	var vcs VCS

	current := absPath
	for {
		if fileExists(filepath.Join(current, config.FileName)) {
			return &Root{
				Dir:       current,
				HasConfig: true,
				HasBMAD:   hasBMAD(current),
				VCS:       findVCS(current),
			}, nil
		}

		if bmadDir == "" && hasBMAD(current) {
			bmadDir = current
		}

		if vcsDir == "" {
			if kind := vcsAt(current); kind != VCSNone {
				vcsDir, vcs = current, kind
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	switch {
	case bmadDir != "":
		return &Root{Dir: bmadDir, HasBMAD: true, VCS: findVCS(bmadDir)}, nil
	case vcsDir != "":
		return &Root{Dir: vcsDir, VCS: vcs}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotInProject, absPath)
}

// DetectOrCwd is like Detect but falls back to path itself.
// Useful for init, which may run in an empty directory.
func DetectOrCwd(path string) (*Root, error) {
	root, err := Detect(path)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNotInProject) {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Root{Dir: abs}, nil
}

func hasBMAD(dir string) bool {
	return dirExists(filepath.Join(dir, "_bmad")) || dirExists(filepath.Join(dir, "_bmad-output"))
}

// vcsAt reports the VCS whose metadata lives directly in dir.
// A .jj directory wins over .git for colocated repositories.
func vcsAt(dir string) VCS {
	if dirExists(filepath.Join(dir, ".jj")) {
		return VCSJJ
	}
	// .git may be a file in worktrees.
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return VCSGit
	}
	return VCSNone
}

func findVCS(dir string) VCS {
	current := dir
	for {
		if kind := vcsAt(current); kind != VCSNone {
			return kind
		}
		parent := filepath.Dir(current)
		if parent == current {
			return VCSNone
		}
		current = parent
	}
}

// EnsureIgnored appends the state directory to the root .gitignore when the
// project is under version control. It reports whether the file changed.
func (r *Root) EnsureIgnored() (bool, error) {
	if r.VCS == VCSNone {
		return false, nil
	}

	entry := store.DirName + "/"
	path := filepath.Join(r.Dir, ".gitignore")

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == entry || line == store.DirName || line == "/"+entry {
			return false, nil
		}
	}

	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(entry + "\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return false, fmt.Errorf("failed to write .gitignore: %w", err)
	}
	return true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
