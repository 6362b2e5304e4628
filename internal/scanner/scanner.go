// Package scanner reads BMAD planning documents and the sprint status
// manifest into schema artifacts.
//
// Missing optional files (a planning document that was never written, a
// backlog story with no file yet) are normal and never errors. A missing or
// malformed manifest is.
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmad-tools/bmadnotion/internal/config"
	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrManifestNotFound is returned when sprint-status.yaml does not exist.
	ErrManifestNotFound = errors.New("sprint status manifest not found")

	// ErrManifestInvalid is returned when the manifest cannot be parsed.
	ErrManifestInvalid = errors.New("sprint status manifest is invalid")
)

var (
	h1Pattern          = regexp.MustCompile(`(?m)^#[ \t]+(.+?)[ \t]*$`)
	titlePrefixPattern = regexp.MustCompile(`^(Epic|Story)\s+[\d.]+:\s*`)
	storyEpicPattern   = regexp.MustCompile(`^(\d+)-`)
)

// UnknownEpicKey is assigned to stories whose epic cannot be inferred.
const UnknownEpicKey = "epic-unknown"

// Scanner reads artifacts from a project tree.
type Scanner struct {
	cfg *config.Config
	fs  afero.Fs
}

// New creates a scanner over fs. A nil fs reads the real filesystem.
func New(cfg *config.Config, fs afero.Fs) *Scanner {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Scanner{cfg: cfg, fs: fs}
}

// ScanDocuments returns the configured documents that exist, in
// configuration order.
func (s *Scanner) ScanDocuments() ([]*schema.Document, error) {
	all, err := s.ConfiguredDocuments()
	if err != nil {
		return nil, err
	}

	docs := make([]*schema.Document, 0, len(all))
	for _, d := range all {
		if d.Body != nil {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

// ConfiguredDocuments returns every configured document. Documents whose
// file does not exist have a nil Body.
func (s *Scanner) ConfiguredDocuments() ([]*schema.Document, error) {
	docs := make([]*schema.Document, 0, len(s.cfg.PageSync.Documents))

	for _, dc := range s.cfg.PageSync.Documents {
		doc := &schema.Document{
			Path:  dc.Path,
			Title: dc.RenderTitle(s.cfg.Project),
		}

		path := filepath.Join(s.cfg.PlanningDir(), filepath.FromSlash(dc.Path))
		body, info, err := s.readOptional(path)
		if err != nil {
			return nil, err
		}
		if info != nil {
			doc.Body = &body
			doc.MTime = info.ModTime()
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ScanSprintStatus parses the manifest into epics and stories, preserving
// manifest order. Retrospective entries are skipped.
func (s *Scanner) ScanSprintStatus() ([]*schema.Epic, []*schema.Story, error) {
	entries, err := s.readManifest()
	if err != nil {
		return nil, nil, err
	}

	var epics []*schema.Epic
	var stories []*schema.Story
	currentEpic := ""

	for _, e := range entries {
		if strings.HasSuffix(e.Key, "-retrospective") {
			continue
		}

		if strings.HasPrefix(e.Key, "epic-") {
			epic, err := s.parseEpic(e.Key, e.Status)
			if err != nil {
				return nil, nil, err
			}
			epics = append(epics, epic)
			currentEpic = e.Key
			continue
		}

		epicKey := currentEpic
		if epicKey == "" {
			epicKey = InferEpicKey(e.Key)
		}
		story, err := s.parseStory(e.Key, e.Status, epicKey)
		if err != nil {
			return nil, nil, err
		}
		stories = append(stories, story)
	}

	return epics, stories, nil
}

func (s *Scanner) parseEpic(key, status string) (*schema.Epic, error) {
	num := strings.TrimPrefix(key, "epic-")
	epic := &schema.Epic{
		ID:     key,
		Title:  "Epic " + num,
		Status: status,
	}

	matches, err := afero.Glob(s.fs, filepath.Join(s.cfg.EpicsDir(), "epic-"+num+"-*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to search epic files for %s: %w", key, err)
	}
	if len(matches) == 0 {
		return epic, nil
	}

	body, info, err := s.readOptional(matches[0])
	if err != nil {
		return nil, err
	}
	if info != nil {
		epic.FilePath = matches[0]
		epic.Body = &body
		epic.MTime = info.ModTime()
		epic.Title = ExtractTitle(body, epic.Title)
	}
	return epic, nil
}

func (s *Scanner) parseStory(key, status, epicKey string) (*schema.Story, error) {
	story := &schema.Story{
		ID:      key,
		EpicKey: epicKey,
		Title:   DefaultStoryTitle(key),
		Status:  status,
	}

	path := filepath.Join(s.cfg.ImplementationDir(), key+".md")
	body, info, err := s.readOptional(path)
	if err != nil {
		return nil, err
	}
	if info != nil {
		story.FilePath = path
		story.Body = &body
		story.MTime = info.ModTime()
		story.Title = ExtractTitle(body, story.Title)
	}
	return story, nil
}

// readOptional reads a file that may legitimately be absent. A nil
// FileInfo means the file does not exist.
func (s *Scanner) readOptional(path string) (string, os.FileInfo, error) {
	info, err := s.fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", nil, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), info, nil
}

// ExtractTitle returns the first H1 heading of content with any
// "Epic N:" or "Story N.M:" prefix removed, or def when there is none.
func ExtractTitle(content, def string) string {
	m := h1Pattern.FindStringSubmatch(content)
	if m == nil {
		return def
	}
	title := titlePrefixPattern.ReplaceAllString(strings.TrimSpace(m[1]), "")
	if title == "" {
		return def
	}
	return title
}

// DefaultStoryTitle derives a title from a story key:
// "1-5-create-knowledge-point" becomes "Create Knowledge Point".
func DefaultStoryTitle(key string) string {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) < 3 || parts[2] == "" {
		return key
	}
	return cases.Title(language.English).String(strings.ReplaceAll(parts[2], "-", " "))
}

// InferEpicKey returns the epic key implied by a story key's numeric prefix.
func InferEpicKey(storyKey string) string {
	m := storyEpicPattern.FindStringSubmatch(storyKey)
	if m == nil {
		return UnknownEpicKey
	}
	return "epic-" + m[1]
}
