package sync

import (
	"errors"
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// Exit codes for a finished run.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

var (
	// ErrUnmappedStatus is recorded for sprint items whose status has no
	// entry in the configured status mapping.
	ErrUnmappedStatus = errors.New("unmapped status")

	// ErrContentAppend is recorded when a row or page exists remotely but
	// its content could not be written.
	ErrContentAppend = errors.New("content append failed")

	// ErrNoParent is recorded for documents that need a page but no parent
	// page is configured.
	ErrNoParent = errors.New("no parent page configured")

	// ErrNoRemoteID is recorded when a create call succeeds without
	// returning an id.
	ErrNoRemoteID = errors.New("remote returned no id")
)

// Action records what happened to one artifact.
type Action struct {
	Key      string
	Category schema.Category
	Title    string
	Verdict  Verdict
	RemoteID string

	// Err is set when the artifact failed. With Partial the remote entity
	// was created or updated but its content was not fully written.
	Err     error
	Partial bool

	Warning             string
	LocalContentRemoved bool
}

// Failure describes one per-artifact failure.
type Failure struct {
	Key      string
	Category schema.Category
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Category, f.Key, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// CategoryResult aggregates the outcome for one artifact category. Every
// artifact lands in exactly one of Created, Updated, Skipped or Failed;
// partial failures count in Created or Updated and are listed in Failures.
type CategoryResult struct {
	Category schema.Category
	DryRun   bool

	Created int
	Updated int
	Skipped int
	Failed  int

	Failures []Failure
	Warnings []string
	Actions  []Action

	// Orphans are stored keys with no artifact in this scan. They are
	// reported only; nothing is deleted.
	Orphans []string
}

func newResult(category schema.Category, dryRun bool) *CategoryResult {
	return &CategoryResult{Category: category, DryRun: dryRun}
}

func (r *CategoryResult) add(a Action) {
	switch {
	case a.Err != nil && !a.Partial:
		r.Failed++
	case a.Verdict == Create:
		r.Created++
	case a.Verdict == Update:
		r.Updated++
	default:
		r.Skipped++
	}

	if a.Err != nil {
		r.Failures = append(r.Failures, Failure{Key: a.Key, Category: a.Category, Err: a.Err})
	}
	if a.Warning != "" {
		r.Warnings = append(r.Warnings, a.Warning)
	}
	r.Actions = append(r.Actions, a)
}

// Total returns the number of artifacts accounted for.
func (r *CategoryResult) Total() int {
	return r.Created + r.Updated + r.Skipped + r.Failed
}

// HasFailures reports whether any artifact failed, fully or partially.
func (r *CategoryResult) HasFailures() bool {
	return r != nil && len(r.Failures) > 0
}

// ProjectResult describes the project row used as parent and relation target.
type ProjectResult struct {
	Key      string
	Name     string
	RemoteID string
	Verdict  Verdict
	// Found is set when the row already existed remotely but not in the store.
	Found bool
	// Placeholder is set in dry runs when the row would be created.
	Placeholder bool
	Err         error
}

// Report is the outcome of Run. Categories that were not requested are nil.
type Report struct {
	RunID  string
	DryRun bool

	Project *ProjectResult
	Pages   *CategoryResult
	Epics   *CategoryResult
	Stories *CategoryResult
}

// Results returns the non-nil category results in run order.
func (r *Report) Results() []*CategoryResult {
	var out []*CategoryResult
	for _, cr := range []*CategoryResult{r.Pages, r.Epics, r.Stories} {
		if cr != nil {
			out = append(out, cr)
		}
	}
	return out
}

// Failures returns every per-artifact failure of the run.
func (r *Report) Failures() []Failure {
	var out []Failure
	if r.Project != nil && r.Project.Err != nil {
		out = append(out, Failure{Key: r.Project.Key, Category: schema.CategoryProject, Err: r.Project.Err})
	}
	for _, cr := range r.Results() {
		out = append(out, cr.Failures...)
	}
	return out
}

// ExitCode returns ExitPartial when any artifact failed, else ExitOK.
func (r *Report) ExitCode() int {
	if len(r.Failures()) > 0 {
		return ExitPartial
	}
	return ExitOK
}
