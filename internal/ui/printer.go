package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/bmad-tools/bmadnotion/internal/sync"
	"github.com/dustin/go-humanize"
)

// Printer writes styled output.
type Printer struct {
	w      io.Writer
	styles Styles
	// Now defaults to time.Now; relative times are computed against it.
	Now func() time.Time
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, styles: DefaultStyles(NewRenderer(w, noColor))}
}

func (p *Printer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Printer) println(parts ...string) {
	fmt.Fprintln(p.w, strings.Join(parts, ""))
}

// Title prints a bold line.
func (p *Printer) Title(s string) { p.println(p.styles.Title.Render(s)) }

// Info prints a plain line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.println(p.styles.Normal.Render(fmt.Sprintf(format, args...)))
}

// Success prints a line in the created color.
func (p *Printer) Success(format string, args ...interface{}) {
	p.println(p.styles.Created.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...interface{}) {
	p.println(p.styles.Warning.Render(p.styles.IndicatorWarning + " " + fmt.Sprintf(format, args...)))
}

// Error prints a failure line.
func (p *Printer) Error(format string, args ...interface{}) {
	p.println(p.styles.Failed.Render(p.styles.IndicatorFailed + " " + fmt.Sprintf(format, args...)))
}

var categoryLabels = map[schema.Category]string{
	schema.CategoryDocument: "Pages",
	schema.CategoryEpic:     "Epics",
	schema.CategoryStory:    "Stories",
}

// Label returns the display name of a category.
func Label(c schema.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Report prints the outcome of a sync run.
func (p *Printer) Report(r *sync.Report) {
	if r.DryRun {
		p.Title("Dry run: no changes were made")
	}
	if pr := r.Project; pr != nil {
		p.project(pr)
	}
	for _, cr := range r.Results() {
		p.category(cr)
	}
}

func (p *Printer) project(pr *sync.ProjectResult) {
	switch {
	case pr.Err != nil:
		p.Error("Project %s: %v", pr.Name, pr.Err)
	case pr.Placeholder:
		p.Info("Project %s: would create", pr.Name)
	case pr.Verdict == sync.Create:
		p.Info("Project %s: created %s", pr.Name, pr.RemoteID)
	case pr.Found:
		p.Info("Project %s: found %s", pr.Name, pr.RemoteID)
	default:
		p.Info("Project %s: %s", pr.Name, pr.RemoteID)
	}
}

func (p *Printer) category(cr *sync.CategoryResult) {
	s := p.styles
	created, updated := "created", "updated"
	if cr.DryRun {
		created, updated = "would create", "would update"
	}

	summary := fmt.Sprintf("%s: %s %d, %s %d, skipped %d, failed %d",
		Label(cr.Category), created, cr.Created, updated, cr.Updated, cr.Skipped, cr.Failed)
	p.println(s.Header.Render(summary))

	for _, a := range cr.Actions {
		if a.Err != nil && !a.Partial {
			continue
		}
		switch a.Verdict {
		case sync.Create:
			p.println("  ", s.Created.Render(s.IndicatorCreated+" "+actionName(a)))
		case sync.Update:
			p.println("  ", s.Updated.Render(s.IndicatorUpdated+" "+actionName(a)))
		}
	}
	for _, f := range cr.Failures {
		p.println("  ", s.Failed.Render(s.IndicatorFailed+" "+f.Key+": "+f.Err.Error()))
	}
	for _, w := range cr.Warnings {
		p.println("  ", s.Warning.Render(s.IndicatorWarning+" "+w))
	}
	for _, o := range cr.Orphans {
		p.println("  ", s.Muted.Render(s.IndicatorOrphan+" "+o+": no longer local, remote left unchanged"))
	}
}

func actionName(a sync.Action) string {
	if a.Title == "" || a.Title == a.Key {
		return a.Key
	}
	return a.Key + " (" + a.Title + ")"
}

// StateRow is one stored sync state shown by States.
type StateRow struct {
	Category   schema.Category
	Key        string
	RemoteID   string
	SyncedAt   time.Time
	Incomplete bool
}

// Column widths for States.
const (
	colCategory = 9
	colKey      = 36
	colRemote   = 36
)

// States prints stored sync states as a table.
func (p *Printer) States(rows []StateRow) {
	s := p.styles
	if len(rows) == 0 {
		p.println(s.Muted.Render("nothing synced yet"))
		return
	}

	header := Pad("CATEGORY", colCategory) + " " + Pad("KEY", colKey) + " " + Pad("REMOTE", colRemote) + " SYNCED"
	p.println(s.Header.Render(header))

	now := p.now()
	for _, r := range rows {
		synced := "-"
		if !r.SyncedAt.IsZero() {
			synced = humanize.RelTime(r.SyncedAt, now, "ago", "from now")
		}
		line := Pad(string(r.Category), colCategory) + " " + Pad(r.Key, colKey) + " " + Pad(r.RemoteID, colRemote) + " " + synced
		if r.Incomplete {
			p.println(s.Warning.Render(line + " (incomplete)"))
			continue
		}
		p.println(s.Normal.Render(line))
	}

	p.println(s.Muted.Render(fmt.Sprintf("%d %s", len(rows), plural(len(rows), "entry"))))
}
