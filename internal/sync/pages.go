package sync

import (
	"context"
	"fmt"

	"github.com/bmad-tools/bmadnotion/internal/markdown"
	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// PageEngine syncs planning documents to standalone pages.
type PageEngine struct {
	engine
}

// NewPageEngine returns a page engine. Remote may be nil for dry runs.
func NewPageEngine(st Store, remote Remote, opts Options) *PageEngine {
	return &PageEngine{engine: newEngine(st, remote, opts)}
}

func (e *PageEngine) selected(path string) bool {
	if len(e.opts.Only) == 0 {
		return true
	}
	for _, p := range e.opts.Only {
		if p == path {
			return true
		}
	}
	return false
}

// Sync handles docs in order. Documents without content that were never
// synced are ignored; those synced before are skipped with a warning.
// New pages are created under parentID.
//
// The returned error is fatal (store failure or cancellation); remote
// failures are recorded in the result.
func (e *PageEngine) Sync(ctx context.Context, docs []*schema.Document, parentID string) (*CategoryResult, error) {
	res := newResult(schema.CategoryDocument, e.opts.DryRun)
	seen := make(map[string]bool, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		seen[doc.Path] = true
		if !e.selected(doc.Path) {
			continue
		}

		prior, err := e.priorPage(ctx, doc.Path)
		if err != nil {
			return res, err
		}

		d := Detect(doc, prior.View(), e.opts.Force)
		if _, ok := doc.Content(); !ok && prior == nil {
			continue
		}

		a := Action{
			Key:                 doc.Path,
			Category:            schema.CategoryDocument,
			Title:               doc.Title,
			Verdict:             d.Verdict,
			RemoteID:            d.RemoteID,
			LocalContentRemoved: d.LocalContentRemoved,
		}
		if d.LocalContentRemoved {
			a.Warning = fmt.Sprintf("%s: local file removed, remote page %s left unchanged", doc.Path, d.RemoteID)
		}

		if d.Verdict != Skip && !e.opts.DryRun {
			if err := e.apply(ctx, doc, d, parentID, &a); err != nil {
				return res, err
			}
		}
		e.finish(res, a)
	}

	if len(e.opts.Only) == 0 {
		stored, err := e.store.ListPages(ctx)
		if err != nil {
			return res, fmt.Errorf("failed to list page state: %w", err)
		}
		keys := make([]string, len(stored))
		for i, st := range stored {
			keys[i] = st.LocalPath
		}
		res.Orphans = orphans(keys, seen)
	}

	return res, nil
}

func (e *PageEngine) apply(ctx context.Context, doc *schema.Document, d Decision, parentID string, a *Action) error {
	content, _ := doc.Content()
	blocks := markdown.ToBlocks(content)
	fingerprint := d.Fingerprint

	switch d.Verdict {
	case Create:
		if parentID == "" {
			a.Err = ErrNoParent
			return nil
		}
		id, err := e.remote.CreatePage(ctx, parentID, doc.Title, blocks)
		if id == "" {
			if err == nil {
				err = ErrNoRemoteID
			}
			a.Err = err
			return nil
		}
		if err != nil {
			a.Err = contentFailed(err)
			a.Partial = true
			fingerprint = schema.IncompleteFingerprint
		}
		a.RemoteID = id

	case Update:
		if err := e.remote.UpdatePage(ctx, d.RemoteID, blocks); err != nil {
			a.Err = remoteGone("page", d.RemoteID, err)
			return nil
		}
	}

	st := &schema.PageSyncState{
		LocalPath:       doc.Path,
		RemoteID:        a.RemoteID,
		Fingerprint:     fingerprint,
		LastSyncedMTime: doc.MTime,
		SyncedAt:        e.now(),
	}
	if err := e.store.PutPage(ctx, st); err != nil {
		return fmt.Errorf("failed to save sync state for %s: %w", doc.Path, err)
	}
	return nil
}
