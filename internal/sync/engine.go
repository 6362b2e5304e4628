package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/schema"
	"github.com/bmad-tools/bmadnotion/internal/store"
)

// Options tune a sync run.
type Options struct {
	// DryRun classifies artifacts without remote calls or store writes.
	DryRun bool
	// Force creates or updates every artifact with content.
	Force bool
	// Only restricts page sync to these document paths.
	Only []string
	// Progress is called after each artifact is handled.
	Progress func(Action)
	// Logger defaults to stderr with a "[sync] " prefix.
	Logger *log.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// engine holds what page, database and project sync share.
type engine struct {
	store  Store
	remote Remote
	opts   Options
	logger *log.Logger
}

func newEngine(st Store, remote Remote, opts Options) engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return engine{store: st, remote: remote, opts: opts, logger: logger}
}

func (e *engine) now() time.Time {
	if e.opts.Now != nil {
		return e.opts.Now().UTC()
	}
	return time.Now().UTC()
}

// finish records a handled artifact.
func (e *engine) finish(res *CategoryResult, a Action) {
	switch {
	case a.Err != nil && a.Partial:
		e.logger.Printf("WARNING: %s %s %s partially: %v", a.Verdict, a.Category, a.Key, a.Err)
	case a.Err != nil:
		e.logger.Printf("WARNING: Failed to %s %s %s: %v", a.Verdict, a.Category, a.Key, a.Err)
	case a.Verdict != Skip && e.opts.DryRun:
		e.logger.Printf("Would %s %s %s", a.Verdict, a.Category, a.Key)
	case a.Verdict != Skip:
		e.logger.Printf("Synced %s %s (%s) -> %s", a.Category, a.Key, a.Verdict, a.RemoteID)
	}
	if a.Warning != "" {
		e.logger.Printf("WARNING: %s", a.Warning)
	}

	res.add(a)
	if e.opts.Progress != nil {
		e.opts.Progress(a)
	}
}

func (e *engine) priorPage(ctx context.Context, key string) (*schema.PageSyncState, error) {
	st, err := e.store.GetPage(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state for %s: %w", key, err)
	}
	return st, nil
}

func (e *engine) priorDb(ctx context.Context, key string, category schema.Category) (*schema.DbSyncState, error) {
	st, err := e.store.GetDb(ctx, key, category)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state for %s %s: %w", category, key, err)
	}
	return st, nil
}

// remoteGone rewrites not-found errors for entities the store still points at.
func remoteGone(kind, id string, err error) error {
	if errors.Is(err, notion.ErrNotFound) {
		return fmt.Errorf("remote %s %s no longer exists: %w", kind, id, err)
	}
	return err
}

// contentFailed marks an error that left remote content incomplete.
func contentFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrContentAppend, err)
}

// orphans returns the keys in stored that are not in seen.
func orphans(stored []string, seen map[string]bool) []string {
	var out []string
	for _, k := range stored {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}
