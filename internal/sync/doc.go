// Package sync pushes BMAD planning artifacts to Notion incrementally.
//
// # Overview
//
// The sync package decides, for every local artifact, whether the remote
// counterpart must be created, updated or left alone, and records what it
// did in a local state store so the next run can decide again without
// asking Notion.
//
// Architecture
//
//	_bmad-output/
//	     ├── planning-artifacts/*.md       → schema.Document
//	     └── sprint-status.yaml (+ files)  → schema.Epic, schema.Story
//	                                      ↓
//	                               Detect (fingerprint vs store)
//	                                      ↓
//	        PageEngine (pages)    DatabaseEngine (epic rows, then story rows)
//	                                      ↓
//	                                 Remote (Notion)
//	                                      ↓
//	                           Store (.bmadnotion/sync.db)
//
// Usage
//
//	st, err := store.Open(store.PathFor(root))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	report, err := sync.Run(ctx, sync.Request{
//	    Config:   cfg,
//	    Store:    st,
//	    Remote:   notion.New(token),
//	    Pages:    true,
//	    Database: true,
//	})
//	if err != nil {
//	    return err // nothing or only part of the run happened
//	}
//	os.Exit(report.ExitCode())
//
// # Change Detection
//
// Detect compares the SHA-256 fingerprint of an artifact's content with the
// fingerprint stored after its last successful sync. Modification times are
// recorded but never consulted, so touching a file does not trigger an
// update. Force turns every artifact with content into a create or update.
//
// # Error Handling
//
// Errors fall in two classes:
//
//   - Fatal: configuration, manifest and store errors. Run returns them as
//     error before any remote call of the affected category.
//   - Per-artifact: remote failures, unmapped statuses, missing parents.
//     They are recorded in the CategoryResult and the run continues.
//
// A store write only follows a successful remote call, so an interrupted
// run never leaves state pointing at an entity that was not created.
//
// # Concurrency
//
// Artifacts are processed one at a time in configuration and manifest
// order. Story rows need the remote id of their epic, so epics always go
// first. Running two syncs against the same project at once is not
// supported.
package sync
