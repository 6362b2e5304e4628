// Package schema defines the artifacts bmadnotion reads from a BMAD project and
// the sync state it persists for each of them.
//
// # Artifacts
//
// An artifact is a local unit eligible for sync. The set is closed:
//
//	Document  planning-artifacts/*.md         → one Notion page
//	Epic      sprint-status.yaml  epic-<n>     → one row in the sprints database
//	Story     sprint-status.yaml  <n>-<m>-slug → one row in the tasks database
//
// All three implement Artifact, which exposes the shape shared by the change
// detector and the store: identity key, category, content and modification
// time. Status and the story's epic back-reference are only read by the
// database engine, which type-switches on the concrete variant.
//
// # Content and fingerprints
//
// A Document's content is the raw file text and is absent when the file is
// missing. Sprint items always have content: the canonical rendering of their
// title, status, epic key and optional file body (see Epic.Content). A status
// change is therefore a content change.
//
// Fingerprint hashes content byte-for-byte. Whitespace edits count as changes.
// Modification times are stored as hints only and never decide a sync.
//
// # Sync state
//
// PageSyncState and DbSyncState are the two persisted shapes. A record exists
// only after the remote entity it names was created successfully.
package schema
