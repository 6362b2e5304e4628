package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// IncompleteFingerprint marks state whose remote entity exists but whose
// content was not fully written. It never equals a real fingerprint, so the
// next run updates the entity.
const IncompleteFingerprint = "incomplete"

// PageSyncState records the last successful sync of a Document.
type PageSyncState struct {
	LocalPath       string    `json:"local_path"`
	RemoteID        string    `json:"remote_id"`
	Fingerprint     string    `json:"fingerprint"`
	LastSyncedMTime time.Time `json:"last_synced_mtime"`
	SyncedAt        time.Time `json:"synced_at"`
}

// Validate checks required fields.
func (s *PageSyncState) Validate() error {
	if s.LocalPath == "" {
		return fmt.Errorf("local_path is required")
	}
	if s.RemoteID == "" {
		return fmt.Errorf("remote_id is required")
	}
	if s.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	return nil
}

// DbSyncState records the last successful sync of a database row.
// Epics, stories and the project row share one table, split by Category.
type DbSyncState struct {
	LocalKey        string    `json:"local_key"`
	Category        Category  `json:"category"`
	RemoteID        string    `json:"remote_id"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	LastSyncedMTime time.Time `json:"last_synced_mtime"`
	SyncedAt        time.Time `json:"synced_at"`
}

// Validate checks required fields.
func (s *DbSyncState) Validate() error {
	if s.LocalKey == "" {
		return fmt.Errorf("local_key is required")
	}
	if !s.Category.IsValid() || s.Category == CategoryDocument {
		return fmt.Errorf("invalid category %q", s.Category)
	}
	if s.RemoteID == "" {
		return fmt.Errorf("remote_id is required")
	}
	return nil
}

// SyncState is the category-independent view used by the change detector.
type SyncState struct {
	Key         string
	Category    Category
	RemoteID    string
	Fingerprint string
}

// View returns the generic view of s.
func (s *PageSyncState) View() *SyncState {
	if s == nil {
		return nil
	}
	return &SyncState{Key: s.LocalPath, Category: CategoryDocument, RemoteID: s.RemoteID, Fingerprint: s.Fingerprint}
}

// View returns the generic view of s.
func (s *DbSyncState) View() *SyncState {
	if s == nil {
		return nil
	}
	return &SyncState{Key: s.LocalKey, Category: s.Category, RemoteID: s.RemoteID, Fingerprint: s.Fingerprint}
}
