package sync

import (
	"context"

	"github.com/bmad-tools/bmadnotion/internal/notion"
	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// Remote is the subset of the Notion API the engines use.
//
// Implementations retry transient failures themselves; every error seen by
// an engine is final for that artifact. *notion.Client and
// *notiontest.Remote implement it.
type Remote interface {
	// CreatePage creates a page under parentID and returns its id.
	//
	// If the page was created but part of its content could not be written,
	// the id is returned together with the error.
	CreatePage(ctx context.Context, parentID, title string, blocks []notion.Block) (string, error)

	// UpdatePage replaces the content of a page or database row.
	// Returns an error wrapping notion.ErrNotFound when the entity is gone.
	UpdatePage(ctx context.Context, id string, blocks []notion.Block) error

	// CreateDatabaseRow creates a row and returns its id.
	CreateDatabaseRow(ctx context.Context, databaseID string, props notion.Properties, rel notion.Relations) (string, error)

	// UpdateDatabaseRow overwrites the given properties and relations.
	UpdateDatabaseRow(ctx context.Context, id string, props notion.Properties, rel notion.Relations) error

	// AppendBlocks appends content to a page or row.
	AppendBlocks(ctx context.Context, id string, blocks []notion.Block) error

	// GetEntity fetches a page, row or database.
	GetEntity(ctx context.Context, id string) (*notion.Entity, error)

	// FindDatabaseRow looks up a row by the text of one property.
	FindDatabaseRow(ctx context.Context, databaseID, property, value string) (string, bool, error)
}

// Store persists sync state between runs. *store.Store implements it.
//
// Get methods return an error wrapping store.ErrNotFound when the key has
// never been synced.
type Store interface {
	GetPage(ctx context.Context, localPath string) (*schema.PageSyncState, error)
	PutPage(ctx context.Context, st *schema.PageSyncState) error
	ListPages(ctx context.Context) ([]*schema.PageSyncState, error)

	GetDb(ctx context.Context, localKey string, category schema.Category) (*schema.DbSyncState, error)
	PutDb(ctx context.Context, st *schema.DbSyncState) error
	ListDb(ctx context.Context, category schema.Category) ([]*schema.DbSyncState, error)
}
