package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bmad-tools/bmadnotion/internal/schema"
)

// Record is one line of a JSONL state dump.
type Record struct {
	Table string                `json:"table"`
	Page  *schema.PageSyncState `json:"page,omitempty"`
	Db    *schema.DbSyncState   `json:"db,omitempty"`
}

const (
	tablePage = "page"
	tableDb   = "db"
)

// ImportResult counts the records applied by Import.
type ImportResult struct {
	Pages int
	Rows  int
}

// Export writes every sync state as JSONL, pages first.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	pages, err := s.ListPages(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := s.ListDb(ctx, "")
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	n := 0
	for _, p := range pages {
		if err := enc.Encode(Record{Table: tablePage, Page: p}); err != nil {
			return n, fmt.Errorf("failed to encode page state %s: %w", p.LocalPath, err)
		}
		n++
	}
	for _, r := range rows {
		if err := enc.Encode(Record{Table: tableDb, Db: r}); err != nil {
			return n, fmt.Errorf("failed to encode %s state %s: %w", r.Category, r.LocalKey, err)
		}
		n++
	}
	return n, nil
}

// Import upserts JSONL records produced by Export in a single transaction.
// Either every line is applied or none is.
func (s *Store) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}

	var records []Record
	decoder := json.NewDecoder(r)
	lineNum := 0
	for {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at record %d: %w", lineNum+1, err)
		}
		lineNum++

		switch {
		case rec.Table == tablePage && rec.Page != nil:
		case rec.Table == tableDb && rec.Db != nil:
		default:
			return nil, fmt.Errorf("record %d: unknown table %q or missing state", lineNum, rec.Table)
		}
		records = append(records, rec)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := &ImportResult{}
	for i, rec := range records {
		switch rec.Table {
		case tablePage:
			if err := putPage(ctx, tx, rec.Page); err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
			result.Pages++
		case tableDb:
			if err := putDb(ctx, tx, rec.Db); err != nil {
				return nil, fmt.Errorf("record %d: %w", i+1, err)
			}
			result.Rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return result, nil
}
