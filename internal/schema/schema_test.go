package schema

import (
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("# PRD v1")
	b := Fingerprint("# PRD v1")
	if a != b {
		t.Errorf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
}

func TestFingerprint_ByteSensitive(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"one byte", "# PRD v1", "# PRD v2"},
		{"trailing newline", "# PRD", "# PRD\n"},
		{"inner whitespace", "a b", "a  b"},
		{"crlf", "a\nb", "a\r\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.a) == Fingerprint(tt.b) {
				t.Errorf("Fingerprint(%q) == Fingerprint(%q)", tt.a, tt.b)
			}
		})
	}
}

func TestDocument_Content(t *testing.T) {
	doc := &Document{Path: "prd.md"}
	if _, ok := doc.Content(); ok {
		t.Error("document without body should have absent content")
	}

	doc.Body = strPtr("# PRD")
	got, ok := doc.Content()
	if !ok || got != "# PRD" {
		t.Errorf("Content() = %q, %v", got, ok)
	}
	if doc.Key() != "prd.md" || doc.Category() != CategoryDocument {
		t.Errorf("unexpected identity %s/%s", doc.Category(), doc.Key())
	}
}

func TestEpic_ContentTracksStatus(t *testing.T) {
	e := &Epic{ID: "epic-1", Title: "Epic 1", Status: "backlog"}
	before, ok := e.Content()
	if !ok {
		t.Fatal("epic content must always be present")
	}

	e.MTime = time.Now()
	same, _ := e.Content()
	if before != same {
		t.Error("mtime must not affect epic content")
	}

	e.Status = "in-progress"
	after, _ := e.Content()
	if Fingerprint(before) == Fingerprint(after) {
		t.Error("status change should change the fingerprint")
	}
}

func TestStory_ContentIncludesBody(t *testing.T) {
	s := &Story{ID: "1-1-setup", EpicKey: "epic-1", Title: "Setup", Status: "backlog"}
	if s.HasBody() {
		t.Error("story without file should have no body")
	}
	c1, ok := s.Content()
	if !ok {
		t.Fatal("story content must always be present")
	}
	if !strings.Contains(c1, "epic: epic-1") {
		t.Errorf("content missing epic key: %q", c1)
	}

	s.Body = strPtr("# Story 1.1: Setup\n")
	c2, _ := s.Content()
	if c1 == c2 {
		t.Error("body should change story content")
	}
	if !strings.HasSuffix(c2, "# Story 1.1: Setup\n") {
		t.Errorf("content should end with body, got %q", c2)
	}
}

func TestDbSyncState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   DbSyncState
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid epic",
			state: DbSyncState{LocalKey: "epic-1", Category: CategoryEpic, RemoteID: "r1"},
		},
		{
			name:    "missing key",
			state:   DbSyncState{Category: CategoryEpic, RemoteID: "r1"},
			wantErr: true,
			errMsg:  "local_key is required",
		},
		{
			name:    "document category not allowed",
			state:   DbSyncState{LocalKey: "prd.md", Category: CategoryDocument, RemoteID: "r1"},
			wantErr: true,
			errMsg:  "invalid category",
		},
		{
			name:    "missing remote id",
			state:   DbSyncState{LocalKey: "epic-1", Category: CategoryEpic},
			wantErr: true,
			errMsg:  "remote_id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("error = %q, want substring %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestView_Nil(t *testing.T) {
	var p *PageSyncState
	if p.View() != nil {
		t.Error("nil page state view should be nil")
	}
	var d *DbSyncState
	if d.View() != nil {
		t.Error("nil db state view should be nil")
	}
}
