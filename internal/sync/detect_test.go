package sync

import (
	"testing"
	"time"

	"github.com/bmad-tools/bmadnotion/internal/schema"
)

func strPtr(s string) *string { return &s }

func TestDetect(t *testing.T) {
	body := "# PRD v1"
	fp := schema.Fingerprint(body)

	present := &schema.Document{Path: "prd.md", Body: strPtr(body), MTime: time.Now()}
	edited := &schema.Document{Path: "prd.md", Body: strPtr(body + "\n")}
	absent := &schema.Document{Path: "prd.md"}

	same := &schema.SyncState{Key: "prd.md", RemoteID: "r1", Fingerprint: fp}
	stale := &schema.SyncState{Key: "prd.md", RemoteID: "r1", Fingerprint: "old"}
	incomplete := &schema.SyncState{Key: "prd.md", RemoteID: "r1", Fingerprint: schema.IncompleteFingerprint}

	tests := []struct {
		name    string
		doc     *schema.Document
		prior   *schema.SyncState
		force   bool
		want    Verdict
		removed bool
	}{
		{"new with content", present, nil, false, Create, false},
		{"new without content", absent, nil, false, Skip, false},
		{"unchanged", present, same, false, Skip, false},
		{"changed", edited, same, false, Update, false},
		{"stale fingerprint", present, stale, false, Update, false},
		{"incomplete content", present, incomplete, false, Update, false},
		{"content removed", absent, same, false, Skip, true},
		{"force unchanged", present, same, true, Update, false},
		{"force new", present, nil, true, Create, false},
		{"force never resurrects", absent, same, true, Skip, true},
		{"force without content or state", absent, nil, true, Skip, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Detect(tt.doc, tt.prior, tt.force)
			if d.Verdict != tt.want {
				t.Errorf("Verdict = %s, want %s", d.Verdict, tt.want)
			}
			if d.LocalContentRemoved != tt.removed {
				t.Errorf("LocalContentRemoved = %v, want %v", d.LocalContentRemoved, tt.removed)
			}
			if tt.prior != nil && d.RemoteID != tt.prior.RemoteID {
				t.Errorf("RemoteID = %q, want %q", d.RemoteID, tt.prior.RemoteID)
			}
		})
	}
}

func TestDetect_IgnoresModTime(t *testing.T) {
	body := "same"
	prior := &schema.SyncState{RemoteID: "r1", Fingerprint: schema.Fingerprint(body)}

	for _, mtime := range []time.Time{{}, time.Unix(0, 0), time.Now().Add(24 * time.Hour)} {
		doc := &schema.Document{Path: "a.md", Body: strPtr(body), MTime: mtime}
		if d := Detect(doc, prior, false); d.Verdict != Skip {
			t.Errorf("mtime %v: Verdict = %s, want skip", mtime, d.Verdict)
		}
	}
}

func TestDetect_StoryStatusIsContent(t *testing.T) {
	story := &schema.Story{ID: "1-1-setup", EpicKey: "epic-1", Title: "Setup", Status: "backlog"}
	content, _ := story.Content()
	prior := &schema.SyncState{RemoteID: "row", Fingerprint: schema.Fingerprint(content)}

	if d := Detect(story, prior, false); d.Verdict != Skip {
		t.Fatalf("Verdict = %s, want skip", d.Verdict)
	}
	story.Status = "done"
	if d := Detect(story, prior, false); d.Verdict != Update {
		t.Errorf("Verdict after status change = %s, want update", d.Verdict)
	}
}

func TestCategoryResult_Buckets(t *testing.T) {
	r := newResult(schema.CategoryStory, false)
	r.add(Action{Key: "a", Verdict: Create})
	r.add(Action{Key: "b", Verdict: Update, Err: ErrContentAppend, Partial: true})
	r.add(Action{Key: "c", Verdict: Create, Err: ErrUnmappedStatus})
	r.add(Action{Key: "d", Verdict: Skip, Warning: "w"})

	if r.Created != 1 || r.Updated != 1 || r.Failed != 1 || r.Skipped != 1 {
		t.Errorf("buckets = %+v", countsOf(r))
	}
	if r.Total() != len(r.Actions) {
		t.Errorf("Total = %d, actions = %d", r.Total(), len(r.Actions))
	}
	if len(r.Failures) != 2 || len(r.Warnings) != 1 {
		t.Errorf("failures = %v, warnings = %v", r.Failures, r.Warnings)
	}
}
