package sync

import "github.com/bmad-tools/bmadnotion/internal/schema"

// Verdict is the action decided for one artifact.
type Verdict int

const (
	Skip Verdict = iota
	Create
	Update
)

func (v Verdict) String() string {
	switch v {
	case Create:
		return "create"
	case Update:
		return "update"
	default:
		return "skip"
	}
}

// Decision is the outcome of Detect.
type Decision struct {
	Verdict Verdict
	// Fingerprint of the current content; empty when content is absent.
	Fingerprint string
	// RemoteID from the prior state, if any.
	RemoteID string
	// LocalContentRemoved is set when an artifact synced before has no
	// content now. The remote entity is left alone.
	LocalContentRemoved bool
}

// Detect decides what to do with an artifact given its prior sync state,
// which is nil when the artifact was never synced.
func Detect(a schema.Artifact, prior *schema.SyncState, force bool) Decision {
	var d Decision
	if prior != nil {
		d.RemoteID = prior.RemoteID
	}

	content, ok := a.Content()
	if !ok {
		d.Verdict = Skip
		d.LocalContentRemoved = prior != nil
		return d
	}
	d.Fingerprint = schema.Fingerprint(content)

	switch {
	case prior == nil:
		d.Verdict = Create
	case force || prior.Fingerprint != d.Fingerprint:
		d.Verdict = Update
	default:
		d.Verdict = Skip
	}
	return d
}
