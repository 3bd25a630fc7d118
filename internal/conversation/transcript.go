package conversation

import (
	"errors"
	"fmt"

	"github.com/graphtalk/cypher-web-ui/internal/models"
)

var (
	// ErrOpenEntry is returned by Append while a streaming entry is still
	// open; the caller must close it through UpdateLast first.
	ErrOpenEntry = errors.New("transcript has an open entry")
	// ErrEmptyTranscript is returned by UpdateLast when there is nothing to
	// update.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Transcript is the ordered, append-only log of chat entries. It tracks the
// open entry (the one still streaming) by explicit index so the
// one-open-entry invariant is checked directly instead of inferred from
// position. Entries are never reordered or removed; once an entry is
// complete its fields never change again.
//
// Transcript does no locking of its own; the Controller serializes access.
type Transcript struct {
	entries []models.ChatEntry
	openIdx int
	nextSeq int64
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{openIdx: -1}
}

// Append adds entry at the end, assigning its sequence ID. Only assistant
// entries may be appended incomplete, and never while another entry is
// still open.
func (t *Transcript) Append(entry models.ChatEntry) (models.ChatEntry, error) {
	if t.openIdx >= 0 {
		return models.ChatEntry{}, ErrOpenEntry
	}
	if !entry.Complete && entry.Origin != models.OriginAssistant {
		return models.ChatEntry{}, fmt.Errorf("only assistant entries may be appended incomplete, got origin %q", entry.Origin)
	}

	entry.SequenceID = t.nextSeq
	t.nextSeq++
	t.entries = append(t.entries, entry)
	if !entry.Complete {
		t.openIdx = len(t.entries) - 1
	}
	return entry, nil
}

// UpdateLast applies mutate to the last entry. Closing the entry
// (Complete = true) releases the open slot for the next turn.
func (t *Transcript) UpdateLast(mutate func(*models.ChatEntry)) error {
	if len(t.entries) == 0 {
		return ErrEmptyTranscript
	}

	last := &t.entries[len(t.entries)-1]
	mutate(last)
	if last.Complete {
		t.openIdx = -1
	} else {
		t.openIdx = len(t.entries) - 1
	}
	return nil
}

// HasOpenEntry reports whether a streaming entry is still open.
func (t *Transcript) HasOpenEntry() bool {
	return t.openIdx >= 0
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Snapshot returns a copy of the entries for rendering. Mutating the
// returned slice has no effect on the transcript.
func (t *Transcript) Snapshot() []models.ChatEntry {
	out := make([]models.ChatEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
