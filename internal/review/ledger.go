package review

import "time"

// ChangeType identifies what a ledger entry did to the working set.
type ChangeType string

const (
	ChangeAdd     ChangeType = "add"
	ChangeEdit    ChangeType = "edit"
	ChangeDelete  ChangeType = "delete"
	ChangeRestore ChangeType = "restore"
)

// ChangeSource identifies which mutation path produced an entry.
type ChangeSource string

const (
	SourceManual ChangeSource = "manual"
	SourceChat   ChangeSource = "chat"
)

// LedgerEntry is an immutable record of one accepted mutation.
// Exactly one of Before/After is nil for add/delete; both are set for edit;
// restore carries only After (the revived finding).
type LedgerEntry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Type      ChangeType   `json:"type"`
	Target    string       `json:"target"`
	TargetID  string       `json:"targetId"`
	Before    *Finding     `json:"beforeState,omitempty"`
	After     *Finding     `json:"afterState,omitempty"`
	Source    ChangeSource `json:"source"`
}

const targetFinding = "finding"

// Ledger is the append-only change log owned by a Session. Entries are never
// mutated after creation: a restore appends a new entry rather than amending
// the delete it reverses, so the history stays a true audit trail.
type Ledger struct {
	entries []LedgerEntry
}

func (l *Ledger) append(e LedgerEntry) {
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the log in append order.
func (l *Ledger) Entries() []LedgerEntry {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Find returns the entry with the given id.
func (l *Ledger) Find(id string) (LedgerEntry, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

func (l *Ledger) Len() int { return len(l.entries) }

// Clear drops all entries. Called on commit and discard.
func (l *Ledger) Clear() { l.entries = nil }

func snapshot(f Finding) *Finding {
	c := f.Clone()
	return &c
}
