package review

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock supplies timestamps for provenance and ledger entries. Injected so
// the core stays deterministic under test.
type Clock func() time.Time

// Session is the aggregate tracking a working copy of findings against an
// immutable baseline. It performs no I/O; all methods mutate in-memory state
// only. A Session is not safe for concurrent use — the owner serializes
// access (one interactive user per session).
type Session struct {
	clock Clock
	newID func() string

	baseline []Finding
	current  []Finding
	ledger   Ledger
}

// SessionOption configures a Session at construction.
type SessionOption func(*Session)

// WithClock overrides the timestamp source.
func WithClock(c Clock) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator overrides the id source used for ledger entries and for
// findings created without an id.
func WithIDGenerator(gen func() string) SessionOption {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewSession returns an empty, clean session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dirty reports whether any mutation has been accepted since the last
// seed, commit, or discard.
func (s *Session) Dirty() bool { return s.ledger.Len() > 0 }

// Baseline returns a copy of the committed finding set.
func (s *Session) Baseline() []Finding { return cloneFindings(s.baseline) }

// Current returns a copy of the live working set.
func (s *Session) Current() []Finding { return cloneFindings(s.current) }

// Entries returns a copy of the change ledger.
func (s *Session) Entries() []LedgerEntry { return s.ledger.Entries() }

// Seed installs a fresh detection result as both baseline and working set.
// Rejected while the session is dirty: pending edits must be committed or
// discarded first.
func (s *Session) Seed(findings []Finding) error {
	if s.Dirty() {
		return fmt.Errorf("%w: cannot seed a dirty session", ErrInvalidState)
	}
	seeded := make([]Finding, 0, len(findings))
	seen := make(map[string]struct{}, len(findings))
	for _, f := range findings {
		c := f.Clone()
		if c.ID == "" {
			c.ID = s.newID()
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate finding id %q in seed", ErrInvalidState, c.ID)
		}
		seen[c.ID] = struct{}{}
		seeded = append(seeded, c)
	}
	s.baseline = seeded
	s.current = cloneFindings(seeded)
	s.ledger.Clear()
	return nil
}

// Reset returns the session to its pre-seed state. Used on workflow reset.
func (s *Session) Reset() {
	s.baseline = nil
	s.current = nil
	s.ledger.Clear()
}

// ApplyAdd inserts a new finding into the working set and records it.
// A missing id is assigned; a colliding id is rejected so the uniqueness
// invariant holds.
func (s *Session) ApplyAdd(f Finding, source ChangeSource) (Finding, error) {
	added := f.Clone()
	if added.ID == "" {
		added.ID = s.newID()
	}
	if s.indexOf(added.ID) >= 0 {
		return Finding{}, fmt.Errorf("%w: finding id %q already present", ErrInvalidState, added.ID)
	}
	added.Provenance.IsNew = true
	added.Provenance.LastModified = s.clock()
	s.current = append(s.current, added)
	s.ledger.append(LedgerEntry{
		ID:        s.newID(),
		Timestamp: s.clock(),
		Type:      ChangeAdd,
		Target:    targetFinding,
		TargetID:  added.ID,
		After:     snapshot(added),
		Source:    source,
	})
	return added.Clone(), nil
}

// ApplyEdit replaces the finding with f.ID by f, preserving position.
func (s *Session) ApplyEdit(f Finding, source ChangeSource) (Finding, error) {
	i := s.indexOf(f.ID)
	if i < 0 {
		return Finding{}, fmt.Errorf("%w: finding %q", ErrNotFound, f.ID)
	}
	before := s.current[i]
	edited := f.Clone()
	edited.Provenance.CreatedBy = before.Provenance.CreatedBy
	edited.Provenance.IsNew = before.Provenance.IsNew
	edited.Provenance.IsModified = true
	edited.Provenance.LastModified = s.clock()
	s.current[i] = edited
	s.ledger.append(LedgerEntry{
		ID:        s.newID(),
		Timestamp: s.clock(),
		Type:      ChangeEdit,
		Target:    targetFinding,
		TargetID:  edited.ID,
		Before:    snapshot(before),
		After:     snapshot(edited),
		Source:    source,
	})
	return edited.Clone(), nil
}

// ApplyDelete removes the finding with the given id from the working set and
// records its last state so it can be restored later.
func (s *Session) ApplyDelete(id string, source ChangeSource) (LedgerEntry, error) {
	i := s.indexOf(id)
	if i < 0 {
		return LedgerEntry{}, fmt.Errorf("%w: finding %q", ErrNotFound, id)
	}
	removed := s.current[i]
	s.current = append(s.current[:i], s.current[i+1:]...)
	entry := LedgerEntry{
		ID:        s.newID(),
		Timestamp: s.clock(),
		Type:      ChangeDelete,
		Target:    targetFinding,
		TargetID:  removed.ID,
		Before:    snapshot(removed),
		Source:    source,
	}
	s.ledger.append(entry)
	return entry, nil
}

// ApplyRestore revives the finding recorded by an earlier delete entry.
// The referenced entry must be a delete with a recorded before-state, and the
// finding must not have been re-added in the meantime.
func (s *Session) ApplyRestore(entryID string, source ChangeSource) (Finding, error) {
	entry, ok := s.ledger.Find(entryID)
	if !ok {
		return Finding{}, fmt.Errorf("%w: ledger entry %q", ErrNotFound, entryID)
	}
	if entry.Type != ChangeDelete || entry.Before == nil {
		return Finding{}, fmt.Errorf("%w: ledger entry %q is not a restorable delete", ErrInvalidState, entryID)
	}
	revived := entry.Before.Clone()
	if s.indexOf(revived.ID) >= 0 {
		return Finding{}, fmt.Errorf("%w: finding %q already present", ErrInvalidState, revived.ID)
	}
	s.current = append(s.current, revived)
	s.ledger.append(LedgerEntry{
		ID:        s.newID(),
		Timestamp: s.clock(),
		Type:      ChangeRestore,
		Target:    targetFinding,
		TargetID:  revived.ID,
		After:     snapshot(revived),
		Source:    source,
	})
	return revived.Clone(), nil
}

// Discard reverts the working set to the baseline and clears the ledger.
// Always succeeds.
func (s *Session) Discard() {
	s.current = cloneFindings(s.baseline)
	s.ledger.Clear()
}

// Commit promotes newBaseline to be both baseline and working set and clears
// the ledger. Called by the regeneration coordinator after all artifact
// generation succeeded; the argument is passed explicitly to keep the
// operation pure and testable.
func (s *Session) Commit(newBaseline []Finding) {
	s.baseline = cloneFindings(newBaseline)
	s.current = cloneFindings(newBaseline)
	s.ledger.Clear()
}

func (s *Session) indexOf(id string) int {
	for i, f := range s.current {
		if f.ID == id {
			return i
		}
	}
	return -1
}
