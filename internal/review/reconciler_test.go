package review

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Session, *ActionQueue) {
	t.Helper()
	s := newTestSession(t, seedFindings()...)
	q := NewActionQueue()
	return NewReconciler(s, q), s, q
}

func pendingAdd(id string, findings ...Finding) PendingAction {
	return PendingAction{
		ID:           id,
		Kind:         ActionBulkAdd,
		Payload:      findings,
		SourcePrompt: "add findings for the missing labels",
		CreatedAt:    time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
	}
}

func TestConfirmBulkAddOneEntryPerFinding(t *testing.T) {
	r, s, q := newTestReconciler(t)
	q.Enqueue(pendingAdd("a1",
		Finding{Description: "first proposed"},
		Finding{Description: "second proposed"},
		Finding{Description: "third proposed"},
	))

	entries, err := r.Confirm("a1")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Confirm() produced %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Type != ChangeAdd || e.Source != SourceChat {
			t.Fatalf("entry %d = %s/%s, want add/chat", i, e.Type, e.Source)
		}
	}
	// Payload order is preserved.
	got := s.Current()
	tail := got[len(got)-3:]
	if tail[0].Description != "first proposed" || tail[2].Description != "third proposed" {
		t.Fatalf("bulk add out of order: %q, %q, %q", tail[0].Description, tail[1].Description, tail[2].Description)
	}
	for _, f := range tail {
		if f.Provenance.CreatedBy != CreatedByAI || !f.Provenance.IsNew {
			t.Fatalf("confirmed finding provenance = %+v, want ai/new", f.Provenance)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue length after confirm = %d, want 0", q.Len())
	}
	assertUniqueIDs(t, got)
}

func TestConfirmEditAction(t *testing.T) {
	r, s, q := newTestReconciler(t)
	edited := seedFindings()[0]
	edited.Severity = SeverityWarning
	q.Enqueue(PendingAction{ID: "a2", Kind: ActionEdit, Payload: []Finding{edited}})

	entries, err := r.Confirm("a2")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Type != ChangeEdit {
		t.Fatalf("Confirm(edit) entries = %+v, want one edit entry", entries)
	}
	if got := s.Current()[0]; got.Severity != SeverityWarning || !got.Provenance.IsModified {
		t.Fatalf("Current()[0] = %+v, want warning severity and modified flag", got)
	}
}

func TestConfirmDeleteAction(t *testing.T) {
	r, s, q := newTestReconciler(t)
	q.Enqueue(PendingAction{ID: "a3", Kind: ActionDelete, Payload: []Finding{{ID: "f2"}}})

	entries, err := r.Confirm("a3")
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Type != ChangeDelete || entries[0].TargetID != "f2" {
		t.Fatalf("Confirm(delete) entries = %+v, want one delete of f2", entries)
	}
	if len(s.Current()) != 1 {
		t.Fatalf("Current() length = %d, want 1", len(s.Current()))
	}
}

func TestConfirmUnknownAction(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	if _, err := r.Confirm("ghost"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("Confirm(unknown) error = %v, want ErrActionNotFound", err)
	}
}

func TestConfirmDeleteOfMissingFindingKeepsAction(t *testing.T) {
	r, _, q := newTestReconciler(t)
	q.Enqueue(PendingAction{ID: "a4", Kind: ActionDelete, Payload: []Finding{{ID: "ghost"}}})
	if _, err := r.Confirm("a4"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Confirm(delete ghost) error = %v, want ErrNotFound", err)
	}
	if q.Len() != 1 {
		t.Fatalf("failed confirm removed the action from the queue")
	}
}

func TestDenyLeavesSessionUntouched(t *testing.T) {
	r, s, q := newTestReconciler(t)
	current := s.Current()
	q.Enqueue(pendingAdd("a5", Finding{Description: "never applied"}))

	if err := r.Deny("a5"); err != nil {
		t.Fatalf("Deny() error = %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("queue length after deny = %d, want 0", q.Len())
	}
	if got := s.Current(); !reflect.DeepEqual(got, current) {
		t.Fatalf("Current() changed by deny")
	}
	if len(s.Entries()) != 0 {
		t.Fatalf("Entries() = %d after deny, want 0", len(s.Entries()))
	}
}

func TestDenyUnknownAction(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	if err := r.Deny("ghost"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("Deny(unknown) error = %v, want ErrActionNotFound", err)
	}
}

func TestQueueOrderAndClear(t *testing.T) {
	q := NewActionQueue()
	q.Enqueue(pendingAdd("x1", Finding{}))
	q.Enqueue(pendingAdd("x2", Finding{}))
	q.Enqueue(pendingAdd("x3", Finding{}))
	q.Remove("x2")

	all := q.All()
	if len(all) != 2 || all[0].ID != "x1" || all[1].ID != "x3" {
		t.Fatalf("All() = %+v, want x1, x3", all)
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", q.Len())
	}
}

func TestConfirmBulkAddRejectsCollidingBatchWhole(t *testing.T) {
	r, s, q := newTestReconciler(t)
	q.Enqueue(pendingAdd("a1",
		Finding{Description: "valid proposed finding"},
		Finding{ID: "f1", Description: "collides with an existing finding"},
	))

	if _, err := r.Confirm("a1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Confirm() error = %v, want ErrInvalidState", err)
	}
	// Nothing from the batch was applied.
	if got := len(s.Current()); got != 2 {
		t.Fatalf("len(Current()) = %d, want 2", got)
	}
	if s.Dirty() {
		t.Fatalf("Dirty() = true after rejected batch, want false")
	}
	if q.Len() != 1 {
		t.Fatalf("queue Len() = %d, want 1", q.Len())
	}
}

func TestConfirmBulkAddRejectsDuplicateIDsInPayload(t *testing.T) {
	r, s, q := newTestReconciler(t)
	q.Enqueue(pendingAdd("a1",
		Finding{ID: "p1", Description: "first"},
		Finding{ID: "p1", Description: "same id twice"},
	))

	if _, err := r.Confirm("a1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Confirm() error = %v, want ErrInvalidState", err)
	}
	if s.Dirty() {
		t.Fatalf("Dirty() = true after rejected batch, want false")
	}
	if q.Len() != 1 {
		t.Fatalf("queue Len() = %d, want 1", q.Len())
	}
}
