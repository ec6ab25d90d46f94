package review

import "fmt"

// Reconciler translates confirmed or denied pending actions into session
// mutations. It is the only writer that moves proposed findings into the
// session.
type Reconciler struct {
	session *Session
	queue   *ActionQueue
}

func NewReconciler(session *Session, queue *ActionQueue) *Reconciler {
	return &Reconciler{session: session, queue: queue}
}

// Confirm applies the identified proposal to the session and removes it from
// the queue. Bulk payloads are applied in order, one ledger entry each, so
// restore granularity matches add granularity. Add payloads are validated
// against the working set as a whole before any of them is applied: a
// rejected batch leaves session and queue untouched.
func (r *Reconciler) Confirm(actionID string) ([]LedgerEntry, error) {
	action, ok := r.queue.Get(actionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotFound, actionID)
	}
	before := r.session.ledger.Len()

	switch action.Kind {
	case ActionAdd, ActionBulkAdd:
		seen := make(map[string]struct{}, len(action.Payload))
		for _, f := range action.Payload {
			if f.ID == "" {
				continue
			}
			if _, dup := seen[f.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate finding id %q in action %q", ErrInvalidState, f.ID, actionID)
			}
			seen[f.ID] = struct{}{}
			if r.session.indexOf(f.ID) >= 0 {
				return nil, fmt.Errorf("%w: finding id %q already present", ErrInvalidState, f.ID)
			}
		}
		for _, f := range action.Payload {
			f.Provenance.CreatedBy = CreatedByAI
			f.Provenance.IsNew = true
			if _, err := r.session.ApplyAdd(f, SourceChat); err != nil {
				return nil, err
			}
		}
	case ActionEdit:
		if len(action.Payload) == 0 {
			return nil, fmt.Errorf("%w: edit action %q has no payload", ErrInvalidState, actionID)
		}
		if _, err := r.session.ApplyEdit(action.Payload[0], SourceChat); err != nil {
			return nil, err
		}
	case ActionDelete:
		if len(action.Payload) == 0 {
			return nil, fmt.Errorf("%w: delete action %q has no payload", ErrInvalidState, actionID)
		}
		if _, err := r.session.ApplyDelete(action.Payload[0].ID, SourceChat); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown action kind %q", ErrInvalidState, action.Kind)
	}

	r.queue.Remove(actionID)
	entries := r.session.Entries()
	return entries[before:], nil
}

// Deny removes the proposal without touching the session.
func (r *Reconciler) Deny(actionID string) error {
	if !r.queue.Remove(actionID) {
		return fmt.Errorf("%w: %q", ErrActionNotFound, actionID)
	}
	return nil
}
