package review

import (
	"sync"
	"time"
)

// ActionKind is the closed set of proposal shapes the chat collaborator may
// produce. A new kind is a schema change, not a runtime extension point.
type ActionKind string

const (
	ActionAdd     ActionKind = "add"
	ActionEdit    ActionKind = "edit"
	ActionDelete  ActionKind = "delete"
	ActionBulkAdd ActionKind = "bulk-add"
)

// PendingAction is a chat-proposed mutation awaiting human confirmation.
// Its payload findings are proposed values, not yet owned by the session;
// confirmation is the sole transfer point.
type PendingAction struct {
	ID           string     `json:"id"`
	Kind         ActionKind `json:"kind"`
	Payload      []Finding  `json:"payload"`
	SourcePrompt string     `json:"sourcePrompt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func (a PendingAction) clone() PendingAction {
	out := a
	out.Payload = cloneFindings(a.Payload)
	return out
}

// ActionQueue holds proposals keyed by action id, in arrival order. Proposals
// arrive serially in practice (one function call per chat turn) but the queue
// is safe for multiple concurrently pending actions.
type ActionQueue struct {
	mu    sync.Mutex
	order []string
	byID  map[string]PendingAction
}

func NewActionQueue() *ActionQueue {
	return &ActionQueue{byID: make(map[string]PendingAction)}
}

// Enqueue stores the action. An existing action with the same id is replaced
// in place.
func (q *ActionQueue) Enqueue(a PendingAction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[a.ID]; !ok {
		q.order = append(q.order, a.ID)
	}
	q.byID[a.ID] = a.clone()
}

// Get returns the action without removing it.
func (q *ActionQueue) Get(id string) (PendingAction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.byID[id]
	if !ok {
		return PendingAction{}, false
	}
	return a.clone(), true
}

// Remove drops the action, reporting whether it existed.
func (q *ActionQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[id]; !ok {
		return false
	}
	delete(q.byID, id)
	for i, got := range q.order {
		if got == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// All returns the pending actions in arrival order.
func (q *ActionQueue) All() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingAction, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.byID[id].clone())
	}
	return out
}

// Clear drops every pending action. Called after a successful regeneration:
// outstanding proposals reference findings that may no longer match the new
// baseline.
func (q *ActionQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = nil
	q.byID = make(map[string]PendingAction)
}

func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
