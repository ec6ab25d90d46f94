package reviewsession

import (
	"context"

	"redline/internal/provider"
	"redline/internal/review"
)

// EventKind tags what changed in a review session.
type EventKind string

const (
	EventComponentsSeeded     EventKind = "components_seeded"
	EventFindingsSeeded       EventKind = "findings_seeded"
	EventFindingsChanged      EventKind = "findings_changed"
	EventProposalPending      EventKind = "proposal_pending"
	EventProposalResolved     EventKind = "proposal_resolved"
	EventRegenerationStarted  EventKind = "regeneration_started"
	EventRegenerationFinished EventKind = "regeneration_finished"
	EventRegenerationFailed   EventKind = "regeneration_failed"
	EventWorkflowReset        EventKind = "workflow_reset"
)

// Event is one session update pushed to watchers. Only the fields relevant
// to the kind are populated.
type Event struct {
	Kind       EventKind             `json:"kind"`
	SessionID  string                `json:"sessionId"`
	Dirty      bool                  `json:"dirty"`
	Findings   []review.Finding      `json:"findings,omitempty"`
	Components []provider.Component  `json:"components,omitempty"`
	Action     *review.PendingAction `json:"action,omitempty"`
	ActionID   string                `json:"actionId,omitempty"`
	Artifacts  *ArtifactRefs         `json:"artifacts,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// ArtifactRefs points at the outputs of one successful regeneration. URLs are
// presigned when the backing store supports them; paths always resolve via
// the gateway's artifact endpoint.
type ArtifactRefs struct {
	AnnotatedPath string `json:"annotatedPath"`
	CorrectedPath string `json:"correctedPath"`
	AnnotatedURL  string `json:"annotatedUrl,omitempty"`
	CorrectedURL  string `json:"correctedUrl,omitempty"`
}

// Subscribe emits session updates until ctx is canceled. Events accumulated
// between reads are delivered in order; the channel drops the oldest update
// if a slow consumer falls too far behind.
func (s *Service) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			st := s.getOrCreateLocked(sessionID)
			pending := st.outbox
			st.outbox = nil
			ch := st.changed
			s.mu.Unlock()

			for _, ev := range pending {
				pushEvent(out, ev)
			}

			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()

	return out, nil
}

func pushEvent(out chan Event, ev Event) {
	select {
	case out <- ev:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- ev:
	default:
	}
}
