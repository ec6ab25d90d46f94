package reviewsession

import (
	"context"

	"redline/internal/provider"
	"redline/internal/review"
)

// ChatResult is the outcome of one conversational turn.
type ChatResult struct {
	Reply  string
	Action *review.PendingAction
}

// SendMessage runs one chat turn. A single request may be outstanding per
// session; the proposal, if any, is queued for confirmation and never applied
// directly.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string) (ChatResult, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return ChatResult{}, err
	}

	s.mu.Lock()
	st := s.getOrCreateLocked(sessionID)
	if st.chatBusy {
		s.mu.Unlock()
		return ChatResult{}, ErrBusy
	}
	st.chatBusy = true
	req := provider.ChatRequest{
		History:    append([]provider.ChatMessage(nil), st.conversation...),
		UserText:   text,
		Findings:   st.session.Current(),
		Components: append([]provider.Component(nil), st.components...),
	}
	s.mu.Unlock()

	turn, err := s.ai.Propose(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	st.chatBusy = false
	if err != nil {
		return ChatResult{}, &review.CollaboratorError{Op: "chat propose", Err: err}
	}

	st.conversation = append(st.conversation,
		provider.ChatMessage{Role: provider.RoleUser, Content: text},
		provider.ChatMessage{Role: provider.RoleAssistant, Content: turn.Reply},
	)

	result := ChatResult{Reply: turn.Reply}
	if turn.Proposal != nil {
		action := review.PendingAction{
			ID:           newActionID(),
			Kind:         turn.Proposal.Kind,
			Payload:      turn.Proposal.Findings,
			SourcePrompt: text,
			CreatedAt:    s.clock(),
		}
		st.queue.Enqueue(action)
		result.Action = &action
		s.emitLocked(st, Event{
			Kind:      EventProposalPending,
			SessionID: sessionID,
			Action:    &action,
		})
	}
	return result, nil
}

// ProposeFromChat queues an externally constructed proposal. Exposed for
// callers that drive the chat collaborator themselves.
func (s *Service) ProposeFromChat(sessionID string, action review.PendingAction) (review.PendingAction, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return review.PendingAction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	if action.ID == "" {
		action.ID = newActionID()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = s.clock()
	}
	st.queue.Enqueue(action)
	s.emitLocked(st, Event{Kind: EventProposalPending, SessionID: sessionID, Action: &action})
	return action, nil
}

// ConfirmProposal applies a pending action to the session.
func (s *Service) ConfirmProposal(sessionID, actionID string) ([]review.LedgerEntry, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	entries, err := st.reconciler.Confirm(actionID)
	if err != nil {
		return nil, err
	}
	s.emitLocked(st, Event{Kind: EventProposalResolved, SessionID: sessionID, ActionID: actionID})
	s.emitFindingsChangedLocked(st, sessionID)
	return entries, nil
}

// DenyProposal removes a pending action without touching the session.
func (s *Service) DenyProposal(sessionID, actionID string) error {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	if err := st.reconciler.Deny(actionID); err != nil {
		return err
	}
	s.emitLocked(st, Event{Kind: EventProposalResolved, SessionID: sessionID, ActionID: actionID})
	return nil
}

// Conversation returns a copy of the chat history.
func (s *Service) Conversation(sessionID string) ([]provider.ChatMessage, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.ChatMessage(nil), s.getOrCreateLocked(sessionID).conversation...), nil
}
