package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"redline/internal/gateway/service/reviewsession"
	"redline/internal/review"
)

// ChatHandler serves the conversational curation procedures.
type ChatHandler struct {
	svc *reviewsession.Service
}

func NewChatHandler(svc *reviewsession.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type SendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type SendMessageResponse struct {
	Reply  string                `json:"reply"`
	Action *review.PendingAction `json:"action,omitempty"`
}

type ProposalRequest struct {
	SessionID string `json:"sessionId"`
	ActionID  string `json:"actionId"`
}

type ConfirmProposalResponse struct {
	Entries []review.LedgerEntry `json:"entries"`
}

type ListProposalsRequest struct {
	SessionID string `json:"sessionId"`
}

type ListProposalsResponse struct {
	Actions []review.PendingAction `json:"actions"`
}

func (h *ChatHandler) sendMessage(ctx context.Context, req *connect.Request[SendMessageRequest]) (*connect.Response[SendMessageResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Msg.Text)
	if err := requireField("text", text); err != nil {
		return nil, err
	}
	result, err := h.svc.SendMessage(ctx, sessionID, text)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&SendMessageResponse{Reply: result.Reply, Action: result.Action}), nil
}

func (h *ChatHandler) confirm(_ context.Context, req *connect.Request[ProposalRequest]) (*connect.Response[ConfirmProposalResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := requireField("action_id", strings.TrimSpace(req.Msg.ActionID)); err != nil {
		return nil, err
	}
	entries, err := h.svc.ConfirmProposal(sessionID, req.Msg.ActionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&ConfirmProposalResponse{Entries: entries}), nil
}

func (h *ChatHandler) deny(_ context.Context, req *connect.Request[ProposalRequest]) (*connect.Response[OKResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := requireField("action_id", strings.TrimSpace(req.Msg.ActionID)); err != nil {
		return nil, err
	}
	if err := h.svc.DenyProposal(sessionID, req.Msg.ActionID); err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&OKResponse{OK: true}), nil
}

func (h *ChatHandler) list(_ context.Context, req *connect.Request[ListProposalsRequest]) (*connect.Response[ListProposalsResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	actions, err := h.svc.PendingActions(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&ListProposalsResponse{Actions: actions}), nil
}

// Mount registers every chat procedure on the mux.
func (h *ChatHandler) Mount(mux *http.ServeMux) {
	const prefix = "/redline.v1.ChatService/"
	opts := handlerOptions()
	mux.Handle(prefix+"SendMessage", connect.NewUnaryHandler(prefix+"SendMessage", h.sendMessage, opts...))
	mux.Handle(prefix+"ConfirmProposal", connect.NewUnaryHandler(prefix+"ConfirmProposal", h.confirm, opts...))
	mux.Handle(prefix+"DenyProposal", connect.NewUnaryHandler(prefix+"DenyProposal", h.deny, opts...))
	mux.Handle(prefix+"ListProposals", connect.NewUnaryHandler(prefix+"ListProposals", h.list, opts...))
}
