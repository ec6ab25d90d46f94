package rpc

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"redline/internal/gateway/service/reviewsession"
	"redline/internal/provider"
	"redline/internal/review"
)

// ReviewHandler serves the session curation procedures.
type ReviewHandler struct {
	svc *reviewsession.Service
}

func NewReviewHandler(svc *reviewsession.Service) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

type AnalyzeRequest struct {
	SessionID string `json:"sessionId"`
	Image     []byte `json:"image"`
}

type AnalyzeResponse struct {
	Components []provider.Component `json:"components"`
	Findings   []review.Finding     `json:"findings"`
}

type StateRequest struct {
	SessionID string `json:"sessionId"`
}

type StateResponse struct {
	Findings   []review.Finding       `json:"findings"`
	Components []provider.Component   `json:"components"`
	Ledger     []review.LedgerEntry   `json:"ledger"`
	Pending    []review.PendingAction `json:"pending"`
	Dirty      bool                   `json:"dirty"`
}

type FindingRequest struct {
	SessionID string         `json:"sessionId"`
	Finding   review.Finding `json:"finding"`
}

type FindingResponse struct {
	Finding review.Finding `json:"finding"`
}

type DeleteFindingRequest struct {
	SessionID string `json:"sessionId"`
	FindingID string `json:"findingId"`
}

type DeleteFindingResponse struct {
	Entry review.LedgerEntry `json:"entry"`
}

type RestoreFindingRequest struct {
	SessionID string `json:"sessionId"`
	EntryID   string `json:"entryId"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type RegenerateResponse struct {
	Artifacts reviewsession.ArtifactRefs `json:"artifacts"`
}

func (h *ReviewHandler) analyze(ctx context.Context, req *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if len(req.Msg.Image) == 0 {
		return nil, requireField("image", "")
	}
	if err := h.svc.Analyze(ctx, sessionID, req.Msg.Image); err != nil {
		return nil, asConnectError(err)
	}
	components, err := h.svc.Components(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	findings, err := h.svc.Findings(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&AnalyzeResponse{Components: components, Findings: findings}), nil
}

func (h *ReviewHandler) state(_ context.Context, req *connect.Request[StateRequest]) (*connect.Response[StateResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	findings, err := h.svc.Findings(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	components, err := h.svc.Components(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	ledger, err := h.svc.LedgerEntries(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	pending, err := h.svc.PendingActions(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	dirty, err := h.svc.IsDirty(sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&StateResponse{
		Findings:   findings,
		Components: components,
		Ledger:     ledger,
		Pending:    pending,
		Dirty:      dirty,
	}), nil
}

func (h *ReviewHandler) addFinding(_ context.Context, req *connect.Request[FindingRequest]) (*connect.Response[FindingResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	added, err := h.svc.AddFinding(sessionID, req.Msg.Finding)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&FindingResponse{Finding: added}), nil
}

func (h *ReviewHandler) editFinding(_ context.Context, req *connect.Request[FindingRequest]) (*connect.Response[FindingResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := requireField("finding.id", strings.TrimSpace(req.Msg.Finding.ID)); err != nil {
		return nil, err
	}
	edited, err := h.svc.EditFinding(sessionID, req.Msg.Finding)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&FindingResponse{Finding: edited}), nil
}

func (h *ReviewHandler) deleteFinding(_ context.Context, req *connect.Request[DeleteFindingRequest]) (*connect.Response[DeleteFindingResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := requireField("finding_id", strings.TrimSpace(req.Msg.FindingID)); err != nil {
		return nil, err
	}
	entry, err := h.svc.DeleteFinding(sessionID, req.Msg.FindingID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&DeleteFindingResponse{Entry: entry}), nil
}

func (h *ReviewHandler) restoreFinding(_ context.Context, req *connect.Request[RestoreFindingRequest]) (*connect.Response[FindingResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := requireField("entry_id", strings.TrimSpace(req.Msg.EntryID)); err != nil {
		return nil, err
	}
	revived, err := h.svc.RestoreFinding(sessionID, req.Msg.EntryID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&FindingResponse{Finding: revived}), nil
}

func (h *ReviewHandler) discard(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[OKResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := h.svc.DiscardChanges(sessionID); err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&OKResponse{OK: true}), nil
}

func (h *ReviewHandler) reset(_ context.Context, req *connect.Request[SessionRequest]) (*connect.Response[OKResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	if err := h.svc.ResetWorkflow(sessionID); err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&OKResponse{OK: true}), nil
}

func (h *ReviewHandler) regenerate(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[RegenerateResponse], error) {
	sessionID := strings.TrimSpace(req.Msg.SessionID)
	if err := requireField("session_id", sessionID); err != nil {
		return nil, err
	}
	refs, err := h.svc.Regenerate(ctx, sessionID)
	if err != nil {
		return nil, asConnectError(err)
	}
	return connect.NewResponse(&RegenerateResponse{Artifacts: *refs}), nil
}

// Mount registers every review procedure on the mux.
func (h *ReviewHandler) Mount(mux *http.ServeMux) {
	const prefix = "/redline.v1.ReviewService/"
	opts := handlerOptions()
	mux.Handle(prefix+"Analyze", connect.NewUnaryHandler(prefix+"Analyze", h.analyze, opts...))
	mux.Handle(prefix+"GetState", connect.NewUnaryHandler(prefix+"GetState", h.state, opts...))
	mux.Handle(prefix+"AddFinding", connect.NewUnaryHandler(prefix+"AddFinding", h.addFinding, opts...))
	mux.Handle(prefix+"EditFinding", connect.NewUnaryHandler(prefix+"EditFinding", h.editFinding, opts...))
	mux.Handle(prefix+"DeleteFinding", connect.NewUnaryHandler(prefix+"DeleteFinding", h.deleteFinding, opts...))
	mux.Handle(prefix+"RestoreFinding", connect.NewUnaryHandler(prefix+"RestoreFinding", h.restoreFinding, opts...))
	mux.Handle(prefix+"DiscardChanges", connect.NewUnaryHandler(prefix+"DiscardChanges", h.discard, opts...))
	mux.Handle(prefix+"ResetWorkflow", connect.NewUnaryHandler(prefix+"ResetWorkflow", h.reset, opts...))
	mux.Handle(prefix+"Regenerate", connect.NewUnaryHandler(prefix+"Regenerate", h.regenerate, opts...))
}
