package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"redline/internal/review"
)

// findingPayload is the wire shape of a finding as the model reports it:
// the Finding fields minus provenance and ledger bookkeeping.
type findingPayload struct {
	ID                 string   `json:"id,omitempty"`
	Severity           string   `json:"severity"`
	Description        string   `json:"description"`
	Recommendation     string   `json:"recommendation"`
	Confidence         float64  `json:"confidence"`
	AffectedReferences []string `json:"affectedReferences,omitempty"`
	Location           string   `json:"location,omitempty"`
	DetectionReason    string   `json:"detectionReason,omitempty"`
}

func (p findingPayload) toFinding() review.Finding {
	conf := p.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return review.Finding{
		ID:                 strings.TrimSpace(p.ID),
		Severity:           review.NormalizeSeverity(p.Severity),
		Description:        strings.TrimSpace(p.Description),
		Recommendation:     strings.TrimSpace(p.Recommendation),
		Confidence:         conf,
		AffectedReferences: p.AffectedReferences,
		Location:           strings.TrimSpace(p.Location),
		DetectionReason:    strings.TrimSpace(p.DetectionReason),
	}
}

// decodeFindings accepts either {"findings":[...]} or a bare array.
func decodeFindings(raw json.RawMessage) ([]review.Finding, error) {
	var wrapped struct {
		Findings []findingPayload `json:"findings"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Findings == nil {
		var bare []findingPayload
		if err2 := json.Unmarshal(raw, &bare); err2 != nil {
			return nil, fmt.Errorf("provider: decode findings: %w", firstErr(err, err2))
		}
		wrapped.Findings = bare
	}
	out := make([]review.Finding, 0, len(wrapped.Findings))
	for _, p := range wrapped.Findings {
		out = append(out, p.toFinding())
	}
	return out, nil
}

// decodeComponents accepts either {"components":[...]} or a bare array.
func decodeComponents(raw json.RawMessage) ([]Component, error) {
	var wrapped struct {
		Components []Component `json:"components"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Components == nil {
		var bare []Component
		if err2 := json.Unmarshal(raw, &bare); err2 != nil {
			return nil, fmt.Errorf("provider: decode components: %w", firstErr(err, err2))
		}
		wrapped.Components = bare
	}
	return wrapped.Components, nil
}

// turnEnvelope is the structured-action response of a chat turn.
type turnEnvelope struct {
	Reply    string           `json:"reply,omitempty"`
	Action   string           `json:"action,omitempty"`
	Findings []findingPayload `json:"findings,omitempty"`
}

// ParseTurn interprets the raw chat response. An envelope without an action
// (or with action "none") is a plain reply; anything else must name one of
// the four known mutation kinds. Like the tool-loop heuristic: if the raw
// payload is not an envelope at all, the whole text is treated as the reply.
func ParseTurn(raw json.RawMessage) (ChatTurn, error) {
	var env turnEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		var text string
		if err2 := json.Unmarshal(raw, &text); err2 == nil {
			return ChatTurn{Reply: text}, nil
		}
		return ChatTurn{Reply: strings.TrimSpace(string(raw))}, nil
	}

	action := strings.TrimSpace(strings.ToLower(env.Action))
	if action == "" || action == "none" {
		return ChatTurn{Reply: env.Reply}, nil
	}

	var kind review.ActionKind
	switch review.ActionKind(action) {
	case review.ActionAdd, review.ActionEdit, review.ActionDelete, review.ActionBulkAdd:
		kind = review.ActionKind(action)
	default:
		return ChatTurn{}, fmt.Errorf("provider: unknown chat action %q", env.Action)
	}
	if len(env.Findings) == 0 {
		return ChatTurn{}, fmt.Errorf("provider: chat action %q carries no findings", action)
	}
	if kind == review.ActionAdd && len(env.Findings) > 1 {
		kind = review.ActionBulkAdd
	}

	findings := make([]review.Finding, 0, len(env.Findings))
	for _, p := range env.Findings {
		findings = append(findings, p.toFinding())
	}
	return ChatTurn{
		Reply:    env.Reply,
		Proposal: &Proposal{Kind: kind, Findings: findings},
	}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
