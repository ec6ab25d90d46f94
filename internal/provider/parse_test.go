package provider

import (
	"encoding/json"
	"testing"

	"redline/internal/review"
)

func TestParseTurnReplyOnly(t *testing.T) {
	turn, err := ParseTurn(json.RawMessage(`{"reply":"looks fine","action":"none"}`))
	if err != nil {
		t.Fatalf("ParseTurn() error = %v", err)
	}
	if turn.Reply != "looks fine" || turn.Proposal != nil {
		t.Fatalf("ParseTurn() = %+v, want reply without proposal", turn)
	}
}

func TestParseTurnMissingActionIsReply(t *testing.T) {
	turn, err := ParseTurn(json.RawMessage(`{"reply":"just chatting"}`))
	if err != nil {
		t.Fatalf("ParseTurn() error = %v", err)
	}
	if turn.Proposal != nil {
		t.Fatalf("ParseTurn() proposal = %+v, want nil", turn.Proposal)
	}
}

func TestParseTurnAddProposal(t *testing.T) {
	raw := json.RawMessage(`{
		"reply": "adding one",
		"action": "add",
		"findings": [{"severity":"Warning","description":"missing label","confidence":0.8}]
	}`)
	turn, err := ParseTurn(raw)
	if err != nil {
		t.Fatalf("ParseTurn() error = %v", err)
	}
	if turn.Proposal == nil || turn.Proposal.Kind != review.ActionAdd {
		t.Fatalf("ParseTurn() proposal = %+v, want add", turn.Proposal)
	}
	f := turn.Proposal.Findings[0]
	if f.Severity != review.SeverityWarning || f.Description != "missing label" {
		t.Fatalf("ParseTurn() finding = %+v", f)
	}
}

func TestParseTurnMultiAddBecomesBulk(t *testing.T) {
	raw := json.RawMessage(`{"action":"add","findings":[{"description":"a"},{"description":"b"}]}`)
	turn, err := ParseTurn(raw)
	if err != nil {
		t.Fatalf("ParseTurn() error = %v", err)
	}
	if turn.Proposal.Kind != review.ActionBulkAdd || len(turn.Proposal.Findings) != 2 {
		t.Fatalf("ParseTurn() = %+v, want bulk-add of 2", turn.Proposal)
	}
}

func TestParseTurnUnknownAction(t *testing.T) {
	if _, err := ParseTurn(json.RawMessage(`{"action":"merge","findings":[{}]}`)); err == nil {
		t.Fatalf("ParseTurn(unknown action) error = nil, want error")
	}
}

func TestParseTurnActionWithoutFindings(t *testing.T) {
	if _, err := ParseTurn(json.RawMessage(`{"action":"delete"}`)); err == nil {
		t.Fatalf("ParseTurn(empty delete) error = nil, want error")
	}
}

func TestParseTurnBareString(t *testing.T) {
	turn, err := ParseTurn(json.RawMessage(`"plain text answer"`))
	if err != nil {
		t.Fatalf("ParseTurn() error = %v", err)
	}
	if turn.Reply != "plain text answer" {
		t.Fatalf("ParseTurn() reply = %q", turn.Reply)
	}
}

func TestDecodeFindingsWrappedAndBare(t *testing.T) {
	wrapped := json.RawMessage(`{"findings":[{"severity":"critical","description":"x","confidence":1.4}]}`)
	got, err := decodeFindings(wrapped)
	if err != nil {
		t.Fatalf("decodeFindings(wrapped) error = %v", err)
	}
	if len(got) != 1 || got[0].Severity != review.SeverityCritical {
		t.Fatalf("decodeFindings(wrapped) = %+v", got)
	}
	if got[0].Confidence != 1 {
		t.Fatalf("confidence not clamped: %v", got[0].Confidence)
	}

	bare := json.RawMessage(`[{"severity":"bogus","description":"y"}]`)
	got, err = decodeFindings(bare)
	if err != nil {
		t.Fatalf("decodeFindings(bare) error = %v", err)
	}
	if len(got) != 1 || got[0].Severity != review.SeverityInfo {
		t.Fatalf("decodeFindings(bare) = %+v, want info fallback severity", got)
	}
}

func TestDecodeComponents(t *testing.T) {
	raw := json.RawMessage(`{"components":[{"type":"fuse","name":"F1"}]}`)
	got, err := decodeComponents(raw)
	if err != nil {
		t.Fatalf("decodeComponents() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "F1" {
		t.Fatalf("decodeComponents() = %+v", got)
	}
}
