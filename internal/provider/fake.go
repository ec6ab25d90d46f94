package provider

import (
	"context"
	"strings"

	"redline/internal/review"
)

// fakePNG is a valid 1x1 PNG, enough for callers that only move bytes around.
var fakePNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// FakeProvider returns deterministic, minimal results for offline runs and
// tests. Chat behavior keys off words in the user text.
type FakeProvider struct{}

func NewFakeProvider() *FakeProvider { return &FakeProvider{} }

func (f *FakeProvider) Name() string { return "FakeProvider" }
func (f *FakeProvider) Close() error { return nil }

func (f *FakeProvider) RecognizeComponents(_ context.Context, _ []byte) ([]Component, error) {
	return []Component{
		{Type: "relay", Name: "K1", Description: "control relay, coil on sheet 1"},
		{Type: "fuse", Name: "F1", Description: "line fuse ahead of transformer"},
		{Type: "terminal-block", Name: "TB1", Description: "field wiring terminals"},
	}, nil
}

func (f *FakeProvider) DetectFindings(_ context.Context, _ []byte) ([]review.Finding, error) {
	return []review.Finding{
		{
			Severity:           review.SeverityCritical,
			Description:        "relay coil has no flyback suppression",
			Recommendation:     "add a suppression diode across K1",
			Confidence:         0.9,
			AffectedReferences: []string{"K1"},
			Location:           "sheet 1, zone C3",
			DetectionReason:    "inductive load switched by solid-state output",
		},
		{
			Severity:       review.SeverityWarning,
			Description:    "fuse F1 rating not annotated",
			Recommendation: "label F1 with its amp rating",
			Confidence:     0.75,
			AffectedReferences: []string{
				"F1",
			},
		},
	}, nil
}

func (f *FakeProvider) GenerateAnnotated(_ context.Context, _ []byte, _ []review.Finding) ([]byte, error) {
	return append([]byte(nil), fakePNG...), nil
}

func (f *FakeProvider) GenerateCorrected(_ context.Context, _ []byte, _ []review.Finding) ([]byte, error) {
	return append([]byte(nil), fakePNG...), nil
}

func (f *FakeProvider) Propose(_ context.Context, req ChatRequest) (ChatTurn, error) {
	text := strings.ToLower(req.UserText)
	switch {
	case strings.Contains(text, "add"):
		return ChatTurn{
			Reply: "Proposing a new finding for the missing wire label.",
			Proposal: &Proposal{
				Kind: review.ActionAdd,
				Findings: []review.Finding{{
					Severity:       review.SeverityInfo,
					Description:    "wire number missing between TB1 and K1",
					Recommendation: "assign and print a wire number",
					Confidence:     0.6,
				}},
			},
		}, nil
	case strings.Contains(text, "delete") && len(req.Findings) > 0:
		return ChatTurn{
			Reply: "Proposing removal of the first finding.",
			Proposal: &Proposal{
				Kind:     review.ActionDelete,
				Findings: []review.Finding{{ID: req.Findings[0].ID}},
			},
		}, nil
	case strings.Contains(text, "downgrade") && len(req.Findings) > 0:
		edited := req.Findings[0].Clone()
		edited.Severity = review.SeverityInfo
		return ChatTurn{
			Reply: "Proposing to downgrade the first finding to info.",
			Proposal: &Proposal{
				Kind:     review.ActionEdit,
				Findings: []review.Finding{edited},
			},
		}, nil
	}
	return ChatTurn{Reply: "No change proposed. Ask me to add, delete, or downgrade a finding."}, nil
}
