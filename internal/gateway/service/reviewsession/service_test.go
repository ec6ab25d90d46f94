package reviewsession

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	artifactrepo "redline/internal/gateway/repository/artifact"
	"redline/internal/provider"
	"redline/internal/review"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(provider.NewFakeProvider(), artifactrepo.NewMemoryStore())
}

func analyzed(t *testing.T, svc *Service, sessionID string) {
	t.Helper()
	require.NoError(t, svc.Analyze(context.Background(), sessionID, []byte("drawing-png")))
}

func TestAnalyzeSeedsSession(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	components, err := svc.Components("sess-1")
	require.NoError(t, err)
	assert.NotEmpty(t, components)
	for _, c := range components {
		assert.NotEmpty(t, c.ID)
	}

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	dirty, err := svc.IsDirty("sess-1")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestAnalyzeRejectedWhileDirty(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	_, err = svc.DeleteFinding("sess-1", findings[0].ID)
	require.NoError(t, err)

	err = svc.Analyze(context.Background(), "sess-1", []byte("drawing-png"))
	assert.ErrorIs(t, err, review.ErrInvalidState)
}

func TestEndToEndCurationAndRegeneration(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	f1, f2 := findings[0], findings[1]

	// Edit F1 down to warning, delete F2.
	f1.Severity = review.SeverityWarning
	edited, err := svc.EditFinding("sess-1", f1)
	require.NoError(t, err)
	assert.True(t, edited.Provenance.IsModified)

	_, err = svc.DeleteFinding("sess-1", f2.ID)
	require.NoError(t, err)

	entries, err := svc.LedgerEntries("sess-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	current, err := svc.Findings("sess-1")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, f1.ID, current[0].ID)
	assert.Equal(t, review.SeverityWarning, current[0].Severity)

	refs, err := svc.Regenerate(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, refs)

	dirty, err := svc.IsDirty("sess-1")
	require.NoError(t, err)
	assert.False(t, dirty)
	entries, err = svc.LedgerEntries("sess-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Artifacts landed in the store under the regeneration index.
	store := svc.ArtifactStore()
	annotated, err := store.Get(context.Background(), "sess-1", refs.AnnotatedPath)
	require.NoError(t, err)
	assert.NotEmpty(t, annotated)
	corrected, err := store.Get(context.Background(), "sess-1", refs.CorrectedPath)
	require.NoError(t, err)
	assert.NotEmpty(t, corrected)
}

func TestRegenerateRequiresPendingEdits(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	_, err := svc.Regenerate(context.Background(), "sess-1")
	assert.ErrorIs(t, err, review.ErrNothingToRegenerate)
}

func TestChatProposalConfirmFlow(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	result, err := svc.SendMessage(context.Background(), "sess-1", "please add a finding for the missing wire label")
	require.NoError(t, err)
	require.NotNil(t, result.Action)
	assert.Equal(t, review.ActionAdd, result.Action.Kind)

	pending, err := svc.PendingActions("sess-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	entries, err := svc.ConfirmProposal("sess-1", result.Action.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, review.ChangeAdd, entries[0].Type)
	assert.Equal(t, review.SourceChat, entries[0].Source)

	pending, err = svc.PendingActions("sess-1")
	require.NoError(t, err)
	assert.Empty(t, pending)

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	assert.Len(t, findings, 3)
	last := findings[len(findings)-1]
	assert.Equal(t, review.CreatedByAI, last.Provenance.CreatedBy)
	assert.True(t, last.Provenance.IsNew)
}

func TestChatProposalDenyIsNoOp(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	before, err := svc.Findings("sess-1")
	require.NoError(t, err)

	result, err := svc.SendMessage(context.Background(), "sess-1", "delete the first finding")
	require.NoError(t, err)
	require.NotNil(t, result.Action)
	assert.Equal(t, review.ActionDelete, result.Action.Kind)

	require.NoError(t, svc.DenyProposal("sess-1", result.Action.ID))

	after, err := svc.Findings("sess-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := svc.LedgerEntries("sess-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = svc.DenyProposal("sess-1", result.Action.ID)
	assert.ErrorIs(t, err, review.ErrActionNotFound)
}

func TestChatWithoutProposalKeepsQueueEmpty(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	result, err := svc.SendMessage(context.Background(), "sess-1", "what does finding one mean?")
	require.NoError(t, err)
	assert.Nil(t, result.Action)
	assert.NotEmpty(t, result.Reply)

	history, err := svc.Conversation("sess-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestResetWorkflowClearsEverything(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	_, err := svc.SendMessage(context.Background(), "sess-1", "add something")
	require.NoError(t, err)

	require.NoError(t, svc.ResetWorkflow("sess-1"))

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	assert.Empty(t, findings)
	pending, err := svc.PendingActions("sess-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
	components, err := svc.Components("sess-1")
	require.NoError(t, err)
	assert.Empty(t, components)

	// The session is seedable again after reset.
	analyzed(t, svc, "sess-1")
}

func TestSubscribeDeliversFindingsChanged(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := svc.Subscribe(ctx, "sess-1")
	require.NoError(t, err)

	analyzed(t, svc, "sess-1")

	var kinds []EventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventFindingsSeeded {
			break
		}
	}
	assert.Contains(t, kinds, EventComponentsSeeded)
	assert.Contains(t, kinds, EventFindingsSeeded)
}

type failingRecognizer struct{ provider.Provider }

func (f *failingRecognizer) RecognizeComponents(_ context.Context, _ []byte) ([]provider.Component, error) {
	return nil, errors.New("503 from provider")
}

func TestAnalyzeFailureLeavesSessionUnseeded(t *testing.T) {
	svc := New(&failingRecognizer{Provider: provider.NewFakeProvider()}, artifactrepo.NewMemoryStore())

	err := svc.Analyze(context.Background(), "sess-1", []byte("drawing-png"))
	var collab *review.CollaboratorError
	require.ErrorAs(t, err, &collab)

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	assert.Empty(t, findings)
	components, err := svc.Components("sess-1")
	require.NoError(t, err)
	assert.Empty(t, components)
}

type gatedGenerator struct {
	provider.Provider
	started chan struct{}
	release chan struct{}
}

func (g *gatedGenerator) GenerateAnnotated(ctx context.Context, image []byte, findings []review.Finding) ([]byte, error) {
	close(g.started)
	<-g.release
	return g.Provider.GenerateAnnotated(ctx, image, findings)
}

func TestEditDuringRegenerationCommitsSnapshot(t *testing.T) {
	gen := &gatedGenerator{
		Provider: provider.NewFakeProvider(),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	svc := New(gen, artifactrepo.NewMemoryStore())
	analyzed(t, svc, "sess-1")

	findings, err := svc.Findings("sess-1")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	f1, f2 := findings[0], findings[1]

	f1.Severity = review.SeverityWarning
	_, err = svc.EditFinding("sess-1", f1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Regenerate(context.Background(), "sess-1")
		done <- err
	}()
	<-gen.started

	// A manual edit while generation is in flight goes through the same
	// lock the coordinator commits under.
	f2.Description = "changed while regeneration was in flight"
	_, err = svc.EditFinding("sess-1", f2)
	require.NoError(t, err)

	close(gen.release)
	require.NoError(t, <-done)

	dirty, err := svc.IsDirty("sess-1")
	require.NoError(t, err)
	assert.False(t, dirty)

	// The committed snapshot wins over the in-flight edit.
	after, err := svc.Findings("sess-1")
	require.NoError(t, err)
	for _, f := range after {
		if f.ID == f2.ID {
			assert.NotEqual(t, "changed while regeneration was in flight", f.Description)
		}
	}
}

type failingDetector struct{ provider.Provider }

func (f *failingDetector) DetectFindings(_ context.Context, _ []byte) ([]review.Finding, error) {
	return nil, errors.New("503 from provider")
}

func TestAnalyzeFailureRetractsSeededComponents(t *testing.T) {
	svc := New(&failingDetector{Provider: provider.NewFakeProvider()}, artifactrepo.NewMemoryStore())

	err := svc.Analyze(context.Background(), "sess-1", []byte("drawing-png"))
	var collab *review.CollaboratorError
	require.ErrorAs(t, err, &collab)

	components, err := svc.Components("sess-1")
	require.NoError(t, err)
	assert.Empty(t, components)

	// Watchers saw the seed, so they must also see the retraction: the last
	// components event carries the restored (empty) slice.
	svc.mu.Lock()
	st := svc.sessions["sess-1"]
	var last *Event
	for i := range st.outbox {
		if st.outbox[i].Kind == EventComponentsSeeded {
			last = &st.outbox[i]
		}
	}
	svc.mu.Unlock()
	require.NotNil(t, last)
	assert.Empty(t, last.Components)
}

func TestRegenerateRejectionEmitsNoEvents(t *testing.T) {
	svc := newTestService(t)
	analyzed(t, svc, "sess-1")

	_, err := svc.Regenerate(context.Background(), "sess-1")
	require.ErrorIs(t, err, review.ErrNothingToRegenerate)

	svc.mu.Lock()
	st := svc.sessions["sess-1"]
	var kinds []EventKind
	for _, ev := range st.outbox {
		kinds = append(kinds, ev.Kind)
	}
	svc.mu.Unlock()
	assert.NotContains(t, kinds, EventRegenerationStarted)
	assert.NotContains(t, kinds, EventRegenerationFailed)
}
