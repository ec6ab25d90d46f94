// Package reviewsession owns the in-memory review sessions: one interactive
// user curating AI-detected findings for one drawing. It is the single writer
// in front of the review core; the AI provider and the artifact store are
// injected collaborators.
package reviewsession

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	artifactrepo "redline/internal/gateway/repository/artifact"
	"redline/internal/pipeline"
	"redline/internal/provider"
	"redline/internal/review"
)

// ErrBusy reports an analysis or chat turn already running for the session.
var ErrBusy = errors.New("reviewsession: operation already in progress")

type Service struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	ai        provider.Provider
	analyzer  *pipeline.Analyzer
	artifacts artifactrepo.Store
	clock     review.Clock
}

type sessionState struct {
	session     *review.Session
	queue       *review.ActionQueue
	reconciler  *review.Reconciler
	coordinator *review.Coordinator

	components   []provider.Component
	image        []byte
	conversation []provider.ChatMessage

	analyzing    bool
	chatBusy     bool
	regenerating bool
	regenCount   int

	changed   chan struct{}
	outbox    []Event
	updatedAt time.Time
}

func New(ai provider.Provider, artifacts artifactrepo.Store) *Service {
	return &Service{
		sessions:  make(map[string]*sessionState),
		ai:        ai,
		analyzer:  pipeline.NewAnalyzer(ai, ai),
		artifacts: artifacts,
		clock:     time.Now,
	}
}

// SetClock overrides the timestamp source for sessions created afterwards.
func (s *Service) SetClock(clock review.Clock) {
	if clock == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *Service) getOrCreateLocked(sessionID string) *sessionState {
	if st, ok := s.sessions[sessionID]; ok {
		return st
	}
	session := review.NewSession(review.WithClock(s.clock))
	queue := review.NewActionQueue()
	st := &sessionState{
		session:     session,
		queue:       queue,
		reconciler:  review.NewReconciler(session, queue),
		coordinator: review.NewCoordinator(s.ai, session, queue, review.WithSessionLock(&s.mu)),
		changed:     make(chan struct{}),
	}
	s.sessions[sessionID] = st
	return st
}

func notifyLocked(st *sessionState) {
	if st == nil {
		return
	}
	close(st.changed)
	st.changed = make(chan struct{})
}

func (s *Service) emitLocked(st *sessionState, ev Event) {
	st.outbox = append(st.outbox, ev)
	st.updatedAt = s.clock()
	notifyLocked(st)
}

func requireSessionID(sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return sessionID, nil
}

// Analyze runs the detection pipeline for the drawing and seeds the session.
// Components and findings are seeded separately so watchers can render
// intermediate progress. A detection failure aborts the run without leaving
// a partially seeded session.
func (s *Service) Analyze(ctx context.Context, sessionID string, image []byte) error {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("image is required")
	}

	s.mu.Lock()
	st := s.getOrCreateLocked(sessionID)
	if st.analyzing {
		s.mu.Unlock()
		return ErrBusy
	}
	if st.session.Dirty() {
		s.mu.Unlock()
		return fmt.Errorf("%w: commit or discard pending edits before re-running analysis", review.ErrInvalidState)
	}
	st.analyzing = true
	prevComponents := st.components
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		st.analyzing = false
		s.mu.Unlock()
	}()

	sink := &analysisSink{svc: s, st: st, sessionID: sessionID}
	err = s.analyzer.Run(ctx, image, sink)
	if err != nil {
		// Undo the component seed so a failed run leaves nothing behind.
		// Watchers already saw the seed, so the retraction is broadcast too.
		s.mu.Lock()
		if sink.componentsSeeded {
			st.components = prevComponents
			s.emitLocked(st, Event{
				Kind:       EventComponentsSeeded,
				SessionID:  sessionID,
				Components: prevComponents,
			})
		}
		s.mu.Unlock()
		log.Printf("analysis failed for session %s: %v", sessionID, err)
		return err
	}

	s.mu.Lock()
	st.image = append([]byte(nil), image...)
	s.mu.Unlock()
	return nil
}

// analysisSink feeds pipeline results into the session as they arrive.
type analysisSink struct {
	svc       *Service
	st        *sessionState
	sessionID string

	componentsSeeded bool
}

func (a *analysisSink) SeedComponents(components []provider.Component) {
	a.svc.mu.Lock()
	defer a.svc.mu.Unlock()
	a.componentsSeeded = true
	a.st.components = components
	a.svc.emitLocked(a.st, Event{
		Kind:       EventComponentsSeeded,
		SessionID:  a.sessionID,
		Components: components,
	})
}

func (a *analysisSink) SeedFindings(findings []review.Finding) error {
	a.svc.mu.Lock()
	defer a.svc.mu.Unlock()
	if err := a.st.session.Seed(findings); err != nil {
		return err
	}
	a.svc.emitLocked(a.st, Event{
		Kind:      EventFindingsSeeded,
		SessionID: a.sessionID,
		Findings:  a.st.session.Current(),
	})
	return nil
}

// SeedSession installs externally supplied detection results directly,
// bypassing the provider. Used by callers that already hold results.
func (s *Service) SeedSession(sessionID string, components []provider.Component, findings []review.Finding) error {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	if err := st.session.Seed(findings); err != nil {
		return err
	}
	st.components = components
	s.emitLocked(st, Event{Kind: EventComponentsSeeded, SessionID: sessionID, Components: components})
	s.emitLocked(st, Event{Kind: EventFindingsSeeded, SessionID: sessionID, Findings: st.session.Current()})
	return nil
}

func (s *Service) Findings(sessionID string) ([]review.Finding, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).session.Current(), nil
}

func (s *Service) Components(sessionID string) ([]provider.Component, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.Component(nil), s.getOrCreateLocked(sessionID).components...), nil
}

func (s *Service) LedgerEntries(sessionID string) ([]review.LedgerEntry, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).session.Entries(), nil
}

func (s *Service) IsDirty(sessionID string) (bool, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).session.Dirty(), nil
}

func (s *Service) PendingActions(sessionID string) ([]review.PendingAction, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).queue.All(), nil
}

// AddFinding inserts a manually authored finding.
func (s *Service) AddFinding(sessionID string, f review.Finding) (review.Finding, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return review.Finding{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	f.Provenance.CreatedBy = review.CreatedByUser
	added, err := st.session.ApplyAdd(f, review.SourceManual)
	if err != nil {
		return review.Finding{}, err
	}
	s.emitFindingsChangedLocked(st, sessionID)
	return added, nil
}

func (s *Service) EditFinding(sessionID string, f review.Finding) (review.Finding, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return review.Finding{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	edited, err := st.session.ApplyEdit(f, review.SourceManual)
	if err != nil {
		return review.Finding{}, err
	}
	s.emitFindingsChangedLocked(st, sessionID)
	return edited, nil
}

func (s *Service) DeleteFinding(sessionID, findingID string) (review.LedgerEntry, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return review.LedgerEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	entry, err := st.session.ApplyDelete(findingID, review.SourceManual)
	if err != nil {
		return review.LedgerEntry{}, err
	}
	s.emitFindingsChangedLocked(st, sessionID)
	return entry, nil
}

func (s *Service) RestoreFinding(sessionID, entryID string) (review.Finding, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return review.Finding{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	revived, err := st.session.ApplyRestore(entryID, review.SourceManual)
	if err != nil {
		return review.Finding{}, err
	}
	s.emitFindingsChangedLocked(st, sessionID)
	return revived, nil
}

// DiscardChanges reverts the working set to the baseline.
func (s *Service) DiscardChanges(sessionID string) error {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	st.session.Discard()
	s.emitFindingsChangedLocked(st, sessionID)
	return nil
}

// ResetWorkflow drops the session back to its pre-seed state, including the
// pending queue, conversation, and stored drawing.
func (s *Service) ResetWorkflow(sessionID string) error {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateLocked(sessionID)
	st.session.Reset()
	st.queue.Clear()
	st.components = nil
	st.image = nil
	st.conversation = nil
	st.regenCount = 0
	s.emitLocked(st, Event{Kind: EventWorkflowReset, SessionID: sessionID})
	return nil
}

// Regenerate produces new artifacts from the working set, commits on full
// success, and stores the outputs under a fresh regeneration index.
func (s *Service) Regenerate(ctx context.Context, sessionID string) (*ArtifactRefs, error) {
	sessionID, err := requireSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	st := s.getOrCreateLocked(sessionID)
	if st.regenerating {
		s.mu.Unlock()
		return nil, review.ErrAlreadyInProgress
	}
	// The coordinator re-checks these under the same lock; checking here
	// keeps rejections from broadcasting a started event.
	if !st.session.Dirty() || len(st.session.Current()) == 0 {
		s.mu.Unlock()
		return nil, review.ErrNothingToRegenerate
	}
	st.regenerating = true
	coordinator := st.coordinator
	image := st.image
	s.emitLocked(st, Event{Kind: EventRegenerationStarted, SessionID: sessionID, Dirty: true})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		st.regenerating = false
		s.mu.Unlock()
	}()

	arts, err := coordinator.Regenerate(ctx, image)
	if err != nil {
		s.mu.Lock()
		s.emitLocked(st, Event{
			Kind:      EventRegenerationFailed,
			SessionID: sessionID,
			Dirty:     st.session.Dirty(),
			Error:     err.Error(),
		})
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	st.regenCount++
	n := st.regenCount
	s.mu.Unlock()

	refs := &ArtifactRefs{
		AnnotatedPath: fmt.Sprintf("regen/%d/annotated.png", n),
		CorrectedPath: fmt.Sprintf("regen/%d/corrected.png", n),
	}
	if err := s.storeArtifact(ctx, sessionID, refs.AnnotatedPath, arts.Annotated); err != nil {
		log.Printf("store annotated artifact for session %s: %v", sessionID, err)
	}
	if err := s.storeArtifact(ctx, sessionID, refs.CorrectedPath, arts.Corrected); err != nil {
		log.Printf("store corrected artifact for session %s: %v", sessionID, err)
	}
	if s.artifacts != nil {
		if u, err := s.artifacts.GetURL(ctx, sessionID, refs.AnnotatedPath); err == nil {
			refs.AnnotatedURL = u
		}
		if u, err := s.artifacts.GetURL(ctx, sessionID, refs.CorrectedPath); err == nil {
			refs.CorrectedURL = u
		}
	}

	s.mu.Lock()
	s.emitLocked(st, Event{
		Kind:      EventRegenerationFinished,
		SessionID: sessionID,
		Findings:  st.session.Current(),
		Artifacts: refs,
	})
	s.mu.Unlock()
	return refs, nil
}

func (s *Service) storeArtifact(ctx context.Context, sessionID, path string, content []byte) error {
	if s.artifacts == nil {
		return nil
	}
	return s.artifacts.Put(ctx, sessionID, path, content)
}

// ArtifactStore exposes the backing store for the HTTP fetch handler.
func (s *Service) ArtifactStore() artifactrepo.Store { return s.artifacts }

func (s *Service) emitFindingsChangedLocked(st *sessionState, sessionID string) {
	s.emitLocked(st, Event{
		Kind:      EventFindingsChanged,
		SessionID: sessionID,
		Dirty:     st.session.Dirty(),
		Findings:  st.session.Current(),
	})
}

func newActionID() string { return "action-" + uuid.NewString() }
