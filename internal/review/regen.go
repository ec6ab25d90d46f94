package review

import (
	"context"
	"sync"
)

// ArtifactGenerator produces updated drawing artifacts from a finding set.
// Implemented by the external AI provider.
type ArtifactGenerator interface {
	GenerateAnnotated(ctx context.Context, image []byte, findings []Finding) ([]byte, error)
	GenerateCorrected(ctx context.Context, image []byte, findings []Finding) ([]byte, error)
}

// Artifacts is the result of one successful regeneration.
type Artifacts struct {
	Annotated []byte
	Corrected []byte
}

// nopLocker is the default session lock for callers that own the session
// exclusively on a single goroutine.
type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Coordinator runs the regeneration pipeline: both external generation calls
// against one atomically-taken snapshot of the working set, then — only if
// every call succeeded — a session commit and a pending-queue clear. A failed
// call leaves the session exactly as it was; there is no partial commit.
//
// The snapshot read and the final commit run under the session lock, so other
// writers stay serialized with them while the (slow) generation calls run
// unlocked. Only one regeneration may be in flight at a time; concurrent
// calls are rejected, not queued.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool

	gen     ArtifactGenerator
	session *Session
	queue   *ActionQueue
	state   sync.Locker
}

// CoordinatorOption configures a Coordinator at construction.
type CoordinatorOption func(*Coordinator)

// WithSessionLock names the lock guarding the session. Callers that mutate
// the session from other goroutines must pass the same lock they hold there.
func WithSessionLock(l sync.Locker) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.state = l
		}
	}
}

func NewCoordinator(gen ArtifactGenerator, session *Session, queue *ActionQueue, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{gen: gen, session: session, queue: queue, state: nopLocker{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InFlight reports whether a regeneration is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Regenerate produces annotated and corrected artifacts for the current
// working set and commits it as the new baseline on full success.
func (c *Coordinator) Regenerate(ctx context.Context, image []byte) (*Artifacts, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrAlreadyInProgress
	}
	c.state.Lock()
	if !c.session.Dirty() {
		c.state.Unlock()
		c.mu.Unlock()
		return nil, ErrNothingToRegenerate
	}
	snapshot := c.session.Current()
	c.state.Unlock()
	if len(snapshot) == 0 {
		// The artifact generator has no defined behavior for a corrected
		// drawing with zero fixes.
		c.mu.Unlock()
		return nil, ErrNothingToRegenerate
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	annotated, err := c.gen.GenerateAnnotated(ctx, image, snapshot)
	if err != nil {
		return nil, &CollaboratorError{Op: "generate annotated artifact", Err: err}
	}
	corrected, err := c.gen.GenerateCorrected(ctx, image, snapshot)
	if err != nil {
		return nil, &CollaboratorError{Op: "generate corrected artifact", Err: err}
	}

	c.state.Lock()
	c.session.Commit(snapshot)
	if c.queue != nil {
		c.queue.Clear()
	}
	c.state.Unlock()

	return &Artifacts{Annotated: annotated, Corrected: corrected}, nil
}
