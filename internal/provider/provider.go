// Package provider defines the contracts of the hosted multimodal AI
// collaborators and their Gemini-backed implementation. All computer vision,
// error detection, and image synthesis happens behind these interfaces; the
// core never lets a collaborator mutate session state directly.
package provider

import (
	"context"
	"errors"

	"redline/internal/review"
)

// Component is one recognized drawing element. The provider may omit the id;
// the receiving side assigns one.
type Component struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the review conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries a user message plus the session context the model
// needs to ground its proposal.
type ChatRequest struct {
	History    []ChatMessage
	UserText   string
	Findings   []review.Finding
	Components []Component
}

// Proposal is a structured mutation suggested by the chat model. It is data
// only: the caller decides whether to queue it for confirmation.
type Proposal struct {
	Kind     review.ActionKind
	Findings []review.Finding
}

// ChatTurn is the model's response to one chat request.
type ChatTurn struct {
	Reply    string
	Proposal *Proposal
}

// Recognizer identifies drawing components in an image.
type Recognizer interface {
	RecognizeComponents(ctx context.Context, image []byte) ([]Component, error)
}

// Detector finds design issues in an image.
type Detector interface {
	DetectFindings(ctx context.Context, image []byte) ([]review.Finding, error)
}

// ChatProposer runs one conversational turn, optionally yielding a proposal.
type ChatProposer interface {
	Propose(ctx context.Context, req ChatRequest) (ChatTurn, error)
}

// Provider bundles every collaborator contract the gateway consumes.
type Provider interface {
	Recognizer
	Detector
	review.ArtifactGenerator
	ChatProposer
	Name() string
	Close() error
}

// ErrNoArtifact reports a generation call that returned text (or nothing)
// instead of an image. Treated as a generation failure, never as a
// state-altering error.
var ErrNoArtifact = errors.New("provider: model returned no image artifact")
