// Package pipeline runs the initial detection pass for a drawing:
// component recognition followed by error detection, both delegated to the
// external provider.
package pipeline

import (
	"context"
	"strings"

	"redline/internal/provider"
	"redline/internal/review"
	"redline/internal/utils"
)

// Sink receives pipeline results as each phase completes, so a caller can
// render components before detection has finished.
type Sink interface {
	SeedComponents(components []provider.Component)
	SeedFindings(findings []review.Finding) error
}

type Analyzer struct {
	rec provider.Recognizer
	det provider.Detector
}

func NewAnalyzer(rec provider.Recognizer, det provider.Detector) *Analyzer {
	return &Analyzer{rec: rec, det: det}
}

// Run executes recognition then detection against the same image. The phases
// are issued sequentially so component results appear before the (slower)
// detection finishes, even though detection does not consume recognition
// output. Any provider failure aborts the run; a detection failure never
// leaves findings partially seeded.
func (a *Analyzer) Run(ctx context.Context, image []byte, sink Sink) error {
	components, err := a.rec.RecognizeComponents(ctx, image)
	if err != nil {
		return &review.CollaboratorError{Op: "recognize components", Err: err}
	}
	sink.SeedComponents(assignComponentIDs(components))

	findings, err := a.det.DetectFindings(ctx, image)
	if err != nil {
		return &review.CollaboratorError{Op: "detect findings", Err: err}
	}
	for i := range findings {
		findings[i].Provenance = review.Provenance{CreatedBy: review.CreatedByAI}
	}
	return sink.SeedFindings(findings)
}

// assignComponentIDs gives every component without a provider-supplied id a
// stable slug derived from its name.
func assignComponentIDs(components []provider.Component) []provider.Component {
	existing := make([]string, 0, len(components))
	for _, c := range components {
		if strings.TrimSpace(c.ID) != "" {
			existing = append(existing, c.ID)
		}
	}
	gen := utils.NewUIDGenerator(existing...)
	out := make([]provider.Component, len(components))
	for i, c := range components {
		if strings.TrimSpace(c.ID) == "" {
			name := c.Name
			if strings.TrimSpace(name) == "" {
				name = c.Type
			}
			c.ID = gen.Generate(name)
		}
		out[i] = c
	}
	return out
}
