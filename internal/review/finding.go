package review

import (
	"strings"
	"time"
)

// Severity classifies how serious a detected issue is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// CreatedBy values for Provenance.
const (
	CreatedByAI   = "ai"
	CreatedByUser = "user"
)

// Provenance carries mutation-tracking flags. It is metadata, not identity:
// two findings with equal provenance are still distinct findings.
type Provenance struct {
	CreatedBy    string    `json:"createdBy"`
	IsNew        bool      `json:"isNew"`
	IsModified   bool      `json:"isModified"`
	LastModified time.Time `json:"lastModified"`
}

// Finding is one design issue reported against a drawing.
type Finding struct {
	ID                 string     `json:"id"`
	Severity           Severity   `json:"severity"`
	Description        string     `json:"description"`
	Recommendation     string     `json:"recommendation"`
	Confidence         float64    `json:"confidence"`
	AffectedReferences []string   `json:"affectedReferences,omitempty"`
	Location           string     `json:"location,omitempty"`
	DetectionReason    string     `json:"detectionReason,omitempty"`
	Provenance         Provenance `json:"provenance"`
}

// Clone returns a deep copy. The slice field is the only indirection.
func (f Finding) Clone() Finding {
	out := f
	if f.AffectedReferences != nil {
		out.AffectedReferences = append([]string(nil), f.AffectedReferences...)
	}
	return out
}

func cloneFindings(in []Finding) []Finding {
	if in == nil {
		return nil
	}
	out := make([]Finding, len(in))
	for i, f := range in {
		out[i] = f.Clone()
	}
	return out
}

// NormalizeSeverity maps free-form severity text onto the closed set,
// defaulting to info for anything unrecognized.
func NormalizeSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityWarning:
		return SeverityWarning
	case SeverityInfo:
		return SeverityInfo
	}
	return SeverityInfo
}
