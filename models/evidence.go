package models

// Evidence is the unit of output of a resolver strategy. Confidence is a
// priority in [0,100]: once a higher-confidence strategy succeeds, its
// evidence is never overridden by a lower one.
type Evidence struct {
	Value      string   `json:"value"`
	Confidence int      `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Strategy   string   `json:"strategy"`
	Numeric    *float64 `json:"numeric,omitempty"`
}

// Found reports whether the evidence carries an actual value rather than the
// terminal not-found marker.
func (e *Evidence) Found() bool {
	return e != nil && e.Value != "" && e.Confidence > 0
}

// ClampConfidence forces confidence into [0,100].
func (e *Evidence) ClampConfidence() {
	if e.Confidence < 0 {
		e.Confidence = 0
	}
	if e.Confidence > 100 {
		e.Confidence = 100
	}
}

// Provenance records how a feature flag was established.
type Provenance string

const (
	ProvenanceText       Provenance = "verified_by_text"
	ProvenanceInferred   Provenance = "inferred"
	ProvenanceVision     Provenance = "verified_by_vision"
	ProvenanceUnverified Provenance = "unverified_warning"
)

// FeatureFlag is one of the eight accessibility criteria. Provenance feeds
// the narrative generator; it never changes the point total.
type FeatureFlag struct {
	Name       string     `json:"name"`
	Present    bool       `json:"present"`
	Provenance Provenance `json:"provenance"`
	Detail     string     `json:"detail,omitempty"`
}
