// Package epc resolves a listing's Energy Performance Certificate grade
// through a four-strategy fallback cascade.
package epc

import (
	"context"
	"math"

	"agewise-backend/config"
	"agewise-backend/models"
	"agewise-backend/monitoring"
	"agewise-backend/resolver"

	"go.uber.org/zap"
)

// band is the canonical numeric range for one EPC letter.
type band struct {
	Letter string
	Min    int
	Max    int
}

var bands = []band{
	{"A", 92, 100},
	{"B", 81, 91},
	{"C", 69, 80},
	{"D", 55, 68},
	{"E", 39, 54},
	{"F", 21, 38},
	{"G", 1, 20},
}

// letterForScore returns the letter whose canonical band contains the score.
func letterForScore(score int) string {
	for _, b := range bands {
		if score >= b.Min && score <= b.Max {
			return b.Letter
		}
	}
	if score > 100 {
		return "A"
	}
	return "G"
}

// scoreMatchesLetter reports whether the numeric score sits inside the
// letter's canonical band.
func scoreMatchesLetter(letter string, score int) bool {
	for _, b := range bands {
		if b.Letter == letter {
			return score >= b.Min && score <= b.Max
		}
	}
	return false
}

// letterPoints is the fixed letter-to-subscore table used when no trusted
// numeric score is available.
var letterPoints = map[string]float64{
	"A": 5, "B": 4, "C": 4, "D": 3, "E": 2, "F": 2, "G": 1,
}

// Result is the resolved EPC evidence plus its 1-5 sub-score. Grade is nil
// when the cascade was exhausted; the category is then excluded from the
// overall average.
type Result struct {
	Grade      *string  `json:"grade"`
	Numeric    *int     `json:"numeric,omitempty"`
	Confidence int      `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Strategy   string   `json:"strategy"`
	Score      *float64 `json:"score"`
}

// Classifier is the vision call the certificate-image strategy depends on.
type Classifier interface {
	ClassifyImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Resolver runs the EPC cascade.
type Resolver struct {
	chain *resolver.Chain
}

// NewResolver builds the cascade in strict priority order. A nil classifier
// disables the vision strategy without disturbing the rest of the chain.
func NewResolver(classifier Classifier, rules *config.Rules, logger *zap.Logger, metrics *monitoring.Metrics) *Resolver {
	strategies := []resolver.Strategy{
		&explicitTextStrategy{rules: rules},
		&certificateImageStrategy{classifier: classifier, rules: rules, logger: logger},
		&secondaryPatternStrategy{rules: rules},
		&literalPhraseStrategy{},
	}
	return &Resolver{
		chain: resolver.NewChain("epc", logger, strategies, resolver.WithMetrics(metrics)),
	}
}

// Resolve runs the cascade and derives the sub-score.
func (r *Resolver) Resolve(ctx context.Context, listing *models.PropertyListing) *Result {
	ev := r.chain.Resolve(ctx, listing)

	res := &Result{
		Confidence: ev.Confidence,
		Rationale:  ev.Rationale,
		Strategy:   ev.Strategy,
	}
	if !ev.Found() {
		return res
	}

	grade := ev.Value
	res.Grade = &grade
	if ev.Numeric != nil {
		n := int(*ev.Numeric)
		res.Numeric = &n
	}
	res.Score = subScore(grade, res.Numeric, res.Confidence)
	return res
}

// subScore maps the resolved grade to 1-5. A numeric score is only trusted
// over the letter table at confidence 80 or above.
func subScore(grade string, numeric *int, confidence int) *float64 {
	if confidence >= 80 && numeric != nil {
		s := math.Round(clamp(float64(*numeric)/100*5, 1, 5))
		return &s
	}
	if pts, ok := letterPoints[grade]; ok {
		return &pts
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
