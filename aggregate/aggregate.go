// Package aggregate combines possibly-partial sub-scores into the composite
// rating and its narrative.
package aggregate

import (
	"errors"
	"math"

	"agewise-backend/cost"
	"agewise-backend/epc"
	"agewise-backend/features"
	"agewise-backend/models"
	"agewise-backend/rooms"
)

// ErrAggregationImpossible means no category produced a score. It is a
// definitional failure and must surface, never default to zero.
var ErrAggregationImpossible = errors.New("no analysis category produced a score")

// TransportSummary is the public-transport category: nearest bus and train
// results with the best of the two as the category score.
type TransportSummary struct {
	Bus   *models.ProximityResult `json:"bus"`
	Train *models.ProximityResult `json:"train"`
	Score *float64                `json:"score"`
}

// Summarize picks the better of the two modes; the nearest usable stop
// drives transit suitability, not the average across modes.
func Summarize(bus, train *models.ProximityResult) *TransportSummary {
	ts := &TransportSummary{Bus: bus, Train: train}
	best := -1.0
	for _, r := range []*models.ProximityResult{bus, train} {
		if r != nil && r.Score > best {
			best = r.Score
		}
	}
	if best >= 0 {
		ts.Score = &best
	}
	return ts
}

// Categories carries every sub-analysis output into aggregation. Any field
// may be nil when its sub-analysis degraded completely.
type Categories struct {
	GP        *models.ProximityResult
	EPC       *epc.Result
	Features  *features.Result
	Transport *TransportSummary
	Rooms     *rooms.Result
	Cost      *cost.Result
}

// Composite is the aggregation output.
type Composite struct {
	Overall    float64
	Categories models.CategoryScores
	Narrative  string
}

// Compose assembles the category scores, the overall mean of the non-null
// ones (rounded to 1 decimal) and the narrative.
func Compose(title string, c Categories) (*Composite, error) {
	cats := models.CategoryScores{}

	var collected []float64
	add := func(key string, score *float64, details map[string]interface{}) {
		cs := models.CategoryScore{Score: score, Details: details}
		if score != nil {
			cs.Rating = models.RatingForScore(*score)
			collected = append(collected, *score)
		} else {
			cs.Rating = "Unknown"
		}
		cats[key] = cs
	}

	add(models.CategoryGPProximity, proximityScore(c.GP), proximityDetails(c.GP))
	add(models.CategoryEnergyEfficiency, epcScore(c.EPC), epcDetails(c.EPC))
	add(models.CategoryAccessibleFeature, featureScore(c.Features), featureDetails(c.Features))
	add(models.CategoryPublicTransport, transportScore(c.Transport), transportDetails(c.Transport))
	add(models.CategoryRoomAccommodation, roomScore(c.Rooms), roomDetails(c.Rooms))
	add(models.CategoryPropertyCost, costScore(c.Cost), costDetails(c.Cost))

	if len(collected) == 0 {
		return nil, ErrAggregationImpossible
	}

	sum := 0.0
	for _, s := range collected {
		sum += s
	}
	overall := math.Round(sum/float64(len(collected))*10) / 10

	return &Composite{
		Overall:    overall,
		Categories: cats,
		Narrative:  Narrative(title, c, overall),
	}, nil
}

func proximityScore(r *models.ProximityResult) *float64 {
	if r == nil {
		return nil
	}
	s := r.Score
	return &s
}

func proximityDetails(r *models.ProximityResult) map[string]interface{} {
	if r == nil {
		return nil
	}
	d := map[string]interface{}{}
	if r.Name != "" {
		d["name"] = r.Name
		d["address"] = r.Address
		d["distance_meters"] = math.Round(r.DistanceMeters)
		d["walk_minutes"] = r.DurationMinutes
	} else {
		d["note"] = "no provider found within search radius"
	}
	if r.HasRoute {
		d["hazards"] = r.Hazards
	}
	return d
}

func epcScore(r *epc.Result) *float64 {
	if r == nil {
		return nil
	}
	return r.Score
}

func epcDetails(r *epc.Result) map[string]interface{} {
	if r == nil {
		return nil
	}
	d := map[string]interface{}{
		"confidence": r.Confidence,
		"rationale":  r.Rationale,
		"strategy":   r.Strategy,
	}
	if r.Grade != nil {
		d["grade"] = *r.Grade
	}
	if r.Numeric != nil {
		d["numeric_score"] = *r.Numeric
	}
	return d
}

func featureScore(r *features.Result) *float64 {
	if r == nil {
		return nil
	}
	s := r.Score
	return &s
}

func featureDetails(r *features.Result) map[string]interface{} {
	if r == nil {
		return nil
	}
	return map[string]interface{}{
		"level": r.Level,
		"count": r.Count,
		"flags": r.Flags,
	}
}

func transportScore(t *TransportSummary) *float64 {
	if t == nil {
		return nil
	}
	return t.Score
}

func transportDetails(t *TransportSummary) map[string]interface{} {
	if t == nil {
		return nil
	}
	d := map[string]interface{}{}
	if t.Bus != nil {
		d["bus"] = t.Bus
	}
	if t.Train != nil {
		d["train"] = t.Train
	}
	return d
}

func roomScore(r *rooms.Result) *float64 {
	if r == nil {
		return nil
	}
	return r.Score
}

func roomDetails(r *rooms.Result) map[string]interface{} {
	if r == nil {
		return nil
	}
	d := map[string]interface{}{}
	if r.Bedrooms != nil {
		d["bedrooms"] = *r.Bedrooms
	}
	if r.Bathrooms != nil {
		d["bathrooms"] = *r.Bathrooms
	}
	if r.Receptions != nil {
		d["receptions"] = *r.Receptions
	}
	if r.FloorAreaSqm != nil {
		d["floor_area_sqm"] = math.Round(*r.FloorAreaSqm)
	}
	return d
}

func costScore(r *cost.Result) *float64 {
	if r == nil {
		return nil
	}
	return r.Score
}

func costDetails(r *cost.Result) map[string]interface{} {
	if r == nil {
		return nil
	}
	d := map[string]interface{}{}
	if r.CouncilTaxBand != nil {
		d["council_tax_band"] = *r.CouncilTaxBand
	}
	if r.PricePerSqm != nil {
		d["price_per_sqm"] = math.Round(*r.PricePerSqm)
	}
	if r.StampDutyPounds != nil {
		d["stamp_duty_pounds"] = *r.StampDutyPounds
	}
	return d
}
