// Package cost combines the nullable ownership-cost sub-scores: council-tax
// banding, price per floor area against a fixed national baseline, and
// stamp-duty burden.
package cost

import (
	"math"

	"agewise-backend/models"
)

// Result holds the individual sub-scores and their mean. Every field is nil
// when its inputs were missing; Score is nil when no sub-score was
// computable.
type Result struct {
	CouncilTaxScore   *float64 `json:"council_tax_score"`
	PricePerAreaScore *float64 `json:"price_per_area_score"`
	StampDutyScore    *float64 `json:"stamp_duty_score"`

	CouncilTaxBand  *string  `json:"council_tax_band,omitempty"`
	PricePerSqm     *float64 `json:"price_per_sqm,omitempty"`
	StampDutyPounds *int     `json:"stamp_duty_pounds,omitempty"`

	Score *float64 `json:"score"`
}

// councilTaxScores maps the A-H banding to a 1-5 running-cost score.
var councilTaxScores = map[string]float64{
	"A": 5, "B": 4.5, "C": 4, "D": 3.5, "E": 3, "F": 2, "G": 1.5, "H": 1,
}

// Analyze computes the combined cost score. floorAreaSqm comes from the room
// analyzer, which runs first.
func Analyze(listing *models.PropertyListing, floorAreaSqm *float64) *Result {
	res := &Result{}

	if listing.CouncilTaxBand != nil {
		if s, ok := councilTaxScores[*listing.CouncilTaxBand]; ok {
			res.CouncilTaxBand = listing.CouncilTaxBand
			res.CouncilTaxScore = &s
		}
	}

	if listing.PricePounds != nil && floorAreaSqm != nil && *floorAreaSqm > 0 {
		pps := float64(*listing.PricePounds) / *floorAreaSqm
		res.PricePerSqm = &pps
		s := pricePerAreaScore(pps)
		res.PricePerAreaScore = &s
	}

	if listing.PricePounds != nil {
		duty := stampDuty(*listing.PricePounds)
		res.StampDutyPounds = &duty
		s := stampDutyScore(duty, *listing.PricePounds)
		res.StampDutyScore = &s
	}

	res.Score = mean(res.CouncilTaxScore, res.PricePerAreaScore, res.StampDutyScore)
	return res
}

// pricePerAreaScore buckets £/sqm against the national resale distribution:
// roughly the 2nd, 5th, 8th and 9th deciles.
func pricePerAreaScore(pps float64) float64 {
	switch {
	case pps < 2000:
		return 5
	case pps < 3000:
		return 4
	case pps < 4500:
		return 3
	case pps < 6500:
		return 2
	default:
		return 1
	}
}

// stampDuty computes standard-rate residential SDLT.
func stampDuty(price int) int {
	duty := 0.0
	bands := []struct {
		upTo int
		rate float64
	}{
		{250000, 0},
		{925000, 0.05},
		{1500000, 0.10},
		{math.MaxInt32, 0.12},
	}
	prev := 0
	for _, b := range bands {
		if price <= prev {
			break
		}
		taxable := price - prev
		if price > b.upTo {
			taxable = b.upTo - prev
		}
		duty += float64(taxable) * b.rate
		prev = b.upTo
	}
	return int(math.Round(duty))
}

// stampDutyScore scores the duty as a share of the purchase price.
func stampDutyScore(duty, price int) float64 {
	if price <= 0 {
		return 3
	}
	burden := float64(duty) / float64(price)
	switch {
	case burden == 0:
		return 5
	case burden <= 0.01:
		return 4
	case burden <= 0.02:
		return 3
	case burden <= 0.03:
		return 2
	default:
		return 1
	}
}

func mean(scores ...*float64) *float64 {
	sum := 0.0
	n := 0
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := math.Round(sum/float64(n)*10) / 10
	return &m
}
