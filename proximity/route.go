package proximity

import (
	"math"
	"strings"

	"agewise-backend/config"
	"agewise-backend/models"
)

// durationInflation slows the provider's walking estimate to a pace
// realistic for the people this score serves.
const durationInflation = 1.4

// adjustedMinutes converts a provider duration to inflated whole minutes.
func adjustedMinutes(rawSeconds int) int {
	return int(math.Ceil(float64(rawSeconds) / 60.0 * durationInflation))
}

// baseScore buckets the adjusted duration.
func baseScore(adjMinutes int) float64 {
	switch {
	case adjMinutes <= 5:
		return 5
	case adjMinutes <= 10:
		return 4
	case adjMinutes <= 15:
		return 3
	case adjMinutes <= 20:
		return 2
	case adjMinutes <= 25:
		return 1
	default:
		return 0
	}
}

// scanHazards looks for accessibility obstacles in turn-by-turn instruction
// text.
func scanHazards(instructions []string, rules *config.HazardRules) models.RouteHazards {
	var hz models.RouteHazards
	for _, instr := range instructions {
		lower := strings.ToLower(instr)
		if !hz.Stairs && containsAny(lower, rules.Stairs) {
			hz.Stairs = true
		}
		if !hz.SteepIncline && containsAny(lower, rules.Steep) {
			hz.SteepIncline = true
		}
		if !hz.BusyRoadCrossing && containsAny(lower, rules.BusyRoad) {
			hz.BusyRoadCrossing = true
		}
		if !hz.TrafficLight && containsAny(lower, rules.TrafficLight) {
			hz.TrafficLight = true
		}
	}
	return hz
}

// routeAccessibilityScore penalizes hazards and long walks, floored at 1.
func routeAccessibilityScore(hz models.RouteHazards, adjMinutes int) float64 {
	score := 5.0
	if hz.Stairs {
		score -= 2
	}
	if hz.SteepIncline {
		score -= 1.5
	}
	if hz.BusyRoadCrossing && !hz.TrafficLight {
		score -= 1
	}
	if adjMinutes > 15 {
		score -= 1
	}
	if adjMinutes > 25 {
		score -= 1
	}
	if score < 1 {
		score = 1
	}
	return score
}

// finalScore blends duration bucket and route accessibility when a route
// exists.
func finalScore(base, routeScore float64) float64 {
	return round1((base + routeScore) / 2)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
