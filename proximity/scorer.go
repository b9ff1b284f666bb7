// Package proximity scores the travel burden to the nearest genuine instance
// of a service class: candidate discovery, candidate classification, then
// route-hazard analysis.
package proximity

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"agewise-backend/config"
	"agewise-backend/geo"
	"agewise-backend/models"

	"go.uber.org/zap"
)

// Search radii for phase A. The category set widens only after the widest
// radius comes back empty.
const (
	defaultRadiusMeters = 2000
	widenedRadiusMeters = 10000
)

// walkingMetersPerMinute estimates duration for candidates the route
// provider could not path to.
const walkingMetersPerMinute = 80.0

// PlacesSearcher is the nearby-POI provider.
type PlacesSearcher interface {
	NearbySearch(ctx context.Context, lat, lng float64, categories []string, radiusMeters int) ([]geo.Place, error)
}

// RoutePlanner is the walking-route provider.
type RoutePlanner interface {
	WalkingRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*geo.Route, error)
}

// Classifier is the batched remote judge for candidate validation.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Scorer runs the two-phase proximity analysis for one service class.
type Scorer struct {
	places PlacesSearcher
	routes RoutePlanner
	judge  Classifier
	rules  *config.Rules
	logger *zap.Logger
}

// NewScorer creates a proximity scorer. judge may be nil; classification
// then falls straight to the keyword classifier.
func NewScorer(places PlacesSearcher, routes RoutePlanner, judge Classifier, rules *config.Rules, logger *zap.Logger) *Scorer {
	return &Scorer{places: places, routes: routes, judge: judge, rules: rules, logger: logger}
}

// Score resolves the nearest accepted POI for the service class and scores
// the journey. Provider failure and an empty map both degrade to the score-0
// "very poor" floor; neither is an error for the caller.
func (s *Scorer) Score(ctx context.Context, listing *models.PropertyListing, service models.ServiceClass) *models.ProximityResult {
	result := &models.ProximityResult{Service: service, Score: 0}

	if listing.Coordinates == nil || s.places == nil {
		return result
	}
	rules, ok := s.rules.Places[string(service)]
	if !ok {
		return result
	}

	origin := listing.Coordinates
	candidates := s.discover(ctx, origin.Latitude, origin.Longitude, rules)
	if len(candidates) == 0 {
		return result
	}

	candidates = dedupe(candidates)
	candidates = dropClosed(candidates)
	valid := s.classify(ctx, candidates, service, rules)
	if len(valid) == 0 {
		return result
	}

	best := valid[0]
	result.Name = best.Name
	result.Address = best.Address
	result.DistanceMeters = geo.HaversineMeters(origin.Latitude, origin.Longitude, best.Latitude, best.Longitude)

	route := s.walkingRoute(ctx, origin.Latitude, origin.Longitude, best.Latitude, best.Longitude)
	if route == nil {
		// No route: fall back to a pace estimate over the straight-line
		// distance and score on the duration bucket alone.
		est := int(math.Ceil(result.DistanceMeters / walkingMetersPerMinute))
		result.RawDurationMinutes = est
		result.DurationMinutes = int(math.Ceil(float64(est) * durationInflation))
		result.Score = baseScore(result.DurationMinutes)
		return result
	}

	result.HasRoute = true
	result.RawDurationMinutes = int(math.Round(float64(route.DurationSeconds) / 60.0))
	result.DurationMinutes = adjustedMinutes(route.DurationSeconds)
	result.Hazards = scanHazards(route.Instructions, &s.rules.Hazards)

	base := baseScore(result.DurationMinutes)
	routeScore := routeAccessibilityScore(result.Hazards, result.DurationMinutes)
	result.Score = finalScore(base, routeScore)
	return result
}

// discover is phase A: default radius, widened radius, then widened
// category set.
func (s *Scorer) discover(ctx context.Context, lat, lng float64, rules config.PlaceRules) []geo.Place {
	attempts := []struct {
		categories []string
		radius     int
	}{
		{rules.Categories, defaultRadiusMeters},
		{rules.Categories, widenedRadiusMeters},
		{rules.WidenedCategories, widenedRadiusMeters},
	}

	for _, a := range attempts {
		if len(a.categories) == 0 {
			continue
		}
		places, err := s.places.NearbySearch(ctx, lat, lng, a.categories, a.radius)
		if err != nil {
			s.logger.Warn("poi search failed",
				zap.Strings("categories", a.categories),
				zap.Int("radius", a.radius),
				zap.Error(err),
			)
			continue
		}
		if len(places) > 0 {
			return places
		}
	}
	return nil
}

func (s *Scorer) walkingRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) *geo.Route {
	if s.routes == nil {
		return nil
	}
	route, err := s.routes.WalkingRoute(ctx, fromLat, fromLng, toLat, toLng)
	if err != nil {
		s.logger.Warn("walking route failed", zap.Error(err))
		return nil
	}
	return route
}

func dedupe(places []geo.Place) []geo.Place {
	seen := map[string]bool{}
	out := places[:0]
	for _, p := range places {
		key := strings.ToLower(p.Name) + "|" + strings.ToLower(p.Address)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func dropClosed(places []geo.Place) []geo.Place {
	out := places[:0]
	for _, p := range places {
		if !p.PermanentlyClosed {
			out = append(out, p)
		}
	}
	return out
}

// classify is phase B. Service classes with no allow/deny tables accept
// every candidate. Otherwise the batched remote judge decides, and on any
// failure the deterministic keyword classifier takes over.
func (s *Scorer) classify(ctx context.Context, candidates []geo.Place, service models.ServiceClass, rules config.PlaceRules) []geo.Place {
	if len(rules.Allow) == 0 && len(rules.Deny) == 0 {
		return candidates
	}

	if s.judge != nil {
		valid, err := s.classifyBatched(ctx, candidates, service)
		if err == nil {
			return valid
		}
		s.logger.Warn("batched classification failed, using keyword classifier",
			zap.String("service", string(service)),
			zap.Error(err),
		)
	}

	out := candidates[:0]
	for _, p := range candidates {
		if keywordClassify(p, rules) {
			out = append(out, p)
		}
	}
	return out
}

var serviceDescriptions = map[models.ServiceClass]string{
	models.ServiceGP:    "general medical practice (a GP surgery where patients see a doctor)",
	models.ServiceBus:   "public bus stop or bus station",
	models.ServiceTrain: "railway station with passenger services",
}

var indicesRe = regexp.MustCompile(`\d+`)

// classifyBatched sends every candidate in one prompt and parses back the
// accepted indices.
func (s *Scorer) classifyBatched(ctx context.Context, candidates []geo.Place, service models.ServiceClass) ([]geo.Place, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Target category: %s.\n", serviceDescriptions[service])
	b.WriteString("Which of these places are genuine instances of the target category?\n")
	for i, p := range candidates {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, p.Name, p.Address)
	}
	b.WriteString("Reply with the matching numbers separated by commas, or NONE.")

	reply, err := s.judge.Classify(ctx, b.String())
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToUpper(reply), "NONE") && indicesRe.FindString(reply) == "" {
		return nil, nil
	}

	accepted := map[int]bool{}
	for _, m := range indicesRe.FindAllString(reply, len(candidates)+1) {
		if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= len(candidates) {
			accepted[n-1] = true
		}
	}

	var out []geo.Place
	for i, p := range candidates {
		if accepted[i] {
			out = append(out, p)
		}
	}
	return out, nil
}

// keywordClassify applies the deterministic fallback. Deny terms beat allow
// terms; a name matching neither is accepted, deliberately biasing toward
// inclusion.
func keywordClassify(p geo.Place, rules config.PlaceRules) bool {
	haystack := strings.ToLower(p.Name + " " + p.Address)
	for _, deny := range rules.Deny {
		if strings.Contains(haystack, strings.ToLower(deny)) {
			return false
		}
	}
	for _, allow := range rules.Allow {
		if strings.Contains(haystack, strings.ToLower(allow)) {
			return true
		}
	}
	return true
}
