package proximity

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"agewise-backend/config"
	"agewise-backend/geo"
	"agewise-backend/models"
)

type fakePlaces struct {
	places []geo.Place
	err    error
	calls  int
}

func (f *fakePlaces) NearbySearch(ctx context.Context, lat, lng float64, categories []string, radiusMeters int) ([]geo.Place, error) {
	f.calls++
	return f.places, f.err
}

type fakeRoutes struct {
	route *geo.Route
	err   error
}

func (f *fakeRoutes) WalkingRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*geo.Route, error) {
	return f.route, f.err
}

type fakeJudge struct {
	reply string
	err   error
}

func (f *fakeJudge) Classify(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func testListing() *models.PropertyListing {
	return &models.PropertyListing{
		Coordinates: &models.Coordinates{Latitude: 53.38, Longitude: -1.47},
	}
}

func newTestScorer(t *testing.T, places PlacesSearcher, routes RoutePlanner, judge Classifier) *Scorer {
	t.Helper()
	rules, err := config.LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return NewScorer(places, routes, judge, rules, zap.NewNop())
}

func TestScoreFullRoute(t *testing.T) {
	places := &fakePlaces{places: []geo.Place{
		{Name: "The Grove Surgery", Address: "1 Grove Rd", Latitude: 53.382, Longitude: -1.471},
	}}
	routes := &fakeRoutes{route: &geo.Route{
		DistanceMeters:  400,
		DurationSeconds: 240,
		Instructions:    []string{"Head north on Grove Rd", "Turn right"},
	}}

	s := newTestScorer(t, places, routes, nil)
	res := s.Score(context.Background(), testListing(), models.ServiceGP)

	if res.Name != "The Grove Surgery" {
		t.Fatalf("expected nearest surgery, got %+v", res)
	}
	// 240s raw inflates to 6 adjusted minutes: base 4, clean route 5.
	if res.DurationMinutes != 6 {
		t.Fatalf("expected 6 adjusted minutes, got %d", res.DurationMinutes)
	}
	if !res.HasRoute {
		t.Fatalf("expected a routed result")
	}
	if res.Score != 4.5 {
		t.Fatalf("expected blended score 4.5, got %v", res.Score)
	}
}

func TestScoreHazardousRoute(t *testing.T) {
	places := &fakePlaces{places: []geo.Place{
		{Name: "Hill Top Surgery", Address: "2 Hill Rd", Latitude: 53.383, Longitude: -1.472},
	}}
	routes := &fakeRoutes{route: &geo.Route{
		DistanceMeters:  600,
		DurationSeconds: 240,
		Instructions:    []string{"Climb the steps to the footbridge", "Continue up the steep incline"},
	}}

	s := newTestScorer(t, places, routes, nil)
	res := s.Score(context.Background(), testListing(), models.ServiceGP)

	if !res.Hazards.Stairs || !res.Hazards.SteepIncline {
		t.Fatalf("expected stairs and incline hazards, got %+v", res.Hazards)
	}
	// base 4, route 5-2-1.5 = 1.5, blend (4+1.5)/2 = 2.8 after rounding.
	if res.Score != 2.8 {
		t.Fatalf("expected score 2.8, got %v", res.Score)
	}
}

func TestScoreNoRouteFallsBackToDistance(t *testing.T) {
	places := &fakePlaces{places: []geo.Place{
		// Roughly 300m north of the origin.
		{Name: "Corner Surgery", Address: "3 Corner Rd", Latitude: 53.3827, Longitude: -1.47},
	}}
	routes := &fakeRoutes{route: nil}

	s := newTestScorer(t, places, routes, nil)
	res := s.Score(context.Background(), testListing(), models.ServiceGP)

	if res.HasRoute {
		t.Fatalf("expected unrouted result")
	}
	if res.DurationMinutes == 0 {
		t.Fatalf("expected an estimated duration, got %+v", res)
	}
	if res.Score == 0 {
		t.Fatalf("a reachable candidate should still score, got %+v", res)
	}
}

func TestScoreProviderFailureDegradesToZero(t *testing.T) {
	places := &fakePlaces{err: errors.New("quota exceeded")}
	s := newTestScorer(t, places, &fakeRoutes{}, nil)

	res := s.Score(context.Background(), testListing(), models.ServiceGP)
	if res.Score != 0 || res.Name != "" {
		t.Fatalf("provider failure must degrade to a zero score, got %+v", res)
	}
	// All three discovery attempts should have been tried.
	if places.calls != 3 {
		t.Fatalf("expected 3 discovery attempts, got %d", places.calls)
	}
}

func TestScoreMissingCoordinates(t *testing.T) {
	s := newTestScorer(t, &fakePlaces{}, &fakeRoutes{}, nil)
	res := s.Score(context.Background(), &models.PropertyListing{}, models.ServiceGP)
	if res.Score != 0 {
		t.Fatalf("missing coordinates must score 0, got %+v", res)
	}
}

func TestClassifyBatchedAcceptsIndices(t *testing.T) {
	places := &fakePlaces{places: []geo.Place{
		{Name: "Glow Aesthetics Clinic", Address: "4 High St", Latitude: 53.381, Longitude: -1.47},
		{Name: "Riverside Medical Practice", Address: "5 River Rd", Latitude: 53.382, Longitude: -1.47},
	}}
	routes := &fakeRoutes{route: &geo.Route{DurationSeconds: 300}}
	judge := &fakeJudge{reply: "2"}

	s := newTestScorer(t, places, routes, judge)
	res := s.Score(context.Background(), testListing(), models.ServiceGP)

	if res.Name != "Riverside Medical Practice" {
		t.Fatalf("judge accepted only candidate 2, got %+v", res)
	}
}

func TestClassifyFallsBackToKeywordsOnJudgeFailure(t *testing.T) {
	places := &fakePlaces{places: []geo.Place{
		{Name: "Glow Aesthetics Clinic", Address: "4 High St", Latitude: 53.381, Longitude: -1.47},
		{Name: "Riverside Medical Practice", Address: "5 River Rd", Latitude: 53.382, Longitude: -1.47},
	}}
	routes := &fakeRoutes{route: &geo.Route{DurationSeconds: 300}}
	judge := &fakeJudge{err: errors.New("model unavailable")}

	s := newTestScorer(t, places, routes, judge)
	res := s.Score(context.Background(), testListing(), models.ServiceGP)

	// "aesthetic" is a deny term; the keyword fallback rejects candidate 1.
	if res.Name != "Riverside Medical Practice" {
		t.Fatalf("keyword fallback should reject the aesthetics clinic, got %+v", res)
	}
}

func TestKeywordClassifyDefaultsToInclusion(t *testing.T) {
	rules := config.DefaultRules().Places["gp"]
	p := geo.Place{Name: "Dr Patel & Partners", Address: "6 Elm Rd"}
	if !keywordClassify(p, rules) {
		t.Fatalf("a name matching neither list must be accepted")
	}
	if keywordClassify(geo.Place{Name: "City Veterinary Clinic"}, rules) {
		t.Fatalf("deny terms must reject")
	}
}

func TestDedupeAndDropClosed(t *testing.T) {
	in := []geo.Place{
		{Name: "Stop A", Address: "High St"},
		{Name: "stop a", Address: "high st"},
		{Name: "Stop B", Address: "Low St", PermanentlyClosed: true},
		{Name: "Stop C", Address: "Mid St"},
	}
	out := dropClosed(dedupe(in))
	if len(out) != 2 {
		t.Fatalf("expected 2 places after dedupe and closure filter, got %d: %+v", len(out), out)
	}
}
