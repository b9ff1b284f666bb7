package aggregate

import (
	"errors"
	"strings"
	"testing"

	"agewise-backend/cost"
	"agewise-backend/epc"
	"agewise-backend/features"
	"agewise-backend/models"
	"agewise-backend/rooms"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestComposeOverallExcludesNullCategories(t *testing.T) {
	c := Categories{
		GP:       &models.ProximityResult{Service: models.ServiceGP, Name: "Elm Surgery", DurationMinutes: 7, Score: 5},
		Features: &features.Result{Score: 3},
		Rooms:    &rooms.Result{Score: floatPtr(4)},
		// EPC, transport and cost all degraded.
	}

	comp, err := Compose("Test Property", c)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// mean(5, 3, 4) = 4.0, nulls excluded rather than counted as zero.
	if comp.Overall != 4.0 {
		t.Fatalf("expected overall 4.0, got %v", comp.Overall)
	}

	epcCat, ok := comp.Categories[models.CategoryEnergyEfficiency]
	if !ok {
		t.Fatalf("every category must appear even when null")
	}
	if epcCat.Score != nil || epcCat.Rating != "Unknown" {
		t.Fatalf("null category should carry no score and an Unknown rating, got %+v", epcCat)
	}
}

func TestComposeAllNullIsAnError(t *testing.T) {
	_, err := Compose("Test Property", Categories{})
	if !errors.Is(err, ErrAggregationImpossible) {
		t.Fatalf("all-null categories must fail, got %v", err)
	}
}

func TestComposeRatings(t *testing.T) {
	c := Categories{Features: &features.Result{Score: 4.6}}
	comp, err := Compose("", c)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	cat := comp.Categories[models.CategoryAccessibleFeature]
	if cat.Rating != "Excellent" {
		t.Fatalf("4.6 should rate Excellent, got %s", cat.Rating)
	}
}

func TestSummarizePicksBetterMode(t *testing.T) {
	bus := &models.ProximityResult{Service: models.ServiceBus, Name: "Stop A", Score: 3}
	train := &models.ProximityResult{Service: models.ServiceTrain, Name: "Central", Score: 4.5}

	ts := Summarize(bus, train)
	if ts.Score == nil || *ts.Score != 4.5 {
		t.Fatalf("expected the train score to win, got %+v", ts.Score)
	}

	none := Summarize(nil, nil)
	if none.Score != nil {
		t.Fatalf("no modes means no score, got %v", *none.Score)
	}

	// A zero score is still a score: the category was analysed.
	zero := Summarize(&models.ProximityResult{Service: models.ServiceBus, Score: 0}, nil)
	if zero.Score == nil || *zero.Score != 0 {
		t.Fatalf("a zero result must not be treated as null, got %+v", zero.Score)
	}
}

func TestNarrativeGuardedClauses(t *testing.T) {
	grade := "C"
	c := Categories{
		GP: &models.ProximityResult{
			Service: models.ServiceGP, Name: "Elm Surgery", DurationMinutes: 7,
			HasRoute: true, Hazards: models.RouteHazards{Stairs: true}, Score: 3.5,
		},
		EPC: &epc.Result{Grade: &grade, Score: floatPtr(4)},
		Features: &features.Result{
			Flags: []models.FeatureFlag{
				{Name: features.FlagStepFreeInternal, Present: true},
				{Name: features.FlagDownstairsBathroom, Present: true},
				{Name: features.FlagGardenAccess, Present: true},
			},
			Count: 3, Score: 1.9,
		},
		Cost: &cost.Result{CouncilTaxBand: strPtr("B"), Score: floatPtr(4)},
	}

	comp, err := Compose("Elm Close Bungalow", c)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	n := comp.Narrative

	for _, want := range []string{
		"Elm Close Bungalow",
		"Elm Surgery",
		"7-minute walk",
		"stairs",
		"council tax band B",
		"EPC rating of C",
	} {
		if !strings.Contains(n, want) {
			t.Fatalf("narrative missing %q:\n%s", want, n)
		}
	}

	// External level access was never established; the narrative flags it.
	if !strings.Contains(n, "external level access") {
		t.Fatalf("narrative should call out the missing critical criterion:\n%s", n)
	}
}

func TestNarrativeHighlightsRequireFeatureScore(t *testing.T) {
	flags := []models.FeatureFlag{
		{Name: features.FlagGardenAccess, Present: true},
		{Name: features.FlagPrivateParking, Present: true},
		{Name: features.FlagBalconyTerrace, Present: true},
	}

	low := Categories{Features: &features.Result{Flags: flags, Count: 3, Score: 1.9}}
	comp, err := Compose("", low)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if strings.Contains(comp.Narrative, "Accessibility highlights") {
		t.Fatalf("feature score below 3 must suppress the highlights clause:\n%s", comp.Narrative)
	}

	goodFlags := append([]models.FeatureFlag{
		{Name: features.FlagStepFreeInternal, Present: true},
		{Name: features.FlagGroundFloorEntry, Present: true},
	}, flags...)
	good := Categories{Features: &features.Result{Flags: goodFlags, Count: 5, Score: 3.1}}
	comp, err = Compose("", good)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(comp.Narrative, "Accessibility highlights include") {
		t.Fatalf("feature score of 3 or more should surface the present flags:\n%s", comp.Narrative)
	}
}

func TestNarrativeOmitsUnsupportedClaims(t *testing.T) {
	c := Categories{Rooms: &rooms.Result{Score: floatPtr(3)}}
	comp, err := Compose("", c)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	n := comp.Narrative

	if strings.Contains(n, "GP") || strings.Contains(n, "surgery") {
		t.Fatalf("no GP data, narrative must not mention one:\n%s", n)
	}
	// Energy absence is stated explicitly, never silently skipped.
	if !strings.Contains(n, "No energy performance rating") {
		t.Fatalf("narrative must state the missing energy rating:\n%s", n)
	}
}
