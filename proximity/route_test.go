package proximity

import (
	"testing"

	"agewise-backend/config"
	"agewise-backend/models"
)

func TestAdjustedMinutes(t *testing.T) {
	cases := []struct {
		rawSeconds int
		want       int
	}{
		{240, 6},  // 4 min raw inflates to 5.6, rounds up
		{300, 7},  // 5 min raw
		{60, 2},   // 1 min raw -> 1.4
		{0, 0},
		{1200, 28}, // 20 min raw
	}
	for _, c := range cases {
		if got := adjustedMinutes(c.rawSeconds); got != c.want {
			t.Fatalf("adjustedMinutes(%d) = %d, want %d", c.rawSeconds, got, c.want)
		}
	}
}

func TestBaseScoreBuckets(t *testing.T) {
	cases := []struct {
		minutes int
		want    float64
	}{
		{0, 5}, {5, 5}, {6, 4}, {10, 4}, {11, 3}, {15, 3},
		{16, 2}, {20, 2}, {21, 1}, {25, 1}, {26, 0}, {60, 0},
	}
	for _, c := range cases {
		if got := baseScore(c.minutes); got != c.want {
			t.Fatalf("baseScore(%d) = %v, want %v", c.minutes, got, c.want)
		}
	}
}

func TestScanHazards(t *testing.T) {
	rules := config.DefaultRules()
	hz := scanHazards([]string{
		"Take the stairs down to the underpass",
		"Continue up the steep hill",
		"Cross the main road at the pedestrian crossing",
	}, &rules.Hazards)

	if !hz.Stairs || !hz.SteepIncline || !hz.BusyRoadCrossing || !hz.TrafficLight {
		t.Fatalf("expected all hazards detected, got %+v", hz)
	}

	clean := scanHazards([]string{"Turn left", "Continue straight for 200 metres"}, &rules.Hazards)
	if clean != (models.RouteHazards{}) {
		t.Fatalf("expected no hazards, got %+v", clean)
	}
}

func TestRouteAccessibilityScore(t *testing.T) {
	cases := []struct {
		hz      models.RouteHazards
		minutes int
		want    float64
	}{
		{models.RouteHazards{}, 10, 5},
		{models.RouteHazards{Stairs: true}, 10, 3},
		{models.RouteHazards{SteepIncline: true}, 10, 3.5},
		// An unsignalled busy-road crossing costs a point.
		{models.RouteHazards{BusyRoadCrossing: true}, 10, 4},
		// A signalled crossing does not.
		{models.RouteHazards{BusyRoadCrossing: true, TrafficLight: true}, 10, 5},
		{models.RouteHazards{}, 16, 4},
		{models.RouteHazards{}, 26, 3},
		// Every penalty at once still floors at 1.
		{models.RouteHazards{Stairs: true, SteepIncline: true, BusyRoadCrossing: true}, 30, 1},
	}
	for _, c := range cases {
		if got := routeAccessibilityScore(c.hz, c.minutes); got != c.want {
			t.Fatalf("routeAccessibilityScore(%+v, %d) = %v, want %v", c.hz, c.minutes, got, c.want)
		}
	}
}

func TestFinalScoreBlend(t *testing.T) {
	if got := finalScore(4, 3); got != 3.5 {
		t.Fatalf("finalScore(4, 3) = %v, want 3.5", got)
	}
	if got := finalScore(5, 5); got != 5 {
		t.Fatalf("finalScore(5, 5) = %v, want 5", got)
	}
}
