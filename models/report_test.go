package models

import (
	"strings"
	"testing"
)

func TestRatingForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{5, "Excellent"}, {4.5, "Excellent"},
		{4.4, "Good"}, {3.5, "Good"},
		{3.4, "Average"}, {2.5, "Average"},
		{2.4, "Poor"}, {1.5, "Poor"},
		{1.4, "Very Poor"}, {0, "Very Poor"},
	}
	for _, c := range cases {
		if got := RatingForScore(c.score); got != c.want {
			t.Fatalf("RatingForScore(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestCategoryScoresScanRoundTrip(t *testing.T) {
	score := 4.5
	in := CategoryScores{
		CategoryGPProximity: {Score: &score, Rating: "Excellent"},
	}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out CategoryScores
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	got, ok := out[CategoryGPProximity]
	if !ok || got.Score == nil || *got.Score != 4.5 || got.Rating != "Excellent" {
		t.Fatalf("round trip lost data: %+v", out)
	}
}

func TestCategoryScoresScanNil(t *testing.T) {
	var c CategoryScores
	if err := c.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if c == nil {
		t.Fatalf("nil scan should initialise an empty map")
	}
}

func TestSearchTextNormalizes(t *testing.T) {
	l := PropertyListing{
		Title:    "Bungalow For Sale",
		Features: []string{"Driveway"},
		Text:     "all on one level",
	}
	got := l.SearchText()
	for _, want := range []string{"bungalow for sale", "driveway", "all on one level"} {
		if !strings.Contains(got, want) {
			t.Fatalf("search text missing %q: %q", want, got)
		}
	}
}
