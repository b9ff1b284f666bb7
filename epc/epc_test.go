package epc

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"agewise-backend/config"
	"agewise-backend/models"
)

type fakeClassifier struct {
	reply string
	err   error
	calls int
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, prompt, imageURL string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func newTestResolver(t *testing.T, classifier Classifier) *Resolver {
	t.Helper()
	rules, err := config.LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return NewResolver(classifier, rules, zap.NewNop(), nil)
}

func TestResolveExplicitText(t *testing.T) {
	r := newTestResolver(t, nil)
	listing := &models.PropertyListing{Text: "a lovely home. epc rating: c. viewings by appointment."}

	res := r.Resolve(context.Background(), listing)
	if res.Grade == nil || *res.Grade != "C" {
		t.Fatalf("expected grade C, got %+v", res)
	}
	if res.Confidence != 95 || res.Strategy != "explicit_text" {
		t.Fatalf("expected explicit text at confidence 95, got %+v", res)
	}
	if res.Score == nil || *res.Score != 4 {
		t.Fatalf("grade C should map to sub-score 4, got %+v", res.Score)
	}
}

func TestResolveExplicitTextWithNumeric(t *testing.T) {
	r := newTestResolver(t, nil)
	listing := &models.PropertyListing{Text: "energy details: epc c (72) current."}

	res := r.Resolve(context.Background(), listing)
	if res.Grade == nil || *res.Grade != "C" {
		t.Fatalf("expected grade C, got %+v", res)
	}
	if res.Numeric == nil || *res.Numeric != 72 {
		t.Fatalf("expected numeric 72, got %+v", res.Numeric)
	}
	// High-confidence numeric drives the score: round(72/100*5) = 4.
	if res.Score == nil || *res.Score != 4 {
		t.Fatalf("expected sub-score 4 from numeric, got %+v", res.Score)
	}
}

func TestResolveCertificateImageRemapsInconsistentLetter(t *testing.T) {
	classifier := &fakeClassifier{reply: "RATING: A\nSCORE: 85"}
	r := newTestResolver(t, classifier)
	listing := &models.PropertyListing{
		Text:      "no energy details in the text.",
		ImageURLs: []string{"https://media.example.com/photos/epc-cert-12.png"},
	}

	res := r.Resolve(context.Background(), listing)
	if classifier.calls == 0 {
		t.Fatalf("certificate image strategy should have run")
	}
	// 85 sits in the B band, so the misread letter is remapped.
	if res.Grade == nil || *res.Grade != "B" {
		t.Fatalf("expected remapped grade B, got %+v", res)
	}
	if res.Confidence != 75 || res.Strategy != "certificate_image" {
		t.Fatalf("expected certificate image at confidence 75, got %+v", res)
	}
	if res.Numeric == nil || *res.Numeric != 85 {
		t.Fatalf("expected numeric 85, got %+v", res.Numeric)
	}
	// Confidence 75 is below the numeric trust threshold, letter table wins.
	if res.Score == nil || *res.Score != 4 {
		t.Fatalf("expected letter-table sub-score 4, got %+v", res.Score)
	}
}

func TestResolveSecondaryPattern(t *testing.T) {
	r := newTestResolver(t, nil)
	listing := &models.PropertyListing{Text: "spacious flat with energy performance rating: b and gas central heating."}

	res := r.Resolve(context.Background(), listing)
	if res.Grade == nil || *res.Grade != "B" {
		t.Fatalf("expected grade B, got %+v", res)
	}
	if res.Confidence != 70 || res.Strategy != "secondary_patterns" {
		t.Fatalf("expected secondary pattern at confidence 70, got %+v", res)
	}
}

func TestResolveRejectsCouncilTaxBand(t *testing.T) {
	r := newTestResolver(t, nil)
	listing := &models.PropertyListing{Text: "council tax band c applies, epc details not provided."}

	res := r.Resolve(context.Background(), listing)
	if res.Grade != nil {
		t.Fatalf("council tax band must not resolve as an EPC grade, got %+v", res)
	}
	if res.Confidence != 0 || res.Strategy != "none" {
		t.Fatalf("expected terminal not-found, got %+v", res)
	}
}

func TestResolveUnpunctuatedPhrase(t *testing.T) {
	classifier := &fakeClassifier{reply: "NONE"}
	r := newTestResolver(t, classifier)
	listing := &models.PropertyListing{Text: "brand new boiler and double glazing throughout oh and the epc rating d by the way"}

	res := r.Resolve(context.Background(), listing)
	if res.Grade == nil || *res.Grade != "D" {
		t.Fatalf("expected grade D, got %+v", res)
	}
	// Without a separator the explicit strategy stands aside.
	if res.Confidence != 70 || res.Strategy != "secondary_patterns" {
		t.Fatalf("expected secondary pattern at confidence 70, got %+v", res)
	}
}

func TestResolveLiteralPhraseWhenDenyTokenNearby(t *testing.T) {
	r := newTestResolver(t, nil)
	// "road" suppresses the secondary pattern around "rating b"; the literal
	// phrase fallback still resolves it.
	listing := &models.PropertyListing{Text: "situated just off orchard road, epc rating b, with gas central heating."}

	res := r.Resolve(context.Background(), listing)
	if res.Grade == nil || *res.Grade != "B" {
		t.Fatalf("expected grade B, got %+v", res)
	}
	if res.Confidence != 65 || res.Strategy != "literal_phrase" {
		t.Fatalf("expected literal phrase at confidence 65, got %+v", res)
	}
}

func TestLetterForScore(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, "A"}, {92, "A"}, {91, "B"}, {81, "B"}, {80, "C"},
		{69, "C"}, {68, "D"}, {55, "D"}, {54, "E"}, {39, "E"},
		{38, "F"}, {21, "F"}, {20, "G"}, {1, "G"}, {0, "G"}, {105, "A"},
	}
	for _, c := range cases {
		if got := letterForScore(c.score); got != c.want {
			t.Fatalf("letterForScore(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestSubScoreNumericTrustThreshold(t *testing.T) {
	n := 72
	// Below 80 confidence the letter table wins even with a numeric score.
	low := subScore("G", &n, 75)
	if low == nil || *low != 1 {
		t.Fatalf("expected letter-table score 1, got %+v", low)
	}
	high := subScore("G", &n, 95)
	if high == nil || *high != 4 {
		t.Fatalf("expected numeric-derived score 4, got %+v", high)
	}
}
