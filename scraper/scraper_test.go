package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"agewise-backend/config"
)

const listingHTML = `<!DOCTYPE html>
<html>
<head>
<title>Fallback title</title>
<meta property="og:title" content="2 bedroom bungalow for sale in Acacia Road, Sheffield">
<meta property="og:image" content="https://media.example.com/photos/main.jpg">
</head>
<body>
<h1>2 bedroom bungalow for sale in Acacia Road, Sheffield</h1>
<p>Guide price £265,000</p>
<div>
  <h2>Key features</h2>
  <ul>
    <li>Detached bungalow</li>
    <li>2 allocated parking spaces</li>
    <li>Rear garden with patio</li>
    <li>EPC rating C</li>
  </ul>
</div>
<p>This delightful bungalow is situated in sheffield, close to local shops.
Council tax band: C. The accommodation extends to 82 sq m.</p>
<img src="/photos/lounge.jpg" alt="Lounge">
<img src="/photos/floorplan-1.png" alt="Floor plan">
<script>window.__DATA__ = {"location": {"latitude": 53.38, "longitude": -1.47}};</script>
</body>
</html>`

func newTestScraper(t *testing.T) *Scraper {
	t.Helper()
	rules, err := config.LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return New("rightmove.co.uk", 5*time.Second, rules, zap.NewNop(), nil)
}

func parseTestDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestValidateURL(t *testing.T) {
	s := newTestScraper(t)
	cases := []struct {
		url string
		ok  bool
	}{
		{"https://www.rightmove.co.uk/properties/123456", true},
		{"https://rightmove.co.uk/properties/123456", true},
		{"https://www.zoopla.co.uk/for-sale/details/1", false},
		{"not a url", false},
		{"", false},
	}
	for _, c := range cases {
		err := s.ValidateURL(c.url)
		if c.ok && err != nil {
			t.Fatalf("ValidateURL(%q) unexpected error: %v", c.url, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("ValidateURL(%q) expected ErrInvalidURL, got %v", c.url, err)
		}
	}
}

func TestParseListing(t *testing.T) {
	s := newTestScraper(t)
	doc := parseTestDoc(t, listingHTML)

	listing, err := s.Parse(context.Background(), doc, "https://www.rightmove.co.uk/properties/123456")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if listing.Title != "2 bedroom bungalow for sale in Acacia Road, Sheffield" {
		t.Fatalf("unexpected title %q", listing.Title)
	}
	if listing.PricePounds == nil || *listing.PricePounds != 265000 {
		t.Fatalf("expected price 265000, got %+v", listing.PricePounds)
	}
	if listing.CouncilTaxBand == nil || *listing.CouncilTaxBand != "C" {
		t.Fatalf("expected council tax band C, got %+v", listing.CouncilTaxBand)
	}
	if listing.FloorAreaSqm == nil || *listing.FloorAreaSqm != 82 {
		t.Fatalf("expected 82 sqm, got %+v", listing.FloorAreaSqm)
	}
	if listing.Coordinates == nil || listing.Coordinates.Latitude != 53.38 {
		t.Fatalf("expected coordinates from embedded JSON, got %+v", listing.Coordinates)
	}
	if len(listing.Features) < 4 {
		t.Fatalf("expected the key-feature bullets, got %v", listing.Features)
	}
	if listing.ParkingSpaces == nil || *listing.ParkingSpaces != 2 {
		t.Fatalf("expected 2 structured parking spaces, got %+v", listing.ParkingSpaces)
	}
	if listing.GardenListed == nil || !*listing.GardenListed {
		t.Fatalf("expected structured garden flag, got %+v", listing.GardenListed)
	}
	if len(listing.FloorPlanURLs) != 1 || !strings.Contains(listing.FloorPlanURLs[0], "floorplan") {
		t.Fatalf("expected the floor plan separated out, got %v", listing.FloorPlanURLs)
	}
	for _, u := range listing.ImageURLs {
		if strings.Contains(u, "floorplan") {
			t.Fatalf("floor plan leaked into photo list: %v", listing.ImageURLs)
		}
	}
	if listing.Location == nil || !strings.EqualFold(*listing.Location, "Sheffield") {
		t.Fatalf("expected location Sheffield, got %+v", listing.Location)
	}
}

func TestParseEmptyPage(t *testing.T) {
	s := newTestScraper(t)
	doc := parseTestDoc(t, "<html><head></head><body></body></html>")

	_, err := s.Parse(context.Background(), doc, "https://www.rightmove.co.uk/properties/1")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("empty page must be fatal, got %v", err)
	}
}

func TestLocationRejectedWhenCoordinatesDisagree(t *testing.T) {
	s := newTestScraper(t)
	// Title claims London; the coordinates are inside Sheffield's box.
	html := `<html><head>
<meta property="og:title" content="Flat for sale in Baker Street, London">
</head><body>
<h1>Flat for sale in Baker Street, London</h1>
<p>A lovely flat. Viewings recommended.</p>
<script>var d = {"latitude": 53.38, "longitude": -1.47};</script>
</body></html>`
	doc := parseTestDoc(t, html)

	listing, err := s.Parse(context.Background(), doc, "https://www.rightmove.co.uk/properties/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if listing.Location != nil {
		t.Fatalf("contradictory location must be rejected, got %q", *listing.Location)
	}
}

func TestTitleTail(t *testing.T) {
	if got := titleTail("2 bedroom bungalow for sale in Acacia Road, Sheffield"); got != "Sheffield" {
		t.Fatalf("titleTail = %q", got)
	}
	if got := titleTail("no comma here"); got != "" {
		t.Fatalf("expected empty tail, got %q", got)
	}
}

func TestExtractFloorAreaConvertsSquareFeet(t *testing.T) {
	area := extractFloorArea("the property extends to 900 sq ft of accommodation")
	if area == nil {
		t.Fatalf("expected a converted area")
	}
	if *area < 83 || *area > 84 {
		t.Fatalf("900 sq ft should convert to about 83.6 sqm, got %v", *area)
	}
}

func TestExtractPriceIgnoresSmallAmounts(t *testing.T) {
	doc := parseTestDoc(t, "<html><body><p>admin fee £150 applies</p></body></html>")
	text := normalizeText("admin fee £150 applies")
	if p := extractPrice(text, doc); p != nil {
		t.Fatalf("fee small-print must not become the price, got %d", *p)
	}
}
