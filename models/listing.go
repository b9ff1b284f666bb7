package models

import "strings"

// Coordinates is a WGS84 point taken from the listing page.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PropertyListing is the immutable per-request snapshot of a scraped listing.
// It is built once by the scraper, shared read-only by every sub-analysis and
// discarded when the response is written. Optional scraped values are pointers
// so "absent" and "zero" stay distinguishable at every use site.
type PropertyListing struct {
	URL   string
	Title string

	// Text is the full page text, lowercased and whitespace-normalized.
	Text string

	// Features holds the listing's key-feature bullets, lowercased.
	Features []string

	ImageURLs     []string
	FloorPlanURLs []string

	Coordinates *Coordinates
	Location    *string

	// PricePounds is the asking price in whole pounds.
	PricePounds *int

	Bedrooms       *int
	Bathrooms      *int
	ParkingSpaces  *int
	GardenListed   *bool
	FloorAreaSqm   *float64
	CouncilTaxBand *string
}

// SearchText returns the haystack the keyword detectors scan: title plus
// key features plus body text, all lowercased.
func (l *PropertyListing) SearchText() string {
	parts := make([]string, 0, len(l.Features)+2)
	parts = append(parts, strings.ToLower(l.Title))
	for _, f := range l.Features {
		parts = append(parts, strings.ToLower(f))
	}
	parts = append(parts, l.Text)
	return strings.Join(parts, " ")
}
