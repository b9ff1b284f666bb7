package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"agewise-backend/models"
	"agewise-backend/resolver"

	"github.com/PuerkitoBio/goquery"
)

// resolveLocation extracts the human-readable location through its own
// fallback chain. Each strategy's candidate is cross-checked against the
// listing coordinates: text naming one city while the coordinates sit inside
// a different city's bounding box rejects that strategy and tries the next.
func (s *Scraper) resolveLocation(ctx context.Context, doc *goquery.Document, listing *models.PropertyListing) *string {
	structured := structuredLocality(doc)

	strategies := []resolver.Strategy{
		resolver.StrategyFunc{
			StrategyName: "structured_locality",
			Fn: func(_ context.Context, l *models.PropertyListing) (*models.Evidence, error) {
				return s.locationEvidence(structured, 90, "address metadata on the page", l), nil
			},
		},
		resolver.StrategyFunc{
			StrategyName: "title_tail",
			Fn: func(_ context.Context, l *models.PropertyListing) (*models.Evidence, error) {
				return s.locationEvidence(titleTail(l.Title), 75, "trailing segment of the listing title", l), nil
			},
		},
		resolver.StrategyFunc{
			StrategyName: "text_pattern",
			Fn: func(_ context.Context, l *models.PropertyListing) (*models.Evidence, error) {
				return s.locationEvidence(locationFromText(l.Text), 60, "located-in phrase in the description", l), nil
			},
		},
	}

	chain := resolver.NewChain("location", s.logger, strategies, resolver.WithMetrics(s.metrics))
	ev := chain.Resolve(ctx, listing)
	if !ev.Found() {
		return nil
	}
	return &ev.Value
}

// locationEvidence validates a candidate against the coordinate bounding
// boxes and wraps it as evidence. A rejected or empty candidate yields nil so
// the chain advances.
func (s *Scraper) locationEvidence(candidate string, confidence int, source string, listing *models.PropertyListing) *models.Evidence {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil
	}
	if !s.locationConsistent(candidate, listing.Coordinates) {
		s.logger.Debug("location candidate contradicts coordinates")
		return nil
	}
	return &models.Evidence{
		Value:      candidate,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("location %q from %s", candidate, source),
	}
}

// locationConsistent rejects a candidate naming a known city when the
// coordinates fall inside a different known city's bounding box. Candidates
// naming no city in the table, or listings without coordinates, pass.
func (s *Scraper) locationConsistent(candidate string, coords *models.Coordinates) bool {
	if coords == nil {
		return true
	}
	coordCity := s.rules.CityFor(coords.Latitude, coords.Longitude)
	if coordCity == nil {
		return true
	}

	lower := strings.ToLower(candidate)
	if strings.Contains(lower, coordCity.Name) {
		return true
	}
	for _, city := range s.rules.Cities {
		if city.Name != coordCity.Name && strings.Contains(lower, city.Name) {
			return false
		}
	}
	return true
}

func structuredLocality(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[property="og:locality"]`).Attr("content"); ok && v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[name="geo.placename"]`).Attr("content"); ok && v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("address").First().Text()); v != "" {
		return v
	}
	return ""
}

// titleTail returns the segment after the last comma of a portal-style title
// like "2 bedroom bungalow for sale in Acacia Road, Sheffield".
func titleTail(title string) string {
	idx := strings.LastIndex(title, ",")
	if idx < 0 || idx == len(title)-1 {
		return ""
	}
	return strings.TrimSpace(title[idx+1:])
}

var locatedInRe = regexp.MustCompile(`(?:located|situated|positioned) in (?:the (?:heart|centre|center) of )?([a-z][a-z\s-]{2,40}?)(?:[.,;]|$)`)

func locationFromText(text string) string {
	m := locatedInRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
