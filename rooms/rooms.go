// Package rooms extracts room counts deterministically and scores how well
// the accommodation suits a small household with mobility constraints.
package rooms

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"agewise-backend/models"
)

// Result holds the extracted counts and the bounded sub-score. Score is nil
// when the listing gave no room information at all.
type Result struct {
	Bedrooms     *int     `json:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"`
	Receptions   *int     `json:"receptions"`
	FloorAreaSqm *float64 `json:"floor_area_sqm,omitempty"`
	Score        *float64 `json:"score"`
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	bedroomRe   = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*(?:double\s+)?bed(?:room)?s?\b`)
	bathroomRe  = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*(?:bath(?:room)?|shower room|wet room)s?\b`)
	receptionRe = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*reception(?:\s+room)?s?\b`)
)

// Analyze counts rooms from the title first (portals put the counts there)
// and the body text second.
func Analyze(listing *models.PropertyListing) *Result {
	res := &Result{FloorAreaSqm: listing.FloorAreaSqm}

	title := strings.ToLower(listing.Title)
	text := listing.SearchText()

	res.Bedrooms = firstCount(bedroomRe, title, text)
	res.Bathrooms = firstCount(bathroomRe, title, text)
	res.Receptions = firstCount(receptionRe, title, text)

	res.Score = score(res)
	return res
}

func firstCount(re *regexp.Regexp, sources ...string) *int {
	for _, src := range sources {
		m := re.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		if n, ok := parseCount(m[1]); ok {
			return &n
		}
	}
	return nil
}

func parseCount(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 20 {
		return 0, false
	}
	return n, true
}

// score starts neutral and rewards a spare bedroom (carer or family stays),
// a second bathroom and a second reception room.
func score(r *Result) *float64 {
	if r.Bedrooms == nil && r.Bathrooms == nil && r.Receptions == nil {
		return nil
	}

	s := 3.0
	if r.Bedrooms != nil {
		switch {
		case *r.Bedrooms >= 2:
			s += 1
		case *r.Bedrooms == 0:
			s -= 1
		}
	}
	if r.Bathrooms != nil && *r.Bathrooms >= 2 {
		s += 1
	}
	if r.Receptions != nil && *r.Receptions >= 2 {
		s += 0.5
	}

	s = math.Round(math.Min(5, math.Max(1, s))*10) / 10
	return &s
}
