// Package scraper turns a listing page into the immutable PropertyListing
// snapshot the analysis engine works from. Robustness against anti-bot
// defenses is out of scope; the portal's plain HTML is assumed reachable.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"agewise-backend/config"
	"agewise-backend/models"
	"agewise-backend/monitoring"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrSourceUnavailable is fatal: without the page there is nothing to score.
var ErrSourceUnavailable = errors.New("listing source unavailable")

// ErrInvalidURL rejects URLs outside the supported portal.
var ErrInvalidURL = errors.New("invalid listing url")

const userAgent = "Mozilla/5.0 (compatible; AgeWiseBot/1.0)"

// Scraper fetches and normalizes listing pages.
type Scraper struct {
	httpClient     *http.Client
	requiredDomain string
	rules          *config.Rules
	logger         *zap.Logger
	metrics        *monitoring.Metrics
}

// New creates a scraper bound to the required portal domain.
func New(requiredDomain string, timeout time.Duration, rules *config.Rules, logger *zap.Logger, metrics *monitoring.Metrics) *Scraper {
	return &Scraper{
		httpClient:     &http.Client{Timeout: timeout},
		requiredDomain: requiredDomain,
		rules:          rules,
		logger:         logger,
		metrics:        metrics,
	}
}

// ValidateURL checks the inbound URL parses and belongs to the portal.
func (s *Scraper) ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if !strings.Contains(u.Host, s.requiredDomain) {
		return fmt.Errorf("%w: host %s does not match required domain %s", ErrInvalidURL, u.Host, s.requiredDomain)
	}
	return nil
}

// Fetch downloads the listing page and builds the snapshot.
func (s *Scraper) Fetch(ctx context.Context, listingURL string) (*models.PropertyListing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncExternalFailure("scrape")
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if s.metrics != nil {
			s.metrics.IncExternalFailure("scrape")
		}
		return nil, fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse html: %v", ErrSourceUnavailable, err)
	}

	return s.Parse(ctx, doc, listingURL)
}

// Parse builds a PropertyListing from a parsed document. Split from Fetch so
// tests can feed static HTML.
func (s *Scraper) Parse(ctx context.Context, doc *goquery.Document, listingURL string) (*models.PropertyListing, error) {
	listing := &models.PropertyListing{URL: listingURL}

	listing.Title = extractTitle(doc)
	listing.Text = normalizeText(doc.Find("body").Text())
	listing.Features = extractFeatures(doc)
	listing.ImageURLs, listing.FloorPlanURLs = s.extractImages(doc, listingURL)
	listing.Coordinates = extractCoordinates(doc)
	listing.PricePounds = extractPrice(listing.Text, doc)
	listing.CouncilTaxBand = extractCouncilTaxBand(listing.Text)
	listing.FloorAreaSqm = extractFloorArea(listing.Text)
	listing.ParkingSpaces, listing.GardenListed = extractStructuredAmenities(listing.Features)

	listing.Location = s.resolveLocation(ctx, doc, listing)

	if listing.Title == "" && listing.Text == "" {
		return nil, fmt.Errorf("%w: page contained no usable content", ErrSourceUnavailable)
	}
	return listing, nil
}

func extractTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && t != "" {
		return strings.TrimSpace(t)
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").Text())
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeText(raw string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(raw, " ")))
}

// extractFeatures collects the key-feature bullets: list items under a
// heading mentioning "key features", falling back to obviously tagged lists.
func extractFeatures(doc *goquery.Document) []string {
	var features []string
	seen := map[string]bool{}
	add := func(text string) {
		t := normalizeText(text)
		if t != "" && !seen[t] && len(t) < 200 {
			seen[t] = true
			features = append(features, t)
		}
	}

	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		if !strings.Contains(strings.ToLower(h.Text()), "key features") {
			return
		}
		h.NextFiltered("ul").Find("li").Each(func(_ int, li *goquery.Selection) {
			add(li.Text())
		})
		h.Parent().Find("ul li").Each(func(_ int, li *goquery.Selection) {
			add(li.Text())
		})
	})

	doc.Find(`[data-testid*="feature"] li, .key-features li, ul[class*="feature"] li`).Each(func(_ int, li *goquery.Selection) {
		add(li.Text())
	})

	return features
}

func (s *Scraper) extractImages(doc *goquery.Document, base string) (images, floorPlans []string) {
	baseURL, _ := url.Parse(base)
	seen := map[string]bool{}

	collect := func(src, hint string) {
		abs := absoluteURL(baseURL, src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		if isFloorPlan(abs) || isFloorPlan(hint) {
			floorPlans = append(floorPlans, abs)
		} else {
			images = append(images, abs)
		}
	}

	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		collect(og, "")
	}
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if src == "" {
			src, _ = img.Attr("data-src")
		}
		alt, _ := img.Attr("alt")
		collect(src, alt)
	})
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if hasImageExt(href) {
			collect(href, a.Text())
		}
	})

	return images, floorPlans
}

func absoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func hasImageExt(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"?") {
			return true
		}
	}
	return false
}

func isFloorPlan(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "floorplan") ||
		strings.Contains(lower, "floor-plan") ||
		strings.Contains(lower, "floor_plan") ||
		strings.Contains(lower, "floor plan")
}

var (
	latitudeRe  = regexp.MustCompile(`"latitude"\s*:\s*(-?\d+(?:\.\d+)?)`)
	longitudeRe = regexp.MustCompile(`"longitude"\s*:\s*(-?\d+(?:\.\d+)?)`)
)

// extractCoordinates finds a lat/lng pair from geo meta tags or embedded
// script JSON.
func extractCoordinates(doc *goquery.Document) *models.Coordinates {
	latStr, _ := doc.Find(`meta[property="place:location:latitude"]`).Attr("content")
	lngStr, _ := doc.Find(`meta[property="place:location:longitude"]`).Attr("content")
	if latStr != "" && lngStr != "" {
		if lat, err1 := strconv.ParseFloat(latStr, 64); err1 == nil {
			if lng, err2 := strconv.ParseFloat(lngStr, 64); err2 == nil {
				return &models.Coordinates{Latitude: lat, Longitude: lng}
			}
		}
	}

	html, err := doc.Html()
	if err != nil {
		return nil
	}
	latMatch := latitudeRe.FindStringSubmatch(html)
	lngMatch := longitudeRe.FindStringSubmatch(html)
	if latMatch == nil || lngMatch == nil {
		return nil
	}
	lat, err1 := strconv.ParseFloat(latMatch[1], 64)
	lng, err2 := strconv.ParseFloat(lngMatch[1], 64)
	if err1 != nil || err2 != nil || (lat == 0 && lng == 0) {
		return nil
	}
	return &models.Coordinates{Latitude: lat, Longitude: lng}
}

var priceRe = regexp.MustCompile(`£\s*([\d,]+)`)

func extractPrice(text string, doc *goquery.Document) *int {
	candidates := []string{}
	if p, ok := doc.Find(`meta[property="product:price:amount"]`).Attr("content"); ok {
		candidates = append(candidates, p)
	}
	if m := priceRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	for _, c := range candidates {
		n, err := strconv.Atoi(strings.ReplaceAll(c, ",", ""))
		if err == nil && n >= 10000 { // ignore fee small-print amounts
			return &n
		}
	}
	return nil
}

var councilTaxRe = regexp.MustCompile(`council tax[:\s]*band[:\s]*([a-h])\b`)

func extractCouncilTaxBand(text string) *string {
	if m := councilTaxRe.FindStringSubmatch(text); m != nil {
		band := strings.ToUpper(m[1])
		return &band
	}
	return nil
}

var (
	sqmRe  = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(?:sq\.?\s?m|sqm|m²|square met)`)
	sqftRe = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(?:sq\.?\s?ft|sqft|ft²|square fe)`)
)

func extractFloorArea(text string) *float64 {
	if m := sqmRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && v > 10 {
			return &v
		}
	}
	if m := sqftRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && v > 100 {
			sqm := v * 0.092903
			return &sqm
		}
	}
	return nil
}

var parkingSpacesRe = regexp.MustCompile(`(\d+)\s+(?:allocated\s+)?parking spaces?`)

// extractStructuredAmenities reads explicit parking/garden declarations from
// the key-feature bullets. Keyword fallback lives in the feature detector.
func extractStructuredAmenities(features []string) (parking *int, garden *bool) {
	for _, f := range features {
		if m := parkingSpacesRe.FindStringSubmatch(f); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
				parking = &n
			}
		}
		if f == "garden" || strings.HasPrefix(f, "garden:") || strings.HasPrefix(f, "private garden") || strings.HasPrefix(f, "rear garden") {
			t := true
			garden = &t
		}
	}
	return parking, garden
}
