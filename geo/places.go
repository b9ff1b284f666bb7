// Package geo holds the place-search and walking-route provider clients.
// Both degrade to ErrProviderUnavailable rather than aborting a request.
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"agewise-backend/monitoring"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrProviderUnavailable is returned when the geospatial provider cannot be
// reached after retries. Proximity scoring treats it as "no data".
var ErrProviderUnavailable = errors.New("geo provider unavailable")

const (
	maxRetries     = 3
	initialBackoff = time.Second
	maxCandidates  = 10
)

// Place is one search candidate.
type Place struct {
	Name              string
	Address           string
	Latitude          float64
	Longitude         float64
	PermanentlyClosed bool
}

// PlacesClient performs nearby POI searches.
type PlacesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewPlacesClient creates a nearby-search client.
func NewPlacesClient(apiKey, baseURL string, timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger, metrics *monitoring.Metrics) *PlacesClient {
	return &PlacesClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

type nearbySearchRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type nearbySearchResponse struct {
	Places []struct {
		DisplayName struct {
			Text string `json:"text"`
		} `json:"displayName"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		BusinessStatus string `json:"businessStatus"`
	} `json:"places"`
}

// NearbySearch returns candidates of the given categories within radiusMeters
// of the point, sorted by straight-line distance.
func (c *PlacesClient) NearbySearch(ctx context.Context, lat, lng float64, categories []string, radiusMeters int) ([]Place, error) {
	reqBody := nearbySearchRequest{
		IncludedTypes:  categories,
		MaxResultCount: maxCandidates,
	}
	reqBody.LocationRestriction.Circle.Center.Latitude = lat
	reqBody.LocationRestriction.Circle.Center.Longitude = lng
	reqBody.LocationRestriction.Circle.Radius = float64(radiusMeters)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.post(ctx, jsonData)
	if err != nil {
		return nil, err
	}

	var apiResp nearbySearchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrProviderUnavailable, err)
	}

	places := make([]Place, 0, len(apiResp.Places))
	for _, p := range apiResp.Places {
		places = append(places, Place{
			Name:              p.DisplayName.Text,
			Address:           p.FormattedAddress,
			Latitude:          p.Location.Latitude,
			Longitude:         p.Location.Longitude,
			PermanentlyClosed: p.BusinessStatus == "CLOSED_PERMANENTLY",
		})
	}
	sortByDistance(places, lat, lng)
	return places, nil
}

func (c *PlacesClient) post(ctx context.Context, jsonData []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", "places.displayName,places.formattedAddress,places.location,places.businessStatus")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		// Client errors won't improve on retry.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			if c.metrics != nil {
				c.metrics.IncExternalFailure("places")
			}
			return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if c.metrics != nil {
		c.metrics.IncExternalFailure("places")
	}
	c.logger.Warn("places search failed", zap.Error(lastErr))
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

func sortByDistance(places []Place, lat, lng float64) {
	for i := 1; i < len(places); i++ {
		for j := i; j > 0; j-- {
			if HaversineMeters(lat, lng, places[j].Latitude, places[j].Longitude) <
				HaversineMeters(lat, lng, places[j-1].Latitude, places[j-1].Longitude) {
				places[j], places[j-1] = places[j-1], places[j]
			} else {
				break
			}
		}
	}
}

// HaversineMeters is the straight-line distance between two WGS84 points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
