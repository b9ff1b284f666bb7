package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agewise-backend/monitoring"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Route is a walking route with its turn-by-turn instruction texts. The
// instructions are scanned for hazard keywords; nothing else about them is
// interpreted.
type Route struct {
	DistanceMeters  int
	DurationSeconds int
	Instructions    []string
}

// RoutesClient requests walking routes.
type RoutesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewRoutesClient creates a walking-route client.
func NewRoutesClient(apiKey, baseURL string, timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger, metrics *monitoring.Metrics) *RoutesClient {
	return &RoutesClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
		metrics:    metrics,
	}
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type waypoint struct {
	Location struct {
		LatLng latLng `json:"latLng"`
	} `json:"location"`
}

type computeRoutesRequest struct {
	Origin      waypoint `json:"origin"`
	Destination waypoint `json:"destination"`
	TravelMode  string   `json:"travelMode"`
}

type computeRoutesResponse struct {
	Routes []struct {
		DistanceMeters int    `json:"distanceMeters"`
		Duration       string `json:"duration"`
		Legs           []struct {
			Steps []struct {
				NavigationInstruction struct {
					Instructions string `json:"instructions"`
				} `json:"navigationInstruction"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// WalkingRoute requests a walking route between two points. A nil route with
// nil error means the provider found no path.
func (c *RoutesClient) WalkingRoute(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*Route, error) {
	var reqBody computeRoutesRequest
	reqBody.Origin.Location.LatLng = latLng{Latitude: fromLat, Longitude: fromLng}
	reqBody.Destination.Location.LatLng = latLng{Latitude: toLat, Longitude: toLng}
	reqBody.TravelMode = "WALK"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.post(ctx, jsonData)
	if err != nil {
		return nil, err
	}

	var apiResp computeRoutesResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrProviderUnavailable, err)
	}
	if len(apiResp.Routes) == 0 {
		return nil, nil
	}

	r := apiResp.Routes[0]
	route := &Route{
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: parseDurationSeconds(r.Duration),
	}
	for _, leg := range r.Legs {
		for _, step := range leg.Steps {
			if step.NavigationInstruction.Instructions != "" {
				route.Instructions = append(route.Instructions, step.NavigationInstruction.Instructions)
			}
		}
	}
	return route, nil
}

func (c *RoutesClient) post(ctx context.Context, jsonData []byte) ([]byte, error) {
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
		req.Header.Set("X-Goog-FieldMask", "routes.distanceMeters,routes.duration,routes.legs.steps.navigationInstruction")

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
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			if c.metrics != nil {
				c.metrics.IncExternalFailure("routes")
			}
			return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if c.metrics != nil {
		c.metrics.IncExternalFailure("routes")
	}
	c.logger.Warn("route request failed", zap.Error(lastErr))
	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
}

// parseDurationSeconds handles the provider's "312s" duration format.
func parseDurationSeconds(d string) int {
	d = strings.TrimSuffix(strings.TrimSpace(d), "s")
	if d == "" {
		return 0
	}
	n, err := strconv.ParseFloat(d, 64)
	if err != nil {
		return 0
	}
	return int(n)
}
