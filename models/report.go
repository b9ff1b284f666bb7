package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CategoryScore is one scored analysis category in the API response and the
// persisted report. Score is nil when the category produced no evidence; nil
// categories are excluded from the overall average.
type CategoryScore struct {
	Score   *float64               `json:"score"`
	Rating  string                 `json:"rating"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CategoryScores maps category keys to their scores.
type CategoryScores map[string]CategoryScore

// Value implements driver.Valuer for JSONB
func (c CategoryScores) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *CategoryScores) Scan(value interface{}) error {
	if value == nil {
		*c = make(CategoryScores)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		*c = make(CategoryScores)
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// Category keys used in responses and persisted reports.
const (
	CategoryGPProximity       = "gp_proximity"
	CategoryEnergyEfficiency  = "energy_efficiency"
	CategoryAccessibleFeature = "accessible_features"
	CategoryPublicTransport   = "public_transport"
	CategoryRoomAccommodation = "room_accommodation"
	CategoryPropertyCost      = "property_cost"
)

// AnalysisReport is a completed analysis persisted for later retrieval.
type AnalysisReport struct {
	ID           uuid.UUID      `json:"id"`
	SourceURL    string         `json:"source_url"`
	Title        string         `json:"title"`
	PricePounds  *int           `json:"price_pounds"`
	Location     *string        `json:"location"`
	OverallScore float64        `json:"overall_score"`
	Narrative    string         `json:"narrative"`
	Categories   CategoryScores `json:"categories"`
	CreatedAt    time.Time      `json:"created_at"`
}

// RatingForScore maps a 0-5 score to its display band.
func RatingForScore(score float64) string {
	switch {
	case score >= 4.5:
		return "Excellent"
	case score >= 3.5:
		return "Good"
	case score >= 2.5:
		return "Average"
	case score >= 1.5:
		return "Poor"
	default:
		return "Very Poor"
	}
}
