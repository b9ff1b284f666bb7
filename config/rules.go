package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordSet is a match list with an exclusion list. A text matches when it
// contains any Any entry and no Exclude entry.
type KeywordSet struct {
	Any     []string `yaml:"any"`
	Exclude []string `yaml:"exclude"`
}

// CityBounds is a coarse bounding box used to reject location text that
// contradicts the listing's coordinates.
type CityBounds struct {
	Name   string  `yaml:"name"`
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// LevelRules classify a property as single-level or multi-level.
type LevelRules struct {
	SingleLevel []string `yaml:"single_level"`
	MultiLevel  []string `yaml:"multi_level"`
	UpperFloor  []string `yaml:"upper_floor"`
	Lift        []string `yaml:"lift"`
}

// FeatureRules drive the eight accessibility criteria.
type FeatureRules struct {
	Bedroom     []string `yaml:"bedroom"`
	Bathroom    []string `yaml:"bathroom"`
	GroundFloor []string `yaml:"ground_floor"`
	// ProximityWindow is the character distance used for the
	// "ground floor ... bedroom" pattern.
	ProximityWindow  int        `yaml:"proximity_window"`
	GroundEntryTypes []string   `yaml:"ground_entry_types"`
	Parking          KeywordSet `yaml:"parking"`
	Garden           KeywordSet `yaml:"garden"`
	Balcony          []string   `yaml:"balcony"`
	LevelAccess      []string   `yaml:"level_access"`
}

// EPCRules hold the context and deny tokens used by the text strategies.
type EPCRules struct {
	Context []string `yaml:"context"`
	Deny    []string `yaml:"deny"`
	// ImageHints select candidate certificate images by URL substring.
	ImageHints []string `yaml:"image_hints"`
}

// HazardRules map turn-by-turn instruction tokens to route hazards.
type HazardRules struct {
	Stairs       []string `yaml:"stairs"`
	Steep        []string `yaml:"steep"`
	BusyRoad     []string `yaml:"busy_road"`
	TrafficLight []string `yaml:"traffic_light"`
}

// PlaceRules configure candidate discovery and the keyword fallback
// classifier for one service class.
type PlaceRules struct {
	Categories []string `yaml:"categories"`
	// WidenedCategories are tried when the widened radius still finds nothing.
	WidenedCategories []string `yaml:"widened_categories"`
	// Deny takes precedence over Allow. A candidate matching neither list is
	// accepted: the default-valid policy deliberately biases toward inclusion
	// so a genuine practice with an unusual name is never dropped.
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// Rules is the full set of tunable keyword/threshold tables. Tuning these
// never requires touching control flow.
type Rules struct {
	Level    LevelRules            `yaml:"level"`
	Features FeatureRules          `yaml:"features"`
	EPC      EPCRules              `yaml:"epc"`
	Hazards  HazardRules           `yaml:"hazards"`
	Places   map[string]PlaceRules `yaml:"places"`
	Cities   []CityBounds          `yaml:"cities"`
}

// DefaultRules returns the built-in tables.
func DefaultRules() *Rules {
	return &Rules{
		Level: LevelRules{
			SingleLevel: []string{
				"bungalow", "single storey", "single-storey", "single level",
				"single-level", "all on one level", "one level living",
				"ground floor flat", "ground floor apartment", "ground-floor flat",
			},
			MultiLevel: []string{
				"maisonette", "duplex", "townhouse", "town house",
				"two storey", "three storey", "split level", "split-level",
				"over two floors", "over three floors", "staircase", "stairs",
			},
			UpperFloor: []string{
				"first floor", "second floor", "third floor", "top floor",
				"upper floor", "upstairs",
			},
			Lift: []string{
				"lift", "elevator", "stairlift", "stair lift", "chairlift",
			},
		},
		Features: FeatureRules{
			Bedroom:         []string{"bedroom", "bed room", "sleeping"},
			Bathroom:        []string{"bathroom", "bath room", "shower room", "wet room", "wc", "w.c", "ensuite", "en-suite", "en suite"},
			GroundFloor:     []string{"ground floor", "ground-floor", "downstairs"},
			ProximityWindow: 80,
			GroundEntryTypes: []string{
				"bungalow", "detached house", "semi-detached house", "terraced house",
				"semi detached", "end of terrace", "cottage", "ground floor flat",
				"ground floor apartment", "ground-floor flat",
			},
			Parking: KeywordSet{
				Any: []string{
					"driveway", "off street parking", "off-street parking",
					"private parking", "allocated parking", "garage", "carport",
					"car port", "parking space",
				},
				Exclude: []string{
					"on street parking", "on-street parking", "no parking",
					"permit parking", "street parking only",
				},
			},
			Garden: KeywordSet{
				Any: []string{
					"garden", "rear garden", "front garden", "patio", "courtyard",
					"outdoor space", "outside space",
				},
				Exclude: []string{"no garden", "without garden", "garden centre"},
			},
			Balcony: []string{"balcony", "terrace", "roof terrace", "balconies"},
			LevelAccess: []string{
				"level access", "step free access", "step-free access", "ramp",
				"ramped access", "no steps", "wheelchair access", "wheelchair friendly",
				"disabled access",
			},
		},
		EPC: EPCRules{
			Context: []string{"epc", "energy", "rating"},
			Deny: []string{
				"deposit", "mortgage", "council tax", "tax band",
				"road", "street", "avenue", "postcode",
			},
			ImageHints: []string{"epc", "energy", "certificate", "eer"},
		},
		Hazards: HazardRules{
			Stairs:       []string{"stairs", "steps", "staircase", "flight of"},
			Steep:        []string{"steep", "hill", "incline", "ascend", "climb"},
			BusyRoad:     []string{"main road", "busy road", "a road", "dual carriageway", "cross the road", "crossing"},
			TrafficLight: []string{"traffic light", "traffic signal", "pedestrian crossing", "pelican crossing", "zebra crossing", "signalled"},
		},
		Places: map[string]PlaceRules{
			"gp": {
				Categories:        []string{"doctor"},
				WidenedCategories: []string{"doctor", "hospital", "health"},
				Allow: []string{
					"surgery", "medical centre", "medical center", "medical practice",
					"gp", "doctors", "health centre", "health center", "family practice",
				},
				Deny: []string{
					"cosmetic", "aesthetic", "beauty", "skin", "laser", "botox",
					"physiotherapy", "physio", "chiropractic", "osteopath",
					"veterinary", "vet", "pharmacy", "chemist", "dental", "dentist",
					"counselling", "therapy",
				},
			},
			"bus": {
				Categories:        []string{"bus_stop"},
				WidenedCategories: []string{"bus_stop", "bus_station", "transit_station"},
			},
			"train": {
				Categories:        []string{"train_station"},
				WidenedCategories: []string{"train_station", "subway_station", "light_rail_station", "transit_station"},
			},
		},
		Cities: []CityBounds{
			{Name: "london", MinLat: 51.28, MaxLat: 51.70, MinLng: -0.52, MaxLng: 0.33},
			{Name: "birmingham", MinLat: 52.38, MaxLat: 52.56, MinLng: -2.03, MaxLng: -1.73},
			{Name: "manchester", MinLat: 53.40, MaxLat: 53.55, MinLng: -2.35, MaxLng: -2.15},
			{Name: "leeds", MinLat: 53.70, MaxLat: 53.90, MinLng: -1.70, MaxLng: -1.40},
			{Name: "sheffield", MinLat: 53.30, MaxLat: 53.45, MinLng: -1.55, MaxLng: -1.35},
			{Name: "liverpool", MinLat: 53.33, MaxLat: 53.48, MinLng: -3.02, MaxLng: -2.82},
			{Name: "bristol", MinLat: 51.39, MaxLat: 51.54, MinLng: -2.70, MaxLng: -2.50},
			{Name: "newcastle", MinLat: 54.94, MaxLat: 55.05, MinLng: -1.70, MaxLng: -1.52},
			{Name: "nottingham", MinLat: 52.89, MaxLat: 53.01, MinLng: -1.25, MaxLng: -1.08},
			{Name: "edinburgh", MinLat: 55.89, MaxLat: 55.99, MinLng: -3.33, MaxLng: -3.08},
			{Name: "glasgow", MinLat: 55.78, MaxLat: 55.93, MinLng: -4.40, MaxLng: -4.15},
			{Name: "cardiff", MinLat: 51.44, MaxLat: 51.56, MinLng: -3.29, MaxLng: -3.12},
		},
	}
}

// LoadRules loads keyword tables from a YAML file, or the built-in defaults
// when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(b, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

// Matches reports whether text contains any entry of the set and none of its
// exclusions.
func (k KeywordSet) Matches(text string) bool {
	for _, ex := range k.Exclude {
		if containsFold(text, ex) {
			return false
		}
	}
	for _, kw := range k.Any {
		if containsFold(text, kw) {
			return true
		}
	}
	return false
}

// containsFold matches a keyword against already-lowercased text.
func containsFold(text, needle string) bool {
	return strings.Contains(text, strings.ToLower(needle))
}

// CityFor returns the bounding box containing the point, if any.
func (r *Rules) CityFor(lat, lng float64) *CityBounds {
	for i := range r.Cities {
		c := &r.Cities[i]
		if lat >= c.MinLat && lat <= c.MaxLat && lng >= c.MinLng && lng <= c.MaxLng {
			return c
		}
	}
	return nil
}
