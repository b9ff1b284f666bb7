package features

import (
	"context"
	"math"
	"regexp"
	"strings"

	"agewise-backend/config"
	"agewise-backend/models"

	"go.uber.org/zap"
)

// Flag names, in display order.
const (
	FlagStepFreeInternal    = "step_free_internal_access"
	FlagDownstairsBedroom   = "downstairs_bedroom"
	FlagDownstairsBathroom  = "downstairs_bathroom"
	FlagGroundFloorEntry    = "ground_floor_entry"
	FlagPrivateParking      = "private_parking"
	FlagGardenAccess        = "garden_access"
	FlagBalconyTerrace      = "balcony_terrace"
	FlagExternalLevelAccess = "external_level_access"
)

const criteriaCount = 8

// CriticalFlags are the criteria whose absence the narrative calls out.
var CriticalFlags = []string{FlagStepFreeInternal, FlagDownstairsBathroom, FlagExternalLevelAccess}

// Classifier is the vision call used by the balcony and entrance fallbacks.
type Classifier interface {
	ClassifyImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Result is the full criteria evaluation.
type Result struct {
	Level LevelClass           `json:"level"`
	Flags []models.FeatureFlag `json:"flags"`
	Count int                  `json:"count"`
	Score float64              `json:"score"`
}

// Flag returns the named flag, or nil.
func (r *Result) Flag(name string) *models.FeatureFlag {
	for i := range r.Flags {
		if r.Flags[i].Name == name {
			return &r.Flags[i]
		}
	}
	return nil
}

// Detector evaluates the eight criteria. Vision calls only run where the
// text gave nothing; their provenance is recorded but never changes points.
type Detector struct {
	rules      *config.Rules
	classifier Classifier
	logger     *zap.Logger
}

// NewDetector creates a detector. classifier may be nil, which disables the
// vision fallbacks.
func NewDetector(rules *config.Rules, classifier Classifier, logger *zap.Logger) *Detector {
	return &Detector{rules: rules, classifier: classifier, logger: logger}
}

// Detect evaluates every criterion against the listing.
func (d *Detector) Detect(ctx context.Context, listing *models.PropertyListing) *Result {
	text := listing.SearchText()
	level := ClassifyLevel(text, &d.rules.Level)

	res := &Result{Level: level}
	res.Flags = append(res.Flags,
		d.stepFreeInternal(text, level),
		d.downstairsRoom(FlagDownstairsBedroom, text, level, d.rules.Features.Bedroom, false),
		d.downstairsRoom(FlagDownstairsBathroom, text, level, d.rules.Features.Bathroom, true),
		d.groundFloorEntry(text, level),
		d.privateParking(text, listing),
		d.gardenAccess(text, listing),
		d.balconyTerrace(ctx, text, listing),
	)
	groundEntry := false
	if f := res.Flag(FlagGroundFloorEntry); f != nil {
		groundEntry = f.Present
	}
	res.Flags = append(res.Flags, d.externalLevelAccess(ctx, text, listing, groundEntry))

	for _, f := range res.Flags {
		if f.Present {
			res.Count++
		}
	}
	res.Score = math.Round(math.Min(5, float64(res.Count)/criteriaCount*5)*10) / 10
	return res
}

// stepFreeInternal holds when the dwelling is single-level or a lift or
// stairlift bridges its floors. The two grounds are mutually exclusive.
func (d *Detector) stepFreeInternal(text string, level LevelClass) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagStepFreeInternal, Provenance: models.ProvenanceText}

	if level == LevelSingle {
		flag.Present = true
		flag.Provenance = models.ProvenanceInferred
		flag.Detail = "all rooms on one level"
		return flag
	}
	if matchAny(text, d.rules.Level.Lift) {
		flag.Present = true
		flag.Detail = "lift or stairlift mentioned"
		return flag
	}
	flag.Detail = "no single-level or lift indication"
	return flag
}

// downstairsRoom resolves a downstairs bedroom or bathroom: direct keyword,
// then the ground-floor-near-room window pattern, then the single-level
// inference. For bathrooms the inference needs no room mention: a
// single-level home keeps its bathroom on the entry level by definition.
func (d *Detector) downstairsRoom(name, text string, level LevelClass, roomTerms []string, inferWithoutMention bool) models.FeatureFlag {
	flag := models.FeatureFlag{Name: name, Provenance: models.ProvenanceText}

	for _, gf := range d.rules.Features.GroundFloor {
		for _, room := range roomTerms {
			if strings.Contains(text, gf+" "+room) {
				flag.Present = true
				flag.Detail = gf + " " + room + " mentioned"
				return flag
			}
		}
	}

	if nearEachOther(text, d.rules.Features.GroundFloor, roomTerms, d.rules.Features.ProximityWindow) {
		flag.Present = true
		flag.Detail = "ground-floor mention close to room mention"
		return flag
	}

	if level == LevelSingle && (inferWithoutMention || matchAny(text, roomTerms)) {
		flag.Present = true
		flag.Provenance = models.ProvenanceInferred
		flag.Detail = "inferred from single-level classification"
		return flag
	}

	flag.Detail = "not mentioned"
	return flag
}

func (d *Detector) groundFloorEntry(text string, level LevelClass) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagGroundFloorEntry, Provenance: models.ProvenanceText}

	if level == LevelSingle {
		flag.Present = true
		flag.Provenance = models.ProvenanceInferred
		flag.Detail = "single-level dwelling"
		return flag
	}
	if matchAny(text, d.rules.Features.GroundEntryTypes) {
		flag.Present = true
		flag.Detail = "dwelling type implies ground-floor entrance"
		return flag
	}
	flag.Detail = "entrance level unknown"
	return flag
}

func (d *Detector) privateParking(text string, listing *models.PropertyListing) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagPrivateParking, Provenance: models.ProvenanceText}

	if listing.ParkingSpaces != nil && *listing.ParkingSpaces >= 0 {
		flag.Present = *listing.ParkingSpaces > 0
		flag.Detail = "structured parking field"
		return flag
	}
	if d.rules.Features.Parking.Matches(text) {
		flag.Present = true
		flag.Detail = "parking keyword"
		return flag
	}
	flag.Detail = "no private parking mention"
	return flag
}

func (d *Detector) gardenAccess(text string, listing *models.PropertyListing) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagGardenAccess, Provenance: models.ProvenanceText}

	if listing.GardenListed != nil {
		flag.Present = *listing.GardenListed
		flag.Detail = "structured garden field"
		return flag
	}
	if d.rules.Features.Garden.Matches(text) {
		flag.Present = true
		flag.Detail = "garden keyword"
		return flag
	}
	flag.Detail = "no garden mention"
	return flag
}

const balconyPrompt = `Look at this property floor plan. Does the property have a balcony or terrace?
Reply with exactly one word: FOUND, NOT_FOUND, or UNCLEAR.`

func (d *Detector) balconyTerrace(ctx context.Context, text string, listing *models.PropertyListing) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagBalconyTerrace, Provenance: models.ProvenanceText}

	if matchAny(text, d.rules.Features.Balcony) {
		flag.Present = true
		flag.Detail = "balcony or terrace keyword"
		return flag
	}

	if d.classifier != nil && len(listing.FloorPlanURLs) > 0 {
		reply, err := d.classifier.ClassifyImage(ctx, balconyPrompt, listing.FloorPlanURLs[0])
		if err != nil {
			d.logger.Warn("balcony floor-plan check failed", zap.Error(err))
		} else {
			switch classifyWord(reply) {
			case "FOUND":
				flag.Present = true
				flag.Provenance = models.ProvenanceVision
				flag.Detail = "balcony found on floor plan"
				return flag
			case "UNCLEAR":
				flag.Provenance = models.ProvenanceUnverified
				flag.Detail = "floor plan inconclusive"
				return flag
			}
		}
	}

	flag.Detail = "no balcony or terrace indication"
	return flag
}

const entrancePrompt = `Look at this photo of a residential property. If the main entrance is visible,
count the steps leading up to the entrance door. Use the door (roughly 2 metres tall)
as a height reference; treat a raised threshold under 5cm as zero steps.
Reply exactly in this form:
STEPS: <number>
Reply STEPS: NOT_VISIBLE if no entrance is identifiable.`

var stepsReplyRe = regexp.MustCompile(`(?i)STEPS:\s*(\d+|NOT_VISIBLE)`)

const maxEntrancePhotos = 5

// externalLevelAccess tries level-access keywords first, then estimates
// entrance steps from up to five photos. Only a confidently observed
// step-free entrance counts; inconclusive photos leave the flag unverified
// rather than failing it.
func (d *Detector) externalLevelAccess(ctx context.Context, text string, listing *models.PropertyListing, groundEntry bool) models.FeatureFlag {
	flag := models.FeatureFlag{Name: FlagExternalLevelAccess, Provenance: models.ProvenanceText}

	if matchAny(text, d.rules.Features.LevelAccess) {
		flag.Present = true
		flag.Detail = "level-access keyword"
		return flag
	}

	if d.classifier == nil || !groundEntry || len(listing.ImageURLs) == 0 {
		flag.Provenance = models.ProvenanceUnverified
		flag.Detail = "external access not verifiable"
		return flag
	}

	photos := listing.ImageURLs
	if len(photos) > maxEntrancePhotos {
		photos = photos[:maxEntrancePhotos]
	}

	sawEntrance := false
	for _, photo := range photos {
		reply, err := d.classifier.ClassifyImage(ctx, entrancePrompt, photo)
		if err != nil {
			d.logger.Warn("entrance step check failed", zap.Error(err))
			continue
		}
		m := stepsReplyRe.FindStringSubmatch(reply)
		if m == nil || strings.EqualFold(m[1], "NOT_VISIBLE") {
			continue
		}
		sawEntrance = true
		if m[1] == "0" {
			flag.Present = true
			flag.Provenance = models.ProvenanceVision
			flag.Detail = "no elevation change at entrance in photos"
			return flag
		}
	}

	if sawEntrance {
		flag.Provenance = models.ProvenanceVision
		flag.Detail = "steps visible at entrance"
	} else {
		flag.Provenance = models.ProvenanceUnverified
		flag.Detail = "entrance not identifiable in photos"
	}
	return flag
}

// classifyWord extracts the first recognised verdict token from a free-text
// reply.
func classifyWord(reply string) string {
	upper := strings.ToUpper(reply)
	for _, word := range []string{"NOT_FOUND", "FOUND", "UNCLEAR"} {
		if strings.Contains(upper, word) {
			return word
		}
	}
	return "UNCLEAR"
}
