package epc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agewise-backend/config"
	"agewise-backend/models"

	"go.uber.org/zap"
)

// contextWindow is how far around a pattern match the context and deny
// tokens are searched.
const contextWindow = 60

// ---- Strategy 1: explicit text declaration, confidence 95 ----

// The explicit forms all carry a separator, the word "rated", or the letter
// adjoining "epc" itself. Bare "epc rating x" with no punctuation is left to
// the lower-confidence strategies.
var explicitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`epc\s*(?:rating)?\s*[:\-]\s*([a-g])\b`),
	regexp.MustCompile(`epc\s+rated\s+([a-g])\b`),
	regexp.MustCompile(`\b([a-g])\s+rated\b`),
	regexp.MustCompile(`epc\s+([a-g])\b`),
}

type explicitTextStrategy struct {
	rules *config.Rules
}

func (s *explicitTextStrategy) Name() string { return "explicit_text" }

func (s *explicitTextStrategy) Attempt(_ context.Context, listing *models.PropertyListing) (*models.Evidence, error) {
	text := listing.SearchText()
	for _, re := range explicitPatterns {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if !hasContextToken(text, loc[0], s.rules.EPC.Context) {
			continue
		}
		letter := strings.ToUpper(text[loc[2]:loc[3]])
		ev := &models.Evidence{
			Value:      letter,
			Confidence: 95,
			Rationale:  fmt.Sprintf("listing text explicitly declares EPC rating %s", letter),
		}
		if n := numericNear(text, loc[1]); n != nil {
			ev.Numeric = n
		}
		return ev, nil
	}
	return nil, nil
}

// numericNear picks up an adjacent current score, e.g. "EPC: C (72)".
var numericNearRe = regexp.MustCompile(`^\s*\(?(\d{1,3})\)?`)

func numericNear(text string, from int) *float64 {
	tail := text[from:]
	if len(tail) > 12 {
		tail = tail[:12]
	}
	m := numericNearRe.FindStringSubmatch(tail)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n < 1 || n > 100 {
		return nil
	}
	return &n
}

// ---- Strategy 2: certificate image via vision classifier, confidence 75 ----

const certificatePrompt = `This image may be a UK Energy Performance Certificate (EPC).
Report the CURRENT energy rating only, never the potential rating.
Reply exactly in this form:
RATING: <letter A-G>
SCORE: <current numeric score 1-100, or NONE if not visible>
If the image is not an EPC or no current rating is visible, reply exactly: NONE`

var (
	ratingReplyRe = regexp.MustCompile(`(?i)RATING:\s*([A-G])\b`)
	scoreReplyRe  = regexp.MustCompile(`(?i)SCORE:\s*(\d{1,3})\b`)
)

type certificateImageStrategy struct {
	classifier Classifier
	rules      *config.Rules
	logger     *zap.Logger
}

func (s *certificateImageStrategy) Name() string { return "certificate_image" }

func (s *certificateImageStrategy) Attempt(ctx context.Context, listing *models.PropertyListing) (*models.Evidence, error) {
	if s.classifier == nil {
		return nil, nil
	}

	candidates := s.candidateImages(listing)
	if len(candidates) == 0 {
		return nil, nil
	}

	var lastErr error
	for _, imageURL := range candidates {
		reply, err := s.classifier.ClassifyImage(ctx, certificatePrompt, imageURL)
		if err != nil {
			lastErr = err
			continue
		}

		m := ratingReplyRe.FindStringSubmatch(reply)
		if m == nil {
			continue
		}
		letter := strings.ToUpper(m[1])
		rationale := fmt.Sprintf("certificate image read as current rating %s", letter)

		var numeric *float64
		if sm := scoreReplyRe.FindStringSubmatch(reply); sm != nil {
			if n, err := strconv.ParseFloat(sm[1], 64); err == nil && n >= 1 && n <= 100 {
				numeric = &n
				// The numeric score is the more reliable figure on the
				// certificate; remap the letter when they disagree.
				if !scoreMatchesLetter(letter, int(n)) {
					corrected := letterForScore(int(n))
					rationale = fmt.Sprintf("certificate image rating %s remapped to %s to match numeric score %d", letter, corrected, int(n))
					letter = corrected
				}
			}
		}

		return &models.Evidence{
			Value:      letter,
			Confidence: 75,
			Rationale:  rationale,
			Numeric:    numeric,
		}, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// candidateImages selects up to two images whose URL suggests an energy
// certificate.
func (s *certificateImageStrategy) candidateImages(listing *models.PropertyListing) []string {
	var out []string
	pools := [][]string{listing.ImageURLs, listing.FloorPlanURLs}
	for _, pool := range pools {
		for _, u := range pool {
			lower := strings.ToLower(u)
			for _, hint := range s.rules.EPC.ImageHints {
				if strings.Contains(lower, hint) {
					out = append(out, u)
					break
				}
			}
			if len(out) == 2 {
				return out
			}
		}
	}
	return out
}

// ---- Strategy 3: secondary pattern set, confidence 70 ----

var secondaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`energy\s+(?:performance|efficiency|rating)\s*(?:band|grade|rating)?\s*[:\-]?\s*([a-g])\b`),
	regexp.MustCompile(`\brating\s*[:\-]?\s*([a-g])\b`),
	regexp.MustCompile(`\bband\s*[:\-]?\s*([a-g])\b`),
}

type secondaryPatternStrategy struct {
	rules *config.Rules
}

func (s *secondaryPatternStrategy) Name() string { return "secondary_patterns" }

func (s *secondaryPatternStrategy) Attempt(_ context.Context, listing *models.PropertyListing) (*models.Evidence, error) {
	text := listing.SearchText()
	for _, re := range secondaryPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, 5) {
			if !hasContextToken(text, loc[0], s.rules.EPC.Context) {
				continue
			}
			if hasDenyToken(text, loc[0], s.rules.EPC.Deny) {
				continue
			}
			letter := strings.ToUpper(text[loc[2]:loc[3]])
			return &models.Evidence{
				Value:      letter,
				Confidence: 70,
				Rationale:  fmt.Sprintf("energy-context pattern match for rating %s", letter),
			}, nil
		}
	}
	return nil, nil
}

// ---- Strategy 4: literal phrase fallback, confidence 65 ----

var literalRe = regexp.MustCompile(`epc rating\s+([a-g])\b`)

type literalPhraseStrategy struct{}

func (s *literalPhraseStrategy) Name() string { return "literal_phrase" }

func (s *literalPhraseStrategy) Attempt(_ context.Context, listing *models.PropertyListing) (*models.Evidence, error) {
	m := literalRe.FindStringSubmatch(listing.SearchText())
	if m == nil {
		return nil, nil
	}
	letter := strings.ToUpper(m[1])
	return &models.Evidence{
		Value:      letter,
		Confidence: 65,
		Rationale:  fmt.Sprintf("literal phrase \"EPC RATING %s\"", letter),
	}, nil
}

// ---- shared window helpers ----

func window(text string, at int) string {
	start := at - contextWindow
	if start < 0 {
		start = 0
	}
	end := at + contextWindow
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

func hasContextToken(text string, at int, tokens []string) bool {
	w := window(text, at)
	for _, tok := range tokens {
		if strings.Contains(w, tok) {
			return true
		}
	}
	return false
}

func hasDenyToken(text string, at int, tokens []string) bool {
	w := window(text, at)
	for _, tok := range tokens {
		if strings.Contains(w, tok) {
			return true
		}
	}
	return false
}
