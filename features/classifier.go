// Package features evaluates the eight accessibility criteria against the
// listing text, with vision fallbacks for balconies and entrance steps.
package features

import (
	"strings"

	"agewise-backend/config"
)

// LevelClass is the single-level vs multi-level classification the
// step-free and downstairs-room criteria hang off.
type LevelClass string

const (
	LevelUnknown LevelClass = "unknown"
	LevelSingle  LevelClass = "single_level"
	LevelMulti   LevelClass = "multi_level"
)

// ClassifyLevel decides whether the dwelling's habitable rooms are all on
// one floor. Precedence: explicit multi-level indicators win; a lift with no
// single-level keyword implies floors to serve; single-level keywords with no
// contrary indicator force single-level.
func ClassifyLevel(text string, rules *config.LevelRules) LevelClass {
	single := matchAny(text, rules.SingleLevel)
	multi := matchAny(text, rules.MultiLevel) || matchAny(text, rules.UpperFloor)
	lift := matchAny(text, rules.Lift)

	switch {
	case multi:
		return LevelMulti
	case lift && !single:
		return LevelMulti
	case single:
		return LevelSingle
	default:
		return LevelUnknown
	}
}

func matchAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// nearEachOther reports whether any keyword of setA occurs within window
// characters of any keyword of setB.
func nearEachOther(text string, setA, setB []string, window int) bool {
	for _, a := range setA {
		idx := 0
		for {
			pos := strings.Index(text[idx:], strings.ToLower(a))
			if pos < 0 {
				break
			}
			at := idx + pos
			lo := at - window
			if lo < 0 {
				lo = 0
			}
			hi := at + len(a) + window
			if hi > len(text) {
				hi = len(text)
			}
			if matchAny(text[lo:hi], setB) {
				return true
			}
			idx = at + len(a)
		}
	}
	return false
}
