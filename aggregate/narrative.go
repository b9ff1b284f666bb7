package aggregate

import (
	"fmt"
	"strings"

	"agewise-backend/cost"
	"agewise-backend/epc"
	"agewise-backend/features"
	"agewise-backend/models"
)

// Narrative renders the plain-English summary. Every clause is guarded by
// the data that backs it: nothing is stated that was not observed, and
// silence about a criterion means it was not established, not that it is
// absent.
func Narrative(title string, c Categories, overall float64) string {
	var b strings.Builder

	descriptor := "This property"
	if title != "" {
		descriptor = fmt.Sprintf("%q", title)
	}
	b.WriteString(fmt.Sprintf("%s scores %.1f out of 5 overall for suitability (%s).", descriptor, overall, strings.ToLower(models.RatingForScore(overall))))

	if c.Features != nil {
		writeFeatureClauses(&b, c.Features)
	}
	writeHealthcareClause(&b, c.GP)
	writeTransitClause(&b, c.Transport)
	writeCostClause(&b, c.Cost)
	writeEnergyClause(&b, c.EPC)
	writeClosing(&b, overall)

	return b.String()
}

func writeFeatureClauses(b *strings.Builder, r *features.Result) {
	var present []string
	for _, f := range r.Flags {
		if f.Present {
			present = append(present, strings.ReplaceAll(f.Name, "_", " "))
		}
	}
	// The highlights clause needs the feature score itself to be at least 3,
	// not merely some flags present.
	if r.Score >= 3 && len(present) > 0 {
		b.WriteString(" Accessibility highlights include ")
		b.WriteString(joinAnd(present))
		b.WriteString(".")
	}

	var missing []string
	for _, name := range features.CriticalFlags {
		f := r.Flag(name)
		if f == nil || !f.Present {
			missing = append(missing, strings.ReplaceAll(name, "_", " "))
		}
	}
	if len(missing) > 0 {
		b.WriteString(" The listing gives no evidence of ")
		b.WriteString(joinAnd(missing))
		b.WriteString(", which may need checking on a viewing.")
	}
}

func writeHealthcareClause(b *strings.Builder, gp *models.ProximityResult) {
	if gp == nil || gp.Name == "" {
		return
	}
	b.WriteString(fmt.Sprintf(" The nearest GP surgery, %s, is about a %d-minute walk away.", gp.Name, gp.DurationMinutes))
	if gp.HasRoute && (gp.Hazards.Stairs || gp.Hazards.SteepIncline) {
		b.WriteString(" The walking route includes ")
		var hs []string
		if gp.Hazards.Stairs {
			hs = append(hs, "stairs")
		}
		if gp.Hazards.SteepIncline {
			hs = append(hs, "a steep incline")
		}
		b.WriteString(joinAnd(hs))
		b.WriteString(".")
	}
}

func writeTransitClause(b *strings.Builder, t *TransportSummary) {
	if t == nil {
		return
	}
	best := t.Bus
	label := "bus stop"
	if t.Train != nil && (best == nil || t.Train.Score > best.Score) {
		best = t.Train
		label = "train station"
	}
	if best == nil || best.Name == "" {
		return
	}
	b.WriteString(fmt.Sprintf(" Public transport is served by %s, a %s roughly %d minutes on foot.", best.Name, label, best.DurationMinutes))
}

func writeCostClause(b *strings.Builder, r *cost.Result) {
	if r == nil {
		return
	}
	var parts []string
	if r.CouncilTaxBand != nil {
		parts = append(parts, fmt.Sprintf("council tax band %s", *r.CouncilTaxBand))
	}
	if r.StampDutyPounds != nil {
		parts = append(parts, fmt.Sprintf("estimated stamp duty of £%d", *r.StampDutyPounds))
	}
	if len(parts) == 0 {
		return
	}
	b.WriteString(" Running costs include ")
	b.WriteString(joinAnd(parts))
	b.WriteString(".")
}

func writeEnergyClause(b *strings.Builder, r *epc.Result) {
	if r == nil || r.Grade == nil {
		b.WriteString(" No energy performance rating could be established from the listing.")
		return
	}
	b.WriteString(fmt.Sprintf(" The property holds an EPC rating of %s", *r.Grade))
	if r.Numeric != nil {
		b.WriteString(fmt.Sprintf(" (%d)", *r.Numeric))
	}
	b.WriteString(".")
}

func writeClosing(b *strings.Builder, overall float64) {
	switch {
	case overall >= 4.0:
		b.WriteString(" On the evidence available this property looks well suited to someone with limited mobility.")
	case overall >= 3.0:
		b.WriteString(" This property may suit someone with limited mobility, subject to verifying the points above in person.")
	default:
		b.WriteString(" On the evidence available this property is unlikely to suit someone with limited mobility without further investigation.")
	}
}

func joinAnd(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
