package dashboard

import (
	"fmt"
	"math"
	"strings"
)

// NoData is shown in place of a score for tickers without articles.
const NoData = "NA"

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatScore formats a sentiment score with an explicit sign, or NoData.
func FormatScore(score float64, hasData bool) string {
	if !hasData || math.IsNaN(score) {
		return NoData
	}
	if math.Abs(score) < 0.0005 {
		return "0.000"
	}
	return fmt.Sprintf("%+.3f", score)
}

// FormatPct formats a fractional change as "+X.X%", or "-" when there is
// no percentage. Drops the decimal for values >= 100% to keep width compact.
func FormatPct(pct float64, hasPct bool) string {
	if !hasPct || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return "-"
	}
	v := pct * 100
	if math.Abs(v) >= 100 {
		return fmt.Sprintf("%+.0f%%", v)
	}
	return fmt.Sprintf("%+.1f%%", v)
}

// FormatStdDev formats a score dispersion, or "-" without data.
func FormatStdDev(sd float64, hasData bool) string {
	if !hasData {
		return "-"
	}
	return fmt.Sprintf("%.3f", sd)
}

// FormatRatio formats a share in [0, 1] as a whole percentage, or "-".
func FormatRatio(r float64, hasData bool) string {
	if !hasData || math.IsNaN(r) {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", r*100)
}

// scoreClass maps a score onto a CSS class for colouring.
func scoreClass(score float64, hasData bool) string {
	switch {
	case !hasData:
		return "na"
	case score > 0.05:
		return "pos"
	case score < -0.05:
		return "neg"
	default:
		return "flat"
	}
}
