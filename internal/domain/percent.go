package domain

import (
	"math"
	"strconv"
	"strings"
)

// noiseScale is the precision used to strip binary representation noise
// (0.945*100 == 94.49999999999999) before a rounding decision is made.
const noiseScale = 1e6

func denoise(v float64) float64 {
	return math.Round(v*noiseScale) / noiseScale
}

// ToPercent converts a ratio to a whole percent, rounding half away from zero.
func ToPercent(ratio CoverageRatio) int {
	return int(math.Round(denoise(ratio * 100)))
}

// Change returns the signed ratio delta between current and reference.
// A missing (zero) reference counts all current coverage as gain.
func Change(current, reference CoverageRatio) float64 {
	if reference > 0 {
		return current - reference
	}
	if current > 0 {
		return current
	}
	return 0
}

// RoundFourAfterDigit rounds to four decimal places, to nearest.
func RoundFourAfterDigit(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// RoundToDigits rounds up (ceiling) to the given number of decimal places.
// It deliberately differs from RoundFourAfterDigit.
func RoundToDigits(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Ceil(denoise(v*scale)) / scale
}

// FormatChange renders a ratio delta as a fractional percent with an explicit
// sign, e.g. "+50.0%", "-0.7%", "+0.02%". An exact zero has no sign.
func FormatChange(change float64) string {
	p := math.Round(denoise(change*100)*100) / 100
	if p == 0 {
		return "0.0%"
	}
	sign := "+"
	if p < 0 {
		sign = "-"
	}
	return sign + formatDecimal(math.Abs(p)) + "%"
}

// FormatWhole renders a ratio as a signed whole percent, e.g. "-1%".
func FormatWhole(ratio CoverageRatio) string {
	return strconv.Itoa(ToPercent(ratio)) + "%"
}

// FormatWholeNoSign renders a ratio as an unsigned whole percent.
func FormatWholeNoSign(ratio CoverageRatio) string {
	p := ToPercent(ratio)
	if p < 0 {
		p = -p
	}
	return strconv.Itoa(p) + "%"
}

// formatDecimal prints the shortest decimal form of v that keeps at least
// one fractional digit (1 -> "1.0", 0.5 -> "0.5", 0.02 -> "0.02").
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
