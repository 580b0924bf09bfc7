// Package signal_quality converts between received signal strength (dBm) and
// the 0..100 quality score, and derives the labels shown to users.
package signal_quality

import "math"

const (
	// FloorDBM is the strength at or below which quality is 0.
	FloorDBM = -90
	// CeilingDBM is the strength at or above which quality is 100.
	CeilingDBM = -30

	spanDBM = CeilingDBM - FloorDBM
)

// Status labels, ordered from best to worst.
const (
	StatusExcellent = "Excellent"
	StatusGood      = "Good"
	StatusFair      = "Fair"
	StatusPoor      = "Poor"
)

var recommendations = map[string]string{
	StatusExcellent: "Excellent connection! Perfect for streaming and gaming.",
	StatusGood:      "Good connection. Suitable for most online activities.",
	StatusFair:      "Fair connection. May experience occasional slowdowns.",
	StatusPoor:      "Poor connection. Consider moving closer to the router.",
}

// ToQuality maps a strength in dBm to a quality score in [0,100].
// Values between the floor and the ceiling are linearly interpolated and
// rounded half away from zero.
func ToQuality(dbm float64) int {
	if math.IsNaN(dbm) || dbm <= FloorDBM {
		return 0
	}
	if dbm >= CeilingDBM {
		return 100
	}
	return int(math.Round((dbm - FloorDBM) / spanDBM * 100))
}

// ToApproxDBM estimates a strength from a platform-reported quality percentage.
// It is only used when the platform does not expose dBm directly and is not
// the inverse of ToQuality.
func ToApproxDBM(quality int) int {
	q := clampQuality(quality)
	return int(math.Round(FloorDBM + float64(q)/100*spanDBM))
}

// StatusLabel buckets a quality score into a human-readable label.
func StatusLabel(quality int) string {
	switch {
	case quality >= 80:
		return StatusExcellent
	case quality >= 60:
		return StatusGood
	case quality >= 40:
		return StatusFair
	default:
		return StatusPoor
	}
}

// Recommendation returns the advice text for a status label. Unknown labels
// get the advice for a poor connection.
func Recommendation(status string) string {
	if text, ok := recommendations[status]; ok {
		return text
	}
	return recommendations[StatusPoor]
}

// ClampQuality bounds an arbitrary score to [0,100].
func ClampQuality(quality int) int {
	return clampQuality(quality)
}

func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
