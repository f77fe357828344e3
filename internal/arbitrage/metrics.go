package arbitrage

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/svirmi/options-scanner/internal/models"
)

// DefaultDaysToExpiry is used when neither an epoch nor a parseable code is available
const DefaultDaysToExpiry = 7

var expiryCodePattern = regexp.MustCompile(`^(\d{1,2})([A-Z]{3})(\d{2})$`)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March, "APR": time.April,
	"MAY": time.May, "JUN": time.June, "JUL": time.July, "AUG": time.August,
	"SEP": time.September, "OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseExpiryCode parses DMMMYY codes such as 5JUL25. Deribit options settle at 08:00 UTC.
func ParseExpiryCode(code string) (time.Time, bool) {
	m := expiryCodePattern.FindStringSubmatch(code)
	if m == nil {
		return time.Time{}, false
	}
	month, ok := months[m[2]]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(2000+year, month, day, 8, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// DaysToExpiry prefers the exchange expiration, then the expiry code. The
// second return is false when the default was used.
func DaysToExpiry(code string, expiresAt, now time.Time) (int, bool) {
	if expiresAt.IsZero() {
		var ok bool
		expiresAt, ok = ParseExpiryCode(code)
		if !ok {
			return DefaultDaysToExpiry, false
		}
	}
	days := math.Ceil(expiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return int(days), true
}

// AnnualizedReturn is max(0, profit/capital * 365/days * 100), 0 when undefined
func AnnualizedReturn(profit, capital float64, days int) float64 {
	if capital <= 0 || days <= 0 {
		return 0
	}
	r := profit / capital * 365 / float64(days) * 100
	if r < 0 || math.IsNaN(r) {
		return 0
	}
	return r
}

type legStats struct {
	avgVolume, avgOI, avgSpread, minVolume float64
}

func statsOf(legs ...*models.OptionContract) legStats {
	if len(legs) == 0 {
		return legStats{}
	}
	volumes := make([]float64, len(legs))
	ois := make([]float64, len(legs))
	spreads := make([]float64, len(legs))
	for i, l := range legs {
		volumes[i] = l.Volume
		ois[i] = l.OpenInterest
		spreads[i] = l.Spread()
	}
	n := float64(len(legs))
	return legStats{
		avgVolume: floats.Sum(volumes) / n,
		avgOI:     floats.Sum(ois) / n,
		avgSpread: floats.Sum(spreads) / n,
		minVolume: floats.Min(volumes),
	}
}

// LiquidityScore rates volume, open interest and spread into [0, 100]
func LiquidityScore(legs ...*models.OptionContract) float64 {
	s := statsOf(legs...)
	return liquidityScore(s.avgVolume, s.avgOI, s.avgSpread)
}

func liquidityScore(avgVolume, avgOI, avgSpread float64) float64 {
	score := 0.0

	switch {
	case avgVolume >= 50:
		score += 40
	case avgVolume >= 20:
		score += 30
	case avgVolume >= 10:
		score += 20
	case avgVolume >= 5:
		score += 10
	}

	switch {
	case avgOI >= 100:
		score += 40
	case avgOI >= 50:
		score += 30
	case avgOI >= 20:
		score += 20
	case avgOI >= 10:
		score += 10
	}

	switch {
	case avgSpread < 20:
		score += 20
	case avgSpread < 50:
		score += 15
	case avgSpread < 100:
		score += 10
	case avgSpread < 200:
		score += 5
	}

	return math.Min(score, 100)
}

// Confidence starts at 0.5 and rewards volume and tight spreads, capped at 0.95
func Confidence(legs ...*models.OptionContract) float64 {
	s := statsOf(legs...)
	return confidence(s.avgVolume, s.avgSpread)
}

func confidence(avgVolume, avgSpread float64) float64 {
	c := 0.5
	if avgVolume > 20 {
		c += 0.2
	} else if avgVolume > 10 {
		c += 0.1
	}
	if avgSpread < 20 {
		c += 0.2
	} else if avgSpread < 50 {
		c += 0.1
	}
	return math.Min(c, 0.95)
}

// PairRiskScore penalises legs under the volume floor and wide spreads
func PairRiskScore(minVolumeFloor float64, legs ...*models.OptionContract) float64 {
	s := statsOf(legs...)
	base := 10.0
	if s.minVolume < minVolumeFloor {
		base = 50
	}
	return base + s.avgSpread
}

func RiskLevelOf(score float64) models.RiskLevel {
	switch {
	case score < 50:
		return models.RiskLow
	case score < 200:
		return models.RiskMedium
	}
	return models.RiskHigh
}

func MarketDepthOf(legs ...*models.OptionContract) models.MarketDepth {
	s := statsOf(legs...)
	switch {
	case s.avgVolume >= 30 && s.avgOI >= 80:
		return models.DepthDeep
	case s.avgVolume >= 15 && s.avgOI >= 40:
		return models.DepthMedium
	}
	return models.DepthShallow
}

func shallower(a, b models.MarketDepth) models.MarketDepth {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// SpreadCost sums the bid/ask spreads of the legs
func SpreadCost(legs ...*models.OptionContract) float64 {
	total := 0.0
	for _, l := range legs {
		total += l.Spread()
	}
	return total
}

func meetsVolumeFloor(floor float64, legs ...*models.OptionContract) bool {
	for _, l := range legs {
		if l.Volume < floor {
			return false
		}
	}
	return true
}
