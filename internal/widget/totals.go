package widget

import (
	"strconv"

	"github.com/waypointroute/waypointroute/internal/routing"
)

// Totals is the display summary of the first route of a result. Both values
// carry exactly two decimals; they are empty until a route has been applied.
type Totals struct {
	DistanceKm  string
	DurationMin string
}

// ComputeTotals sums the legs of the first route. Rounding is half-up on the
// exact integer sums, so 4605 m reads "4.61" rather than a binary-float artifact.
func ComputeTotals(resp *routing.DirectionsResponse) Totals {
	if resp == nil || len(resp.Routes) == 0 {
		return Totals{}
	}

	var meters, seconds int64
	for _, leg := range resp.Routes[0].Legs {
		meters += int64(leg.DistanceMeters)
		seconds += int64(leg.DurationSeconds)
	}

	return Totals{
		DistanceKm:  formatHundredths(roundDiv(meters*100, 1000)),
		DurationMin: formatHundredths(roundDiv(seconds*100, 60)),
	}
}

// roundDiv divides n by d rounding half away from zero. d must be positive.
func roundDiv(n, d int64) int64 {
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}

func formatHundredths(h int64) string {
	sign := ""
	if h < 0 {
		sign = "-"
		h = -h
	}
	frac := strconv.FormatInt(h%100, 10)
	if len(frac) == 1 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(h/100, 10) + "." + frac
}
