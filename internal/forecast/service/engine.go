package service

import (
	"errors"
	"math"

	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
)

// seriesStats summarizes the daily quantities of a training slice.
type seriesStats struct {
	mean  float64
	sigma float64
	days  int
}

func computeStats(facts []historydomain.Fact) seriesStats {
	if len(facts) == 0 {
		return seriesStats{}
	}

	var sum float64
	for _, f := range facts {
		sum += f.Quantity
	}
	mean := sum / float64(len(facts))

	var sq float64
	for _, f := range facts {
		d := f.Quantity - mean
		sq += d * d
	}
	sigma := math.Sqrt(sq / float64(len(facts)))

	return seriesStats{mean: mean, sigma: sigma, days: len(facts)}
}

// ComputePoint is the whole forecast computation as a pure function: daily
// training facts in, one ForecastPoint out. Backtesting replays it over
// held-out windows, so nothing in here may read a clock, a random source or
// any state beyond its arguments.
func ComputePoint(
	facts []historydomain.Fact,
	period forecastdomain.Period,
	scenario forecastdomain.Scenario,
	policy forecastdomain.Policy,
) forecastdomain.ForecastPoint {
	stats := computeStats(facts)

	profile, profErr := BuildProfile(facts, policy)
	degraded := errors.Is(profErr, forecastdomain.ErrInsufficientHistory)

	// Central estimate: sum the expected daily rate over the period's days.
	// With enough history each day is shaped by its month and weekday index;
	// degraded series fall back to a flat mean.
	var base float64
	if degraded {
		base = stats.mean * float64(period.Len())
	} else {
		for _, d := range period.Days() {
			base += stats.mean * profile.ByMonth[d.Month()] * profile.ByWeekday[d.Weekday()]
		}
	}

	cv := 0.0
	if stats.mean > 0 {
		cv = stats.sigma / stats.mean
	}

	mult := 1.0
	switch scenario {
	case forecastdomain.ScenarioLow:
		mult = math.Max(0, 1.0-policy.BandK*cv)
	case forecastdomain.ScenarioHigh:
		mult = 1.0 + policy.BandK*cv
	}

	point := base * mult
	if point < 0 {
		point = 0
	}

	half := policy.BandZ * stats.sigma * math.Sqrt(float64(period.Len()))
	lower := math.Max(0, point-half)
	upper := point + half

	confidence := 100 * math.Max(0, 1.0-cv)
	if confidence > 100 {
		confidence = 100
	}
	if degraded && confidence > policy.DegradedConfidenceCeiling {
		confidence = policy.DegradedConfidenceCeiling
	}

	return forecastdomain.ForecastPoint{
		Period:      period,
		Scenario:    scenario,
		Point:       point,
		LowerBound:  lower,
		UpperBound:  upper,
		Confidence:  confidence,
		Degraded:    degraded,
		HistoryDays: profile.HistoryDays,
	}
}
