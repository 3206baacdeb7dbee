package service

import (
	"math"
	"time"

	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
)

// ComputeBacktest replays the engine over held-out periods walking back from
// the most recent closed period before today. Each window trains strictly on
// facts dated before its start, so the evaluated forecast never sees the
// data it is judged against. The function is pure: identical inputs always
// produce bit-identical metrics.
func ComputeBacktest(
	facts []historydomain.Fact,
	periodType forecastdomain.PeriodType,
	scenario forecastdomain.Scenario,
	windows, step int,
	today time.Time,
	policy forecastdomain.Policy,
) ([]forecastdomain.BacktestWindow, forecastdomain.BacktestAggregate) {
	if windows <= 0 {
		windows = 3
	}
	if step <= 0 {
		step = 1
	}

	period, err := forecastdomain.NewPeriod(periodType, today)
	if err != nil {
		return nil, forecastdomain.BacktestAggregate{InsufficientData: true}
	}
	for period.End().After(today) {
		period = period.Previous()
	}

	results := make([]forecastdomain.BacktestWindow, 0, windows)
	for i := 0; i < windows; i++ {
		results = append(results, evaluateWindow(facts, period, scenario, policy))
		for s := 0; s < step; s++ {
			period = period.Previous()
		}
	}

	// walked back newest-first; report chronologically
	for l, r := 0, len(results)-1; l < r; l, r = l+1, r-1 {
		results[l], results[r] = results[r], results[l]
	}

	return results, aggregate(results)
}

func evaluateWindow(
	facts []historydomain.Fact,
	period forecastdomain.Period,
	scenario forecastdomain.Scenario,
	policy forecastdomain.Policy,
) forecastdomain.BacktestWindow {
	trainFrom := period.Start.AddDate(0, 0, -policy.LookbackDays)

	var train []historydomain.Fact
	var actual float64
	var nObs int
	for _, f := range facts {
		switch {
		case f.Date.Before(period.Start):
			if !f.Date.Before(trainFrom) {
				train = append(train, f)
			}
		case f.Date.Before(period.End()):
			actual += f.Quantity
			if f.Quantity > 0 {
				nObs++
			}
		}
	}

	point := ComputePoint(train, period, scenario, policy)

	window := forecastdomain.BacktestWindow{
		Period:        period,
		Forecast:      point.Point,
		Actual:        actual,
		NObservations: nObs,
		Degraded:      point.Degraded,
	}

	if nObs == 0 || actual <= 0 {
		window.Status = forecastdomain.BacktestStatusNoBase
		return window
	}

	deltaPct := (point.Point - actual) / actual * 100
	window.APEPct = math.Abs(deltaPct)
	window.BiasPct = deltaPct

	switch {
	case math.Abs(deltaPct) <= policy.BacktestTolerancePct:
		window.Status = forecastdomain.BacktestStatusOK
	case deltaPct > 0:
		window.Status = forecastdomain.BacktestStatusOver
	default:
		window.Status = forecastdomain.BacktestStatusUnder
	}
	return window
}

func aggregate(windows []forecastdomain.BacktestWindow) forecastdomain.BacktestAggregate {
	agg := forecastdomain.BacktestAggregate{TotalWindows: len(windows)}

	var apeSum, forecastSum, actualSum float64
	for _, w := range windows {
		if w.Status == forecastdomain.BacktestStatusNoBase {
			continue
		}
		agg.UsableWindows++
		apeSum += w.APEPct
		forecastSum += w.Forecast
		actualSum += w.Actual
	}

	if agg.UsableWindows > 0 {
		agg.MAPEPct = apeSum / float64(agg.UsableWindows)
		if actualSum > 0 {
			agg.BiasPct = (forecastSum - actualSum) / actualSum * 100
		}
	}
	if agg.TotalWindows > 0 {
		agg.CoveragePct = float64(agg.UsableWindows) / float64(agg.TotalWindows) * 100
	}
	agg.InsufficientData = agg.UsableWindows < 2
	return agg
}
