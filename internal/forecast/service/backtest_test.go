package service

import (
	"testing"
	"time"

	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBacktest_Deterministic(t *testing.T) {
	facts := genFacts(date(2026, 1, 1), 240, noisy)
	today := date(2026, 8, 29)

	first, firstAgg := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 6, 1, today, testPolicy)
	second, secondAgg := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 6, 1, today, testPolicy)

	assert.Equal(t, first, second)
	assert.Equal(t, firstAgg, secondAgg)
}

func TestComputeBacktest_ChronologicalClosedWindows(t *testing.T) {
	facts := genFacts(date(2026, 1, 1), 240, noisy)
	today := date(2026, 8, 26) // Wednesday

	windows, _ := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 4, 1, today, testPolicy)
	require.Len(t, windows, 4)

	for i := 1; i < len(windows); i++ {
		assert.True(t, windows[i-1].Period.Start.Before(windows[i].Period.Start))
	}
	// every window is fully closed before today
	last := windows[len(windows)-1]
	assert.False(t, last.Period.End().After(today))
	// the week containing today (Mon 24th) must not be evaluated
	assert.True(t, last.Period.Start.Before(date(2026, 8, 24)))
}

func TestComputeBacktest_ConstantSeriesIsOK(t *testing.T) {
	facts := genFacts(date(2026, 1, 1), 240, func(time.Time) float64 { return 10 })
	today := date(2026, 8, 29)

	windows, agg := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 3, 1, today, testPolicy)
	require.Len(t, windows, 3)

	for _, w := range windows {
		assert.Equal(t, forecastdomain.BacktestStatusOK, w.Status)
		assert.InDelta(t, 70.0, w.Actual, 1e-9)
		assert.InDelta(t, 0.0, w.APEPct, 1.0)
	}
	assert.False(t, agg.InsufficientData)
	assert.InDelta(t, 100.0, agg.CoveragePct, 1e-9)
	assert.InDelta(t, 0.0, agg.MAPEPct, 1.0)
}

func TestComputeBacktest_WindowsWithoutActualsAreReportedNotAggregated(t *testing.T) {
	// history stops two months before today, so recent windows have no actuals
	facts := genFacts(date(2026, 1, 1), 150, func(time.Time) float64 { return 10 })
	today := date(2026, 8, 29)

	windows, agg := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 4, 1, today, testPolicy)
	require.Len(t, windows, 4)

	var noBase int
	for _, w := range windows {
		if w.Status == forecastdomain.BacktestStatusNoBase {
			noBase++
			assert.Zero(t, w.NObservations)
		}
	}
	assert.Equal(t, 4, noBase)
	assert.Zero(t, agg.UsableWindows)
	assert.True(t, agg.InsufficientData)
	assert.Zero(t, agg.CoveragePct)
}

func TestComputeBacktest_OverUnderTagging(t *testing.T) {
	// stable training data, then one week of collapsed demand: the engine
	// keeps forecasting the old level and lands far over the actual
	var facts []historydomain.Fact
	cutoff := date(2026, 8, 17) // Monday of the evaluated week
	for d := date(2026, 1, 1); d.Before(date(2026, 8, 24)); d = d.AddDate(0, 0, 1) {
		qty := 10.0
		if !d.Before(cutoff) {
			qty = 2.0
		}
		facts = append(facts, historydomain.Fact{Date: d, Quantity: qty})
	}

	windows, _ := ComputeBacktest(facts, forecastdomain.PeriodWeek, forecastdomain.ScenarioBase, 1, 1, date(2026, 8, 24), testPolicy)
	require.Len(t, windows, 1)
	assert.Equal(t, forecastdomain.BacktestStatusOver, windows[0].Status)
	assert.Positive(t, windows[0].BiasPct)
}
