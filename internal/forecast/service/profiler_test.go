package service

import (
	"testing"
	"time"

	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProfile_WeekendPattern(t *testing.T) {
	facts := genFacts(date(2026, 5, 4), 84, weekendDouble) // 12 full weeks

	profile, err := BuildProfile(facts, testPolicy)
	require.NoError(t, err)
	assert.Equal(t, 84, profile.HistoryDays)

	// weekend days carry twice the weekday index
	assert.InDelta(t, 2.0, profile.ByWeekday[time.Saturday]/profile.ByWeekday[time.Monday], 1e-9)
	assert.InDelta(t, profile.ByWeekday[time.Saturday], profile.ByWeekday[time.Sunday], 1e-9)

	// day-weighted mean of the weekday indices is 1.0
	var weighted float64
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		weighted += profile.ByWeekday[wd] * 12 // 12 observations per weekday
	}
	assert.InDelta(t, 1.0, weighted/84, 1e-9)
}

func TestBuildProfile_EmptyBucketsAreNeutralAndFlagged(t *testing.T) {
	// three weeks inside a single month
	facts := genFacts(date(2026, 8, 3), 21, func(time.Time) float64 { return 10 })

	profile, err := BuildProfile(facts, testPolicy)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, profile.ByMonth[time.January], 1e-9)
	assert.Contains(t, profile.LowConfidenceMonths, time.January)
	assert.NotContains(t, profile.LowConfidenceMonths, time.August)
	assert.Empty(t, profile.LowConfidenceWeekdays)
}

func TestBuildProfile_InsufficientHistory(t *testing.T) {
	facts := genFacts(date(2026, 8, 1), 13, func(time.Time) float64 { return 5 })

	profile, err := BuildProfile(facts, testPolicy)
	assert.ErrorIs(t, err, forecastdomain.ErrInsufficientHistory)
	// profile is still usable by callers that choose to degrade gracefully
	assert.Equal(t, 13, profile.HistoryDays)
	assert.NotEmpty(t, profile.ByWeekday)
}

func TestBuildProfile_AllZeroQuantities(t *testing.T) {
	facts := genFacts(date(2026, 6, 1), 30, func(time.Time) float64 { return 0 })

	profile, err := BuildProfile(facts, testPolicy)
	require.NoError(t, err)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		assert.Equal(t, 1.0, profile.ByWeekday[wd])
	}
}
