package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPeriod_Month(t *testing.T) {
	p, err := NewPeriod(PeriodMonth, date(2026, 8, 29))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 1), p.Start)
	assert.Equal(t, date(2026, 9, 1), p.End())
	assert.Equal(t, 31, p.Len())
	assert.Equal(t, "MONTH 2026-08", p.Label())
}

func TestNewPeriod_WeekStartsMonday(t *testing.T) {
	// 2026-08-29 is a Saturday; its week starts Monday the 24th
	p, err := NewPeriod(PeriodWeek, date(2026, 8, 29))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 24), p.Start)
	assert.Equal(t, 7, p.Len())

	// a Monday canonicalizes to itself
	p, err = NewPeriod(PeriodWeek, date(2026, 8, 24))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 24), p.Start)
}

func TestNewPeriod_Weekend(t *testing.T) {
	// Saturday stays put
	p, err := NewPeriod(PeriodWeekend, date(2026, 8, 29))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 29), p.Start)
	assert.Equal(t, 2, p.Len())

	// Sunday backs up to its Saturday
	p, err = NewPeriod(PeriodWeekend, date(2026, 8, 30))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 29), p.Start)

	// a Wednesday rolls forward to the upcoming Saturday
	p, err = NewPeriod(PeriodWeekend, date(2026, 8, 26))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 29), p.Start)
}

func TestPeriod_Previous(t *testing.T) {
	p, err := NewPeriod(PeriodMonth, date(2026, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, date(2025, 12, 1), p.Previous().Start)

	p, err = NewPeriod(PeriodWeekend, date(2026, 8, 29))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 22), p.Previous().Start)
}

func TestParsePeriodType(t *testing.T) {
	pt, err := ParsePeriodType(" weekend ")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeekend, pt)

	_, err = ParsePeriodType("quarter")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario("")
	require.NoError(t, err)
	assert.Equal(t, ScenarioBase, sc)

	sc, err = ParseScenario("low")
	require.NoError(t, err)
	assert.Equal(t, ScenarioLow, sc)

	_, err = ParseScenario("AGGRESSIVE")
	assert.ErrorIs(t, err, ErrInvalidScenario)
}
