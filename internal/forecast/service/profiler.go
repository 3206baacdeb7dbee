package service

import (
	"time"

	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
)

// BuildProfile computes normalized seasonal indices from one series of daily
// facts. The profile is always filled; when the series has fewer distinct
// dates than the policy minimum the profile is returned together with
// ErrInsufficientHistory and the caller decides whether to degrade.
//
// Indices are bucket means divided by the overall daily mean, so their
// demand-weighted average over the observed window is exactly 1.0. Buckets
// with no observations default to a neutral 1.0 and are flagged instead of
// zeroing sparse recipes out of the plan.
func BuildProfile(facts []historydomain.Fact, policy forecastdomain.Policy) (forecastdomain.SeasonalProfile, error) {
	profile := forecastdomain.SeasonalProfile{
		ByMonth:       make(map[time.Month]float64, 12),
		ByWeekday:     make(map[time.Weekday]float64, 7),
		Participation: 1.0,
	}

	monthSum := make(map[time.Month]float64)
	monthDays := make(map[time.Month]int)
	weekdaySum := make(map[time.Weekday]float64)
	weekdayDays := make(map[time.Weekday]int)

	seen := make(map[time.Time]struct{}, len(facts))
	var total float64
	for _, f := range facts {
		d := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}

		monthSum[d.Month()] += f.Quantity
		monthDays[d.Month()]++
		weekdaySum[d.Weekday()] += f.Quantity
		weekdayDays[d.Weekday()]++
		total += f.Quantity
	}

	profile.HistoryDays = len(seen)

	overallMean := 0.0
	if len(seen) > 0 {
		overallMean = total / float64(len(seen))
	}

	for m := time.January; m <= time.December; m++ {
		days := monthDays[m]
		if days == 0 || overallMean == 0 {
			profile.ByMonth[m] = 1.0
			profile.LowConfidenceMonths = append(profile.LowConfidenceMonths, m)
			continue
		}
		profile.ByMonth[m] = (monthSum[m] / float64(days)) / overallMean
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		days := weekdayDays[wd]
		if days == 0 || overallMean == 0 {
			profile.ByWeekday[wd] = 1.0
			profile.LowConfidenceWeekdays = append(profile.LowConfidenceWeekdays, wd)
			continue
		}
		profile.ByWeekday[wd] = (weekdaySum[wd] / float64(days)) / overallMean
	}

	if profile.HistoryDays < policy.MinHistoryDays {
		return profile, forecastdomain.ErrInsufficientHistory
	}
	return profile, nil
}
