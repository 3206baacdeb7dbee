package domain

import (
	"fmt"
	"strings"
	"time"
)

// PeriodType classifies the horizon a forecast or backtest window covers.
type PeriodType string

const (
	PeriodMonth   PeriodType = "MONTH"
	PeriodWeek    PeriodType = "WEEK"
	PeriodWeekend PeriodType = "WEEKEND"
)

// Period is a closed calendar interval identified by its type and canonical
// start date: first of the month, Monday, or Saturday.
type Period struct {
	Type  PeriodType `json:"type"`
	Start time.Time  `json:"start"`
}

// ParsePeriodType accepts the wire spelling of a period type.
func ParsePeriodType(value string) (PeriodType, error) {
	switch PeriodType(strings.ToUpper(strings.TrimSpace(value))) {
	case PeriodMonth:
		return PeriodMonth, nil
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodWeekend:
		return PeriodWeekend, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// NewPeriod canonicalizes an arbitrary date to the period containing it.
// Dates inside a working week canonicalize to the upcoming Saturday for
// WEEKEND periods, because that is the weekend a planner placing an order
// mid-week is preparing for.
func NewPeriod(t PeriodType, anchor time.Time) (Period, error) {
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)

	switch t {
	case PeriodMonth:
		return Period{Type: t, Start: time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)}, nil
	case PeriodWeek:
		offset := (int(anchor.Weekday()) + 6) % 7 // days since Monday
		return Period{Type: t, Start: anchor.AddDate(0, 0, -offset)}, nil
	case PeriodWeekend:
		switch anchor.Weekday() {
		case time.Saturday:
			return Period{Type: t, Start: anchor}, nil
		case time.Sunday:
			return Period{Type: t, Start: anchor.AddDate(0, 0, -1)}, nil
		default:
			days := (int(time.Saturday) - int(anchor.Weekday()) + 7) % 7
			return Period{Type: t, Start: anchor.AddDate(0, 0, days)}, nil
		}
	default:
		return Period{}, ErrInvalidPeriod
	}
}

// End returns the exclusive end date of the period.
func (p Period) End() time.Time {
	switch p.Type {
	case PeriodMonth:
		return p.Start.AddDate(0, 1, 0)
	case PeriodWeek:
		return p.Start.AddDate(0, 0, 7)
	case PeriodWeekend:
		return p.Start.AddDate(0, 0, 2)
	default:
		return p.Start
	}
}

// Days returns every calendar day the period covers, in order.
func (p Period) Days() []time.Time {
	var days []time.Time
	for d := p.Start; d.Before(p.End()); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Len is the number of days the period covers.
func (p Period) Len() int {
	return len(p.Days())
}

// Previous returns the immediately preceding period of the same type.
func (p Period) Previous() Period {
	switch p.Type {
	case PeriodMonth:
		return Period{Type: p.Type, Start: p.Start.AddDate(0, -1, 0)}
	default:
		return Period{Type: p.Type, Start: p.Start.AddDate(0, 0, -7)}
	}
}

// Label renders a human-readable identifier, e.g. "MONTH 2026-08" or
// "WEEKEND 2026-08-29".
func (p Period) Label() string {
	if p.Type == PeriodMonth {
		return fmt.Sprintf("%s %s", p.Type, p.Start.Format("2006-01"))
	}
	return fmt.Sprintf("%s %s", p.Type, p.Start.Format("2006-01-02"))
}
