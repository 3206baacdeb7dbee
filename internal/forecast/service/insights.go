package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
)

// insightsLookbackDays is the default profiling window for seasonal
// insights. Monthly indices need most of a year of history to mean
// anything, so this is deliberately wider than the forecast lookback.
const insightsLookbackDays = 365

type insightRow struct {
	RecipeID snowflake.ID
	Code     string
	Name     string
	SaleDate time.Time
	Quantity float64
}

// SeasonalInsights profiles an entire scope: month and weekday indices over
// the scope's aggregate daily volume, plus recipes ranked by participation
// share.
func (s *Service) SeasonalInsights(ctx context.Context, req forecastdomain.InsightsRequest) (forecastdomain.InsightsResponse, error) {
	to := req.To
	if to.IsZero() {
		to = clock.Today(s.clock)
	}
	from := req.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -insightsLookbackDays)
	}

	topN := req.TopN
	if topN <= 0 {
		topN = 10
	}

	query := s.db.WithContext(ctx).
		Table("sale_facts").
		Select("sale_facts.recipe_id, recipes.code, recipes.name, sale_facts.sale_date, SUM(sale_facts.quantity) AS quantity").
		Joins("JOIN recipes ON recipes.id = sale_facts.recipe_id").
		Where("sale_facts.sale_date >= ? AND sale_facts.sale_date < ?", from, to).
		Group("sale_facts.recipe_id, recipes.code, recipes.name, sale_facts.sale_date")
	if req.BranchID != 0 {
		query = query.Where("sale_facts.branch_id = ?", req.BranchID)
	}
	if !req.IncludePreparations {
		query = query.Where("recipes.is_preparation = ?", false)
	}

	var rows []insightRow
	if err := query.Scan(&rows).Error; err != nil {
		return forecastdomain.InsightsResponse{}, err
	}

	// collapse to one aggregate observation per date for the index profile
	dateTotals := make(map[time.Time]float64)
	recipeTotals := make(map[snowflake.ID]*forecastdomain.RecipeShare)
	var total float64
	for _, row := range rows {
		d := time.Date(row.SaleDate.Year(), row.SaleDate.Month(), row.SaleDate.Day(), 0, 0, 0, 0, time.UTC)
		dateTotals[d] += row.Quantity
		total += row.Quantity

		share, ok := recipeTotals[row.RecipeID]
		if !ok {
			share = &forecastdomain.RecipeShare{RecipeID: row.RecipeID, Code: row.Code, Name: row.Name}
			recipeTotals[row.RecipeID] = share
		}
		share.Total += row.Quantity
	}

	facts := make([]historydomain.Fact, 0, len(dateTotals))
	for d, qty := range dateTotals {
		facts = append(facts, historydomain.Fact{Date: d, Quantity: qty})
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].Date.Before(facts[j].Date) })

	// an under-populated scope still gets its (neutral) profile back
	profile, _ := BuildProfile(facts, s.currentPolicy())

	// The engine consumes indices whose day-weighted mean is 1.0, but a
	// planner reads weekday indices against a normal working day: "Saturday
	// sells 2x a weekday". Rescale the reported weekday indices so the
	// Mon-Fri average is 1.0.
	byWeekday := make(map[time.Weekday]float64, len(profile.ByWeekday))
	var workdaySum float64
	for wd := time.Monday; wd <= time.Friday; wd++ {
		workdaySum += profile.ByWeekday[wd]
	}
	workdayMean := workdaySum / 5
	for wd, idx := range profile.ByWeekday {
		if workdayMean > 0 {
			byWeekday[wd] = idx / workdayMean
		} else {
			byWeekday[wd] = idx
		}
	}

	shares := make([]forecastdomain.RecipeShare, 0, len(recipeTotals))
	for _, share := range recipeTotals {
		if total > 0 {
			share.SharePct = share.Total / total * 100
		}
		shares = append(shares, *share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Total != shares[j].Total {
			return shares[i].Total > shares[j].Total
		}
		return shares[i].RecipeID < shares[j].RecipeID
	})

	offset := req.Offset
	if offset > len(shares) {
		offset = len(shares)
	}
	end := offset + topN
	if end > len(shares) {
		end = len(shares)
	}

	return forecastdomain.InsightsResponse{
		ByMonth:    profile.ByMonth,
		ByWeekday:  byWeekday,
		TopRecipes: shares[offset:end],
		TotalQty:   total,
		From:       from,
		To:         to,
	}, nil
}
