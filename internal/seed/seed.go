package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	bulkdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/domain"
	forecastdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/domain"
	mastersdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/masters/domain"
	historydomain "github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/domain"
	requestdomain "github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const demoHistoryDays = 120

// AutoMigrate creates the schema for dialects that do not run the versioned
// SQL migrations (local sqlite).
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return db.AutoMigrate(
		&mastersdomain.Branch{},
		&mastersdomain.Recipe{},
		&historydomain.SaleFact{},
		&forecastdomain.ForecastRecord{},
		&requestdomain.SalesRequest{},
		&bulkdomain.StagedBatch{},
		&bulkdomain.StagedRow{},
	)
}

// EnsureDemoData seeds a pair of branches, a small catalog and a few months
// of daily sales so forecasts and backtests return something out of the box.
// Safe to run on every startup.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branches, err := ensureBranches(ctx, tx, node)
		if err != nil {
			return err
		}
		recipes, err := ensureRecipes(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureHistory(ctx, tx, node, branches, recipes)
	})
}

func ensureBranches(ctx context.Context, tx *gorm.DB, node *snowflake.Node) ([]mastersdomain.Branch, error) {
	seeds := []mastersdomain.Branch{
		{Code: "SUC-CENTRO", Name: "Sucursal Centro"},
		{Code: "SUC-SUR", Name: "Sucursal Sur"},
	}

	out := make([]mastersdomain.Branch, 0, len(seeds))
	for _, b := range seeds {
		var existing mastersdomain.Branch
		err := tx.WithContext(ctx).Where("code = ?", b.Code).First(&existing).Error
		if err == nil {
			out = append(out, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		now := time.Now().UTC()
		b.ID = node.Generate()
		b.Slug = slug.Make(b.Name)
		b.Active = true
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := tx.WithContext(ctx).Create(&b).Error; err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func ensureRecipes(ctx context.Context, tx *gorm.DB, node *snowflake.Node) ([]mastersdomain.Recipe, error) {
	seeds := []mastersdomain.Recipe{
		{Code: "R-001", Name: "Concha Vainilla", Unit: "unidad"},
		{Code: "R-002", Name: "Bolillo", Unit: "unidad"},
		{Code: "R-003", Name: "Cuernito", Unit: "unidad"},
		{Code: "R-100", Name: "Masa Madre", Unit: "kg", IsPreparation: true},
	}

	out := make([]mastersdomain.Recipe, 0, len(seeds))
	for _, r := range seeds {
		var existing mastersdomain.Recipe
		err := tx.WithContext(ctx).Where("code = ?", r.Code).First(&existing).Error
		if err == nil {
			out = append(out, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		now := time.Now().UTC()
		r.ID = node.Generate()
		r.Slug = slug.Make(r.Name)
		r.Active = true
		r.CreatedAt = now
		r.UpdatedAt = now
		if err := tx.WithContext(ctx).Create(&r).Error; err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ensureHistory writes deterministic daily quantities per branch and recipe,
// heavier on weekends, so seeded profiles show a visible weekly pattern.
func ensureHistory(ctx context.Context, tx *gorm.DB, node *snowflake.Node, branches []mastersdomain.Branch, recipes []mastersdomain.Recipe) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&historydomain.SaleFact{}).Where("source = ?", "seed").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var facts []historydomain.SaleFact
	for bi, branch := range branches {
		for ri, recipe := range recipes {
			if recipe.IsPreparation {
				continue
			}
			base := float64(20 + 10*ri + 5*bi)
			for d := 0; d < demoHistoryDays; d++ {
				day := today.AddDate(0, 0, -demoHistoryDays+d)
				qty := base + float64(d%7)
				if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
					qty *= 2
				}
				facts = append(facts, historydomain.SaleFact{
					ID:        node.Generate(),
					BranchID:  branch.ID,
					RecipeID:  recipe.ID,
					SaleDate:  day,
					Quantity:  qty,
					Source:    "seed",
					CreatedAt: now,
					UpdatedAt: now,
				})
			}
		}
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(facts, 500).Error
}
