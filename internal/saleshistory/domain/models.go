// Package domain contains persistence models for daily sales history.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SaleFact stores the total quantity sold of one recipe at one branch on one
// day. The (branch, recipe, date) triple is the natural key; re-ingesting the
// same day replaces the quantity rather than stacking a second row.
type SaleFact struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	BranchID  snowflake.ID `gorm:"not null;uniqueIndex:idx_sale_facts_natural,priority:1" json:"branch_id"`
	RecipeID  snowflake.ID `gorm:"not null;uniqueIndex:idx_sale_facts_natural,priority:2" json:"recipe_id"`
	SaleDate  time.Time    `gorm:"type:date;not null;uniqueIndex:idx_sale_facts_natural,priority:3;index" json:"sale_date"`
	Quantity  float64      `gorm:"not null" json:"quantity"`
	Source    string       `gorm:"type:text;not null;default:''" json:"source"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SaleFact) TableName() string { return "sale_facts" }
