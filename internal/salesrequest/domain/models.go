// Package domain contains the sales request model and the reconciliation
// contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesRequest is a manually entered demand commitment for one recipe,
// branch and period. Quantities are decimals because requests flow into
// purchasing, where fractional kilos are real and float drift is not
// acceptable.
type SalesRequest struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	RequestID   uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex" json:"request_id"`
	BranchID    snowflake.ID `gorm:"not null;uniqueIndex:idx_sales_requests_natural,priority:1" json:"branch_id"`
	RecipeID    snowflake.ID `gorm:"not null;uniqueIndex:idx_sales_requests_natural,priority:2" json:"recipe_id"`
	PeriodType  string       `gorm:"type:text;not null;uniqueIndex:idx_sales_requests_natural,priority:3" json:"period_type"`
	PeriodStart time.Time    `gorm:"type:date;not null;uniqueIndex:idx_sales_requests_natural,priority:4" json:"period_start"`

	RequestedQty decimal.Decimal `gorm:"type:numeric(14,3);not null" json:"requested_qty"`
	// ReconciledQty and UncappedQty are set by a committed reconciliation:
	// the adjusted quantity and the raw forecast it was capped from.
	ReconciledQty *decimal.Decimal `gorm:"type:numeric(14,3)" json:"reconciled_qty,omitempty"`
	UncappedQty   *decimal.Decimal `gorm:"type:numeric(14,3)" json:"uncapped_qty,omitempty"`

	Status       string    `gorm:"type:text;not null;default:DRAFT" json:"status"`
	StatusReason string    `gorm:"type:text;not null;default:''" json:"status_reason"`
	Source       string    `gorm:"type:text;not null;default:''" json:"source"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SalesRequest) TableName() string { return "sales_requests" }

const (
	RequestStatusDraft      = "DRAFT"
	RequestStatusReconciled = "RECONCILED"
)
