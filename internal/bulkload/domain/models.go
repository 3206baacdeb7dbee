// Package domain contains the staged-batch models behind the two-phase
// bulk ingestion protocol.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// StagedBatch is the durable value that carries a preview to its confirm.
// The Ref is the caller-facing handle; the batch status flips to APPLIED
// exactly once.
type StagedBatch struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Ref           string       `gorm:"type:text;not null;uniqueIndex" json:"ref"`
	Kind          string       `gorm:"type:text;not null" json:"kind"`
	Mode          string       `gorm:"type:text;not null;default:replace" json:"mode"`
	Source        string       `gorm:"type:text;not null;default:''" json:"source"`
	Status        string       `gorm:"type:text;not null;default:PENDING" json:"status"`
	RowCount      int          `gorm:"not null;default:0" json:"row_count"`
	AcceptedCount int          `gorm:"not null;default:0" json:"accepted_count"`
	RejectedCount int          `gorm:"not null;default:0" json:"rejected_count"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	AppliedAt     *time.Time   `json:"applied_at,omitempty"`
}

func (StagedBatch) TableName() string { return "staged_batches" }

const (
	BatchStatusPending = "PENDING"
	BatchStatusApplied = "APPLIED"
)

// StagedRow is one validated input row. Payload holds the resolved,
// normalized values (master IDs, canonical dates) so confirm does not
// depend on re-running the fuzzy name resolution.
type StagedRow struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	BatchID   snowflake.ID      `gorm:"not null;index" json:"batch_id"`
	LineNo    int               `gorm:"not null" json:"line_no"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	Status    string            `gorm:"type:text;not null;default:ACCEPT" json:"status"`
	Reason    string            `gorm:"type:text;not null;default:''" json:"reason"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (StagedRow) TableName() string { return "staged_rows" }
