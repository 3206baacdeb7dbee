// Package domain contains master-data models for branches and recipes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Branch is a point of sale.
type Branch struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Slug      string       `gorm:"type:text;not null;index" json:"slug"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Branch) TableName() string { return "branches" }

// Recipe is a sellable product or an intermediate preparation. Preparations
// never sell directly; they only appear in history through production records
// and are excluded from forecasting unless explicitly requested.
type Recipe struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Code          string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name          string       `gorm:"type:text;not null" json:"name"`
	Slug          string       `gorm:"type:text;not null;index" json:"slug"`
	Unit          string       `gorm:"type:text;not null;default:unidad" json:"unit"`
	IsPreparation bool         `gorm:"not null;default:false" json:"is_preparation"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Recipe) TableName() string { return "recipes" }
