package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProjectSnapshot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version     int64     `gorm:"not null" json:"version"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Audit
}

func (ProjectSnapshot) TableName() string { return "project_snapshot" }

func (s ProjectSnapshot) AggregateVersion() int64 { return s.Version }
