package domain

import (
	"time"

	"github.com/google/uuid"
)

type MilestoneSnapshot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int64     `gorm:"not null" json:"version"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"projectId"`
	Name      string    `gorm:"not null" json:"name"`
	Type      string    `gorm:"not null" json:"type"`
	Date      time.Time `gorm:"not null" json:"date"`
	Header    bool      `json:"header"`
	Audit
}

func (MilestoneSnapshot) TableName() string { return "milestone_snapshot" }

func (s MilestoneSnapshot) AggregateVersion() int64 { return s.Version }
