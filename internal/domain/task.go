package domain

import (
	"github.com/google/uuid"
)

type TaskSnapshot struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Version               int64      `gorm:"not null" json:"version"`
	ProjectID             uuid.UUID  `gorm:"type:uuid;not null;index" json:"projectId"`
	Name                  string     `gorm:"not null" json:"name"`
	Status                string     `gorm:"not null" json:"status"`
	Craft                 string     `json:"craft,omitempty"`
	WorkArea              string     `json:"workArea,omitempty"`
	AssigneeParticipantID *uuid.UUID `gorm:"type:uuid" json:"assigneeParticipantId,omitempty"`
	Audit
}

func (TaskSnapshot) TableName() string { return "task_snapshot" }

func (s TaskSnapshot) AggregateVersion() int64 { return s.Version }
