package domain

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EmployeeSnapshot is replicated from the company service's stream. The
// company name is denormalized onto the event by the producer, so no
// cross-service lookup is needed here.
type EmployeeSnapshot struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Version     int64          `gorm:"not null" json:"version"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	CompanyID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"companyId"`
	CompanyName string         `json:"companyName,omitempty"`
	Roles       datatypes.JSON `json:"roles,omitempty"`
	Audit
}

func (EmployeeSnapshot) TableName() string { return "employee_snapshot" }

func (s EmployeeSnapshot) AggregateVersion() int64 { return s.Version }
