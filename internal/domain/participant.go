package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ParticipantRow is the denormalized read model merging the USER and EMPLOYEE
// streams, keyed by the owning user. Each contributing stream carries its own
// watermark so late arrivals never overwrite newer facts from the other side.
type ParticipantRow struct {
	UserID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	DisplayName     string         `json:"displayName,omitempty"`
	Email           string         `json:"email,omitempty"`
	Locale          string         `json:"locale,omitempty"`
	UserEventAt     *time.Time     `json:"-"`
	EmployeeID      *uuid.UUID     `gorm:"type:uuid;index" json:"-"`
	CompanyID       *uuid.UUID     `gorm:"type:uuid" json:"companyId,omitempty"`
	CompanyName     string         `json:"companyName,omitempty"`
	Roles           datatypes.JSON `json:"roles,omitempty"`
	EmployeeEventAt *time.Time     `json:"-"`
}

func (ParticipantRow) TableName() string { return "participant_row" }

// Empty reports whether neither contributing stream has live facts left, in
// which case the row as a whole is removed.
func (r *ParticipantRow) Empty() bool {
	return r.DisplayName == "" && r.Email == "" && r.CompanyID == nil
}
