package domain

import (
	"github.com/google/uuid"
)

// UserSnapshot is replicated from the user service's stream; this service
// never issues commands against it.
type UserSnapshot struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version    int64     `gorm:"not null" json:"version"`
	ExternalID string    `gorm:"index" json:"externalIdentifier,omitempty"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	Email      string    `json:"email,omitempty"`
	Locale     string    `json:"locale,omitempty"`
	Audit
}

func (UserSnapshot) TableName() string { return "user_snapshot" }

func (s UserSnapshot) AggregateVersion() int64 { return s.Version }
