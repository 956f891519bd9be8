package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit is embedded in every snapshot entity. The values always come from the
// event that produced the row state, never from local clocks, so replicas
// converge on identical rows.
type Audit struct {
	CreatedBy      uuid.UUID `gorm:"type:uuid" json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	LastModifiedBy uuid.UUID `gorm:"type:uuid" json:"lastModifiedBy"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// AuditInfo lets embedding snapshot types satisfy interfaces that need the
// audit block without reflection.
func (a Audit) AuditInfo() Audit { return a }
