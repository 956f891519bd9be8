package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskScheduleSnapshot struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Version   int64      `gorm:"not null" json:"version"`
	TaskID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"taskId"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;index" json:"projectId"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Audit

	// Strictly owned child rows, kept in position order. Loaded and rewritten
	// by the task-schedule snapshot store, never touched independently.
	Slots []DayCardSlot `gorm:"foreignKey:TaskScheduleID" json:"slots,omitempty"`
}

func (TaskScheduleSnapshot) TableName() string { return "task_schedule_snapshot" }

func (s TaskScheduleSnapshot) AggregateVersion() int64 { return s.Version }

// DayCardSlot references one day card at one date within a schedule.
type DayCardSlot struct {
	TaskScheduleID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Position       int       `gorm:"primaryKey" json:"position"`
	DayCardID      uuid.UUID `gorm:"type:uuid;not null" json:"dayCardId"`
	Date           time.Time `gorm:"not null" json:"date"`
	Status         string    `gorm:"not null" json:"status"`
}

func (DayCardSlot) TableName() string { return "task_schedule_slot" }

// HasApprovedSlot reports whether any slot is in APPROVED state, which pins
// the schedule against reschedule operations.
func (s *TaskScheduleSnapshot) HasApprovedSlot() bool {
	for _, slot := range s.Slots {
		if slot.Status == DayCardStatusApproved {
			return true
		}
	}
	return false
}
