package snapshot

import (
	"gorm.io/gorm"

	types "github.com/construxio/sitehub-backend/internal/domain"
)

// UnitOfWork brackets one inbound HTTP request or one consumed event: a
// single database transaction plus per-kind snapshot caches scoped to it.
// It is constructed at the start of the unit and discarded at its end,
// never stored anywhere that outlives the transaction.
type UnitOfWork struct {
	Tx *gorm.DB

	Projects   *Cache[types.ProjectSnapshot]
	Tasks      *Cache[types.TaskSnapshot]
	Schedules  *Cache[types.TaskScheduleSnapshot]
	Milestones *Cache[types.MilestoneSnapshot]
	Users      *Cache[types.UserSnapshot]
	Employees  *Cache[types.EmployeeSnapshot]
}

func NewUnitOfWork(tx *gorm.DB) *UnitOfWork {
	return &UnitOfWork{
		Tx:         tx,
		Projects:   NewCache[types.ProjectSnapshot](),
		Tasks:      NewCache[types.TaskSnapshot](),
		Schedules:  NewCache[types.TaskScheduleSnapshot](),
		Milestones: NewCache[types.MilestoneSnapshot](),
		Users:      NewCache[types.UserSnapshot](),
		Employees:  NewCache[types.EmployeeSnapshot](),
	}
}
