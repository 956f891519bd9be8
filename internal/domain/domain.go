// Package domain holds the snapshot entities, projection rows and event
// vocabulary shared by the snapshot stores, the command gate and the
// event-stream consumers.
package domain

// Aggregate kinds. Each kind owns one logical event stream.
const (
	KindProject      = "PROJECT"
	KindTask         = "TASK"
	KindTaskSchedule = "TASKSCHEDULE"
	KindMilestone    = "MILESTONE"
	KindUser         = "USER"
	KindEmployee     = "EMPLOYEE"
	KindJob          = "JOB"
)

// Event names. CREATED/UPDATED/DELETED exist for every snapshot kind; the
// remaining names are kind-specific but flow through the same apply paths.
const (
	EventCreated = "CREATED"
	EventUpdated = "UPDATED"
	EventDeleted = "DELETED"

	EventTaskSent     = "SENT"
	EventTaskStarted  = "STARTED"
	EventTaskClosed   = "CLOSED"
	EventTaskAccepted = "ACCEPTED"

	EventRescheduled = "RESCHEDULED"

	EventJobStarted  = "STARTED"
	EventJobFinished = "FINISHED"
)

// Task statuses.
const (
	TaskStatusDraft    = "DRAFT"
	TaskStatusOpen     = "OPEN"
	TaskStatusStarted  = "STARTED"
	TaskStatusClosed   = "CLOSED"
	TaskStatusAccepted = "ACCEPTED"
)

// Milestone types.
const (
	MilestoneTypeProject  = "PROJECT"
	MilestoneTypeInvestor = "INVESTOR"
	MilestoneTypeCraft    = "CRAFT"
)

// Day card statuses carried on schedule slots. An APPROVED slot pins its
// schedule: the schedule refuses to be rescheduled while one exists.
const (
	DayCardStatusOpen     = "OPEN"
	DayCardStatusDone     = "DONE"
	DayCardStatusApproved = "APPROVED"
	DayCardStatusNotDone  = "NOTDONE"
)
