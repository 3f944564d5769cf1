package model

import (
	"time"

	"gorm.io/gorm"
)

// EntryStatus defines the lifecycle state of a schedule entry
type EntryStatus string

const (
	// EntryStatusScheduled is the initial state of every generated entry
	EntryStatusScheduled EntryStatus = "scheduled"
	// EntryStatusCompleted is a terminal state
	EntryStatusCompleted EntryStatus = "completed"
	// EntryStatusSkipped is a terminal state
	EntryStatusSkipped EntryStatus = "skipped"
)

// IsTerminal reports whether the status allows no further transitions
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusSkipped
}

// ScheduleEntry is a concrete, dated assignment of a topic to a sub-range of
// its plan's period with a normalized weightage.
//
// The upstream proposal API only knows subject/topic names, so the names are
// kept denormalized, but each entry also carries resolved SubjectID/TopicID
// foreign keys looked up at persistence time.
type ScheduleEntry struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	UserID              uint           `gorm:"index;not null" json:"user_id"`
	PlanID              uint           `gorm:"index;not null" json:"plan_id"`
	SubjectID           uint           `gorm:"index;not null" json:"subject_id"`
	TopicID             uint           `gorm:"index;not null" json:"topic_id"`
	SubjectName         string         `gorm:"not null" json:"subject"`
	TopicName           string         `gorm:"not null" json:"topic"`
	FromDate            time.Time      `gorm:"type:date;not null" json:"from_date"`
	ToDate              time.Time      `gorm:"type:date;not null" json:"to_date"`
	NormalizedWeightage float64        `gorm:"not null" json:"normalized_weightage"`
	Status              EntryStatus    `gorm:"type:varchar(32);default:'scheduled';not null" json:"status"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Plan    Plan    `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"-"`
	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
	Topic   Topic   `gorm:"foreignKey:TopicID;constraint:OnDelete:CASCADE" json:"-"`
}

// CoversDay reports whether the entry's [FromDate, ToDate] window contains day
func (e *ScheduleEntry) CoversDay(day time.Time) bool {
	return !day.Before(e.FromDate) && !day.After(e.ToDate)
}
