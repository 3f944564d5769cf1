package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanStatus defines the lifecycle state of a study plan
type PlanStatus string

const (
	// PlanStatusDraft means the plan is still being authored
	PlanStatusDraft PlanStatus = "draft"
	// PlanStatusSubmitted means a schedule has been generated and persisted
	PlanStatusSubmitted PlanStatus = "submitted"
)

// Plan represents a user's declared intent to study a set of subjects
// over a date range with preferred study days.
//
// Status transitions draft -> submitted exactly once, as a side effect of a
// successful schedule generation. There is no way back.
type Plan struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	StartDate time.Time      `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time      `gorm:"type:date;not null" json:"end_date"`
	// PreferredDays holds a JSON array of weekday tokens, e.g. ["Mon","Tue","Sat"]
	PreferredDays datatypes.JSON `json:"preferred_days"`
	Status        PlanStatus     `gorm:"type:varchar(32);default:'draft';not null" json:"status"`

	// Relationships
	User     User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Subjects []Subject `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"subjects,omitempty"`
}

// IsDraft reports whether the plan can still be edited
func (p *Plan) IsDraft() bool {
	return p.Status == PlanStatusDraft
}

// ContainsRange reports whether [from, to] lies inside the plan window
func (p *Plan) ContainsRange(from, to time.Time) bool {
	return !from.Before(p.StartDate) && !to.After(p.EndDate)
}

// Subject is one subject declared under a plan
type Subject struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	PlanID    uint           `gorm:"index;not null" json:"plan_id"`
	Name      string         `gorm:"not null" json:"name"`

	// Relationships
	User   User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Plan   Plan    `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"-"`
	Topics []Topic `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"topics,omitempty"`
}

// Topic is the smallest unit of study content under a subject, with a
// user-assigned relative importance.
type Topic struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	SubjectID        uint           `gorm:"index;not null" json:"subject_id"`
	Name             string         `gorm:"not null" json:"name"`
	InitialWeightage float64        `gorm:"default:0" json:"initial_weightage"`

	// Relationships
	Subject Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"-"`
}
