package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered, email-verified student
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Phone        string         `gorm:"type:varchar(25)" json:"phone"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Plans           []Plan          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ScheduleEntries []ScheduleEntry `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	DailyProgress   []DailyProgress `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AccountChanges  []AccountChange `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
