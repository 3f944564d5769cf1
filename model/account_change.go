package model

import "time"

// AccountChange is an audit row for sensitive profile changes that require
// email verification before being applied (currently email changes).
type AccountChange struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	FieldChanged string    `gorm:"type:varchar(64);not null" json:"field_changed"`
	OldValue     string    `json:"old_value"`
	NewValue     string    `json:"new_value"`
	Processed    bool      `gorm:"default:false" json:"processed"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
