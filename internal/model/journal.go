package model

import "time"

// Journal is the single diary entry a user keeps for a date.
type Journal struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index:idx_journal_user_date,unique"`
	Date      time.Time `gorm:"type:date;index:idx_journal_user_date,unique"`
	Subject   string
	Entry     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
