package model

import "time"

// Note is a free-form backlog item kept in one flat, ordered list per user.
type Note struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index"`
	Date      time.Time `gorm:"type:date"`
	Detail    string
	Order     int `gorm:"column:position"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
