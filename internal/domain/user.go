package domain

import "time"

// User Model
type User struct {
	UserID        uint      `gorm:"primaryKey;column:user_id"`    // Primary key
	Username      string    `gorm:"uniqueIndex;size:32;not null"` // Display name, unique
	AccountNumber string    `gorm:"uniqueIndex;size:10;not null"` // Fixed-length numeric account number
	PinSalt       string    `gorm:"size:64;not null" json:"-"`    // Random per-user salt (hex)
	PinHash       string    `gorm:"size:128;not null" json:"-"`   // Hash over salt || pin
	CreatedAt     time.Time `gorm:"autoCreateTime"`               // Registration time
}

// TableName maps User to the Users table
func (User) TableName() string {
	return "users"
}
