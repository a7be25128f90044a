package model

import "time"

// User stores Telegram user metadata. The Telegram identifier is the
// primary key itself: it is stable for the lifetime of the account, so no
// surrogate key is needed.
type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	Username  string
	FirstName string
	LastName  string
	AIEnabled bool `gorm:"default:true"`
	CreatedAt time.Time
}
