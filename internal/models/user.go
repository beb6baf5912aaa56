package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Address is the postal address kept on a user profile.
type Address struct {
	Street  string `json:"street" gorm:"type:varchar(200)"`
	City    string `json:"city" gorm:"type:varchar(100)"`
	State   string `json:"state" gorm:"type:varchar(100)"`
	ZipCode string `json:"zipCode" gorm:"type:varchar(20)"`
	Country string `json:"country" gorm:"type:varchar(100)"`
}

// User represents a user of the store.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Email     string         `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string         `json:"-" gorm:"type:varchar(255);not null"` // bcrypt hash, never serialized
	Phone     string         `json:"phone" gorm:"type:varchar(30)"`
	Role      string         `json:"role" gorm:"type:varchar(10);not null;index"`
	Address   Address        `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserStats summarizes the account base for the admin console.
type UserStats struct {
	TotalUsers        int64 `json:"totalUsers"`
	AdminUsers        int64 `json:"adminUsers"`
	RegularUsers      int64 `json:"regularUsers"`
	NewUsersThisMonth int64 `json:"newUsersThisMonth"`
}

// BeforeCreate assigns a UUID and the default role.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
