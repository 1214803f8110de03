package models

import "gorm.io/gorm"

// Roles recognised by the authorization middleware.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// User represents a user of the store.
type User struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username   string `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email      string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password   string `gorm:"type:varchar(255)" validate:"required,min=6"` // No json tag for security
	Role       string `json:"role" gorm:"type:varchar(16);default:customer"`
	gorm.Model        // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// IsStaff reports whether the user may perform staff-only order transitions.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff
}

// Address is a shipping address owned by a user. Orders copy the fields they
// need at checkout time, so editing an address never rewrites order history.
type Address struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string `json:"user_id" gorm:"index;type:varchar(36)"`
	FullName   string `json:"full_name" gorm:"type:varchar(120)" validate:"required,max=120"`
	Phone      string `json:"phone" gorm:"type:varchar(32)" validate:"required,max=32"`
	Line       string `json:"address" validate:"required"`
	Province   string `json:"province" gorm:"type:varchar(120)"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(16)"`
	IsDefault  bool   `json:"is_default"`
}
