package entities

import "time"

type RoleName string

const (
	RoleAdmin     RoleName = "admin"
	RoleModerator RoleName = "moderator"
	RoleMember    RoleName = "member"
)

// Role is one of the fixed set seeded at migration time.
type Role struct {
	ID   uint     `gorm:"primaryKey" json:"id"`
	Name RoleName `gorm:"uniqueIndex;size:32" json:"name"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Login        string    `gorm:"uniqueIndex;size:100" json:"login"`
	PasswordHash string    `gorm:"size:100" json:"-"`
	RoleID       uint      `gorm:"index" json:"role_id"`
	Role         Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	FirstName    string    `gorm:"size:100" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	MiddleName   string    `gorm:"size:100" json:"middle_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Reviews     []Review     `gorm:"foreignKey:UserID" json:"-"`
	Collections []Collection `gorm:"foreignKey:UserID" json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role.Name == RoleAdmin
}

func (u *User) IsModerator() bool {
	return u.Role.Name == RoleModerator
}

// FullName renders "Last First Middle" the way user names appear on pages.
func (u *User) FullName() string {
	name := u.LastName + " " + u.FirstName
	if u.MiddleName != "" {
		name += " " + u.MiddleName
	}
	return name
}
