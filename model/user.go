package model

import (
	"time"

	"gorm.io/gorm"
)

// Well-known group names
const (
	GroupModerators = "moderators"
	GroupStudents   = "students"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	FirstName    string         `gorm:"type:varchar(150)" json:"first_name"`
	LastName     string         `gorm:"type:varchar(150)" json:"last_name"`
	Phone        string         `gorm:"type:varchar(35)" json:"phone"`
	City         string         `gorm:"type:varchar(100)" json:"city"`
	AvatarURL    string         `gorm:"type:text" json:"avatar_url"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	IsStaff      bool           `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser  bool           `gorm:"not null;default:false" json:"is_superuser"`
	LastLogin    *time.Time     `json:"last_login"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Groups         []Group             `gorm:"many2many:user_groups;constraint:OnDelete:CASCADE" json:"groups,omitempty"`
	Courses        []Course            `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Subscriptions  []Subscription      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Payments       []Payment           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// InGroup reports whether the loaded Groups contain name
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// GroupNames returns the names of the loaded groups
func (u *User) GroupNames() []string {
	names := make([]string, 0, len(u.Groups))
	for _, g := range u.Groups {
		names = append(names, g.Name)
	}
	return names
}

// Group is a named set of users used for role assignment
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"name"`
}
