package memberships

import "time"

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

type Membership struct {
	UserID    string    `gorm:"type:char(36);primaryKey"`
	Status    string    `gorm:"type:varchar(16);not null"`
	ExpiresAt time.Time `gorm:"type:datetime(3);not null"`
	CreatedAt time.Time `gorm:"type:datetime(3);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(3);not null"`
}

func (Membership) TableName() string { return "memberships" }

func (m *Membership) ActiveAt(t time.Time) bool {
	return m.Status == StatusActive && m.ExpiresAt.After(t)
}
