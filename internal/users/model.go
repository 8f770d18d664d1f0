package users

import "time"

// User is a dashboard operator. Users receive session tokens, appear as
// audit attribution and take turns as the default responsible for new
// leads.
type User struct {
	Key       string    `gorm:"column:user_key;primaryKey;size:190;not null" json:"key"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	Email     string    `gorm:"column:email;size:320" json:"email"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName binds users to their table.
func (User) TableName() string {
	return "users"
}
