package registry

import "time"

// Group is the administrative partition scoping which systems, functions and
// workflows may interoperate.
type Group struct {
	ID          string    `gorm:"column:group_id;type:text;primaryKey" json:"group_id"`
	Name        string    `gorm:"column:name;type:text;not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Group) TableName() string { return "groups" }
