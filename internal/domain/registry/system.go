package registry

import "time"

type System struct {
	ID          string     `gorm:"column:system_id;type:text;primaryKey" json:"system_id"`
	Name        string     `gorm:"column:system_name;type:text;not null;uniqueIndex:idx_systems_name" json:"system_name"`
	GroupID     *string    `gorm:"column:group_id;type:text;index" json:"group_id"`
	PublicKey   string     `gorm:"column:public_key;type:text" json:"public_key"`
	CallbackURL *string    `gorm:"column:callback_url;type:text" json:"callback_url,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	LastSeenAt  *time.Time `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
}

func (System) TableName() string { return "systems" }

// Group returns the system's group id, or "" when unassigned.
func (s *System) Group() string {
	if s == nil || s.GroupID == nil {
		return ""
	}
	return *s.GroupID
}

type Function struct {
	ID        string    `gorm:"column:function_id;type:text;primaryKey" json:"function_id"`
	SystemID  string    `gorm:"column:system_id;type:text;not null;index" json:"system_id"`
	GroupID   string    `gorm:"column:group_id;type:text;not null;index" json:"group_id"`
	Name      string    `gorm:"column:function_name;type:text;not null" json:"function_name"`
	URL       string    `gorm:"column:url;type:text" json:"url"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (Function) TableName() string { return "system_functions" }
