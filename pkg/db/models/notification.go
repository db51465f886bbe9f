package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Notification stores in-app notifications scoped to a user.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;type:text;not null"`
	Message   string                 `gorm:"column:message;type:text;not null"`
	Link      *string                `gorm:"column:link;type:text"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
