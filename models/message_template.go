package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageTemplate представляет шаблон сообщения для рассылок
type MessageTemplate struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name        string `json:"name" gorm:"not null;type:varchar(100)"`
	Category    string `json:"category" gorm:"type:varchar(50)"` // Welcome, Follow-up, Reminder, Confirmation, Thank You, Other
	Subject     string `json:"subject" gorm:"type:varchar(200)"`
	Content     string `json:"content" gorm:"not null;type:text"`
	MessageType string `json:"message_type" gorm:"type:varchar(20)"` // Email, SMS, WhatsApp
	IsActive    bool   `json:"is_active" gorm:"default:true"`
	UsageCount  int    `json:"usage_count" gorm:"default:0"`
}

// TableName задает имя таблицы для модели MessageTemplate
func (MessageTemplate) TableName() string {
	return "message_templates"
}
