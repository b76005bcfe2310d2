package models

import (
	"time"

	"gorm.io/gorm"
)

// Статусы встречи
const (
	MeetingStatusScheduled = "Scheduled"
	MeetingStatusCompleted = "Completed"
	MeetingStatusCancelled = "Cancelled"
	MeetingStatusNoShow    = "No Show"
)

// Meeting представляет встречу с лидом или студентом
type Meeting struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Участник: лид или студент, оба опциональны
	LeadID    *uint    `json:"lead_id" gorm:"index"`
	Lead      *Lead    `json:"lead,omitempty" gorm:"foreignKey:LeadID"`
	StudentID *uint    `json:"student_id" gorm:"index"`
	Student   *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`

	Title       string    `json:"title" gorm:"not null;type:varchar(200)"`
	MeetingType string    `json:"meeting_type" gorm:"not null;type:varchar(20)"` // Online, Offline
	MeetingDate time.Time `json:"meeting_date" gorm:"not null;index"`
	Duration    int       `json:"duration" gorm:"default:60"` // минуты
	Status      string    `json:"status" gorm:"default:'Scheduled';type:varchar(20)"`

	MeetingLink string `json:"meeting_link" gorm:"type:varchar(500)"` // для онлайн-встреч
	Location    string `json:"location" gorm:"type:varchar(200)"`     // для офлайн-встреч
	Agenda      string `json:"agenda" gorm:"type:text"`
	Notes       string `json:"notes" gorm:"type:text"`

	// Напоминания
	EmailReminder bool `json:"email_reminder" gorm:"default:false;not null"`
	SMSReminder   bool `json:"sms_reminder" gorm:"default:false;not null"`
	ReminderTime  *int `json:"reminder_time"` // за сколько минут до встречи
	ReminderSent  bool `json:"reminder_sent" gorm:"default:false"`

	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели Meeting
func (Meeting) TableName() string {
	return "meetings"
}

// IsUpcoming проверяет, предстоит ли встреча
func (m *Meeting) IsUpcoming() bool {
	return m.Status == MeetingStatusScheduled && m.MeetingDate.After(time.Now())
}

// ReminderDue проверяет, пора ли отправлять напоминание о встрече
func (m *Meeting) ReminderDue(now time.Time) bool {
	if m.ReminderSent || m.Status != MeetingStatusScheduled || m.ReminderTime == nil {
		return false
	}
	remindAt := m.MeetingDate.Add(-time.Duration(*m.ReminderTime) * time.Minute)
	return now.After(remindAt) && now.Before(m.MeetingDate)
}
