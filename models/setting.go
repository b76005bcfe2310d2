package models

import (
	"time"
)

// Ключи справочников настроек
const (
	SettingKeyLeadSource    = "lead_source"
	SettingKeyLeadStatus    = "lead_status"
	SettingKeyFollowupType  = "followup_type"
	SettingKeyMeetingType   = "meeting_type"
	SettingKeyPriorityLevel = "priority_level"
)

// Setting представляет строку справочника для выпадающих списков
type Setting struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Key         string `json:"key" gorm:"not null;index:idx_settings_key_value;type:varchar(100)"`
	Value       string `json:"value" gorm:"not null;index:idx_settings_key_value;type:varchar(150)"`
	DisplayName string `json:"display_name" gorm:"not null;type:varchar(200)"`
	Description string `json:"description" gorm:"type:text"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`
	SortOrder   int    `json:"sort_order" gorm:"default:0"`
}

// TableName задает имя таблицы для модели Setting
func (Setting) TableName() string {
	return "settings"
}

// Choice представляет один пункт выпадающего списка
type Choice struct {
	Value       string `json:"value"`
	DisplayName string `json:"display_name"`
}

// DefaultChoices возвращает запасной список для ключа, когда в БД нет
// активных строк справочника
func DefaultChoices(key string) []Choice {
	switch key {
	case SettingKeyLeadSource:
		return makeChoices("Website", "Social Media", "Referral", "Advertisement", "Walk-in", "Other")
	case SettingKeyLeadStatus:
		return makeChoices(LeadStatuses...)
	case SettingKeyFollowupType:
		return makeChoices("Call", "Email", "WhatsApp", "Meeting")
	case SettingKeyMeetingType:
		return makeChoices("Online", "Offline")
	case SettingKeyPriorityLevel:
		return makeChoices("Low", "Medium", "High", "Urgent")
	}
	return nil
}

func makeChoices(values ...string) []Choice {
	choices := make([]Choice, len(values))
	for i, v := range values {
		choices[i] = Choice{Value: v, DisplayName: v}
	}
	return choices
}

// SystemSetting представляет одиночную настройку приложения вида ключ-значение
type SystemSetting struct {
	ID uint `json:"id" gorm:"primarykey"`

	SettingKey   string `json:"setting_key" gorm:"uniqueIndex;not null;type:varchar(100)"`
	SettingValue string `json:"setting_value" gorm:"type:text"`
	SettingType  string `json:"setting_type" gorm:"type:varchar(20)"` // string, number, boolean, json
	Description  string `json:"description" gorm:"type:varchar(200)"`
}

// TableName задает имя таблицы для модели SystemSetting
func (SystemSetting) TableName() string {
	return "system_settings"
}
