package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Course представляет учебный курс
type Course struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Name        string `json:"name" gorm:"not null;type:varchar(200)"`
	Slug        string `json:"slug" gorm:"uniqueIndex;type:varchar(200)"`
	Description string `json:"description" gorm:"type:text"`

	// Стоимость
	Price decimal.Decimal `json:"price" gorm:"type:decimal(15,2);not null"`

	// Длительность, например "3" + "months"
	Duration     string `json:"duration" gorm:"type:varchar(50)"`
	DurationType string `json:"duration_type" gorm:"type:varchar(20)"` // days, weeks, months

	Category    string `json:"category" gorm:"type:varchar(100)"`
	IsActive    bool   `json:"is_active" gorm:"default:true"`
	MaxStudents int    `json:"max_students" gorm:"default:20"`

	// Ключевые пункты программы, JSON-список в текстовой колонке
	KeyPoints StringList `json:"key_points" gorm:"type:text"`

	// Связи
	Students []Student `json:"students,omitempty" gorm:"foreignKey:CourseID"`
}

// TableName задает имя таблицы для модели Course
func (Course) TableName() string {
	return "courses"
}

var slugStripRe = regexp.MustCompile(`[^\w\s-]`)
var slugDashRe = regexp.MustCompile(`[-\s]+`)

// GenerateSlug строит URL-совместимый slug из названия курса
func GenerateSlug(name string) string {
	s := strings.ToLower(strings.TrimSpace(slugStripRe.ReplaceAllString(name, "")))
	return slugDashRe.ReplaceAllString(s, "-")
}
