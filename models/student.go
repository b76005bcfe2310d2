package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы студента
const (
	StudentStatusActive    = "Active"
	StudentStatusCompleted = "Completed"
	StudentStatusDropped   = "Dropped"
	StudentStatusSuspended = "Suspended"
)

// Student представляет зачисленного студента
type Student struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Исходный лид, если студент появился через конвертацию
	LeadID *uint `json:"lead_id" gorm:"index"`
	Lead   *Lead `json:"lead,omitempty" gorm:"foreignKey:LeadID"`

	// Контактные данные
	FirstName   string `json:"first_name" gorm:"not null;type:varchar(50)"`
	LastName    string `json:"last_name" gorm:"type:varchar(50)"`
	CountryCode string `json:"country_code" gorm:"default:'+971';type:varchar(5)"`
	Phone       string `json:"phone" gorm:"not null;type:varchar(20)"`
	Email       string `json:"email" gorm:"type:varchar(120)"`

	// Курс обязателен
	CourseID uint    `json:"course_id" gorm:"not null;index"`
	Course   *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`

	// Расписание: дни недели как JSON-список и слот времени
	ScheduleDays StringList `json:"schedule_days" gorm:"type:text"`
	ScheduleTime string     `json:"schedule_time" gorm:"type:varchar(20)"`

	EnrollmentDate time.Time `json:"enrollment_date"`
	Status         string    `json:"status" gorm:"default:'Active';type:varchar(20)"` // Active, Completed, Dropped, Suspended

	// Оплата
	FeePaid     decimal.Decimal `json:"fee_paid" gorm:"type:decimal(15,2);default:0"`
	TotalFee    decimal.Decimal `json:"total_fee" gorm:"type:decimal(15,2);not null"`
	PaymentPlan string          `json:"payment_plan" gorm:"type:varchar(50)"` // Full, Installments

	ProgressPercentage float64 `json:"progress_percentage" gorm:"default:0"`
	BatchName          string  `json:"batch_name" gorm:"type:varchar(100)"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	// Связи
	AttendanceRecords []AttendanceRecord `json:"attendance_records,omitempty" gorm:"foreignKey:StudentID"`
}

// TableName задает имя таблицы для модели Student
func (Student) TableName() string {
	return "students"
}

// FullName возвращает полное имя студента
func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// OutstandingFee возвращает остаток к оплате
func (s *Student) OutstandingFee() decimal.Decimal {
	return s.TotalFee.Sub(s.FeePaid)
}

// AttendanceRecord представляет отметку посещаемости студента
type AttendanceRecord struct {
	ID uint `json:"id" gorm:"primarykey"`

	StudentID uint     `json:"student_id" gorm:"not null;index"`
	Student   *Student `json:"-" gorm:"foreignKey:StudentID"`

	AttendanceDate time.Time `json:"attendance_date" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;type:varchar(20)"` // Present, Absent, Late
	Notes          string    `json:"notes" gorm:"type:text"`
}

// TableName задает имя таблицы для модели AttendanceRecord
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
