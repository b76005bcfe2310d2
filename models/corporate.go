package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы корпоративной сделки
const (
	CorporateStatusInquiry     = "Inquiry"
	CorporateStatusProposal    = "Proposal"
	CorporateStatusNegotiation = "Negotiation"
	CorporateStatusConfirmed   = "Confirmed"
	CorporateStatusCompleted   = "Completed"
)

// CorporateTraining представляет B2B-сделку на корпоративное обучение
type CorporateTraining struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Компания
	CompanyName string `json:"company_name" gorm:"not null;type:varchar(200)"`
	Location    string `json:"location" gorm:"not null;type:varchar(200)"`
	Industry    string `json:"industry" gorm:"type:varchar(100)"`
	CompanySize string `json:"company_size" gorm:"type:varchar(50)"`

	// Контактное лицо
	ContactPersonName        string `json:"contact_person_name" gorm:"not null;type:varchar(100)"`
	ContactPersonEmail       string `json:"contact_person_email" gorm:"not null;type:varchar(120)"`
	ContactPersonCountryCode string `json:"contact_person_country_code" gorm:"default:'+971';type:varchar(5)"`
	ContactPersonPhone       string `json:"contact_person_phone" gorm:"not null;type:varchar(20)"`

	// Запрошенные курсы: JSON-список идентификаторов в текстовой колонке
	CourseIDs IDList `json:"course_ids" gorm:"column:course_ids;type:text"`

	TraineeCount int    `json:"trainee_count" gorm:"not null"`
	TrainingMode string `json:"training_mode" gorm:"type:varchar(20)"` // Onsite, Online, Hybrid

	// Деньги
	QuotationAmount decimal.Decimal `json:"quotation_amount" gorm:"type:decimal(15,2);default:0"`
	DealValue       decimal.Decimal `json:"deal_value" gorm:"type:decimal(15,2);default:0"`

	ExpectedStartDate   *time.Time `json:"expected_start_date"`
	BudgetRange         string     `json:"budget_range" gorm:"type:varchar(50)"`
	SpecialRequirements string     `json:"special_requirements" gorm:"type:text"`

	Status string `json:"status" gorm:"default:'Inquiry';type:varchar(20)"` // Inquiry, Proposal, Negotiation, Confirmed, Completed

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели CorporateTraining
func (CorporateTraining) TableName() string {
	return "corporate_trainings"
}
