package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Поддерживаемые платежные провайдеры
const (
	ProviderVault  = "vault"
	ProviderTabby  = "tabby"
	ProviderTamara = "tamara"
)

// Статусы платежной ссылки
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusExpired   = "expired"
	PaymentStatusCancelled = "cancelled"
)

// PaymentProvider хранит учетные данные платежного провайдера
type PaymentProvider struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name        string `json:"name" gorm:"not null;type:varchar(50)"` // vault, tabby, tamara
	IsActive    bool   `json:"is_active" gorm:"default:true"`
	APIKey      string `json:"-" gorm:"type:varchar(500)"`
	APISecret   string `json:"-" gorm:"type:varchar(500)"`
	Environment string `json:"environment" gorm:"default:'sandbox';type:varchar(20)"` // sandbox, production
	WebhookURL  string `json:"webhook_url" gorm:"type:varchar(500)"`
}

// TableName задает имя таблицы для модели PaymentProvider
func (PaymentProvider) TableName() string {
	return "payment_providers"
}

// PaymentLink представляет платежную ссылку, созданную у внешнего провайдера
type PaymentLink struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Плательщик: лид или студент
	LeadID    *uint    `json:"lead_id" gorm:"index"`
	Lead      *Lead    `json:"lead,omitempty" gorm:"foreignKey:LeadID"`
	StudentID *uint    `json:"student_id" gorm:"index"`
	Student   *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`

	ProviderID uint             `json:"provider_id" gorm:"not null"`
	Provider   *PaymentProvider `json:"provider,omitempty" gorm:"foreignKey:ProviderID"`

	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Currency    string          `json:"currency" gorm:"default:'AED';type:varchar(5)"`
	Description string          `json:"description" gorm:"type:varchar(500)"`

	// Данные, возвращенные провайдером
	PaymentURL       string `json:"payment_url" gorm:"type:varchar(1000)"`
	PaymentReference string `json:"payment_reference" gorm:"uniqueIndex;type:varchar(200)"`
	ExternalID       string `json:"external_id" gorm:"type:varchar(200)"` // ID платежа у провайдера

	Status    string     `json:"status" gorm:"default:'pending';type:varchar(20)"` // pending, paid, failed, expired, cancelled
	PaidAt    *time.Time `json:"paid_at"`
	ExpiresAt *time.Time `json:"expires_at"`

	// Сырой JSON последнего вебхука/проверки статуса
	WebhookData string `json:"webhook_data,omitempty" gorm:"type:text"`

	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели PaymentLink
func (PaymentLink) TableName() string {
	return "payment_links"
}

// IsFinal проверяет, находится ли платеж в конечном статусе
func (p *PaymentLink) IsFinal() bool {
	switch p.Status {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentSettings хранит реквизиты компании для платежных документов
type PaymentSettings struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyName           string `json:"company_name" gorm:"not null;type:varchar(200)"`
	CompanyEmail          string `json:"company_email" gorm:"not null;type:varchar(120)"`
	CompanyPhone          string `json:"company_phone" gorm:"not null;type:varchar(20)"`
	CompanyAddress        string `json:"company_address" gorm:"type:text"`
	TaxRegistrationNumber string `json:"tax_registration_number" gorm:"type:varchar(50)"`
	PaymentTerms          string `json:"payment_terms" gorm:"type:text"`
	InvoiceNotes          string `json:"invoice_notes" gorm:"type:text"`
	DefaultCurrency       string `json:"default_currency" gorm:"default:'AED';type:varchar(5)"`

	AutoSendReceipts       bool `json:"auto_send_receipts" gorm:"default:true"`
	PaymentReminderEnabled bool `json:"payment_reminder_enabled" gorm:"default:true"`
	PaymentReminderDays    int  `json:"payment_reminder_days" gorm:"default:3"`
}

// TableName задает имя таблицы для модели PaymentSettings
func (PaymentSettings) TableName() string {
	return "payment_settings"
}
