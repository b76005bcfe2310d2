package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы лида
const (
	LeadStatusNew        = "New"
	LeadStatusContacted  = "Contacted"
	LeadStatusInterested = "Interested"
	LeadStatusQuoted     = "Quoted"
	LeadStatusConverted  = "Converted"
	LeadStatusLost       = "Lost"
)

// LeadStatuses перечисляет все допустимые статусы лида в порядке воронки
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusInterested,
	LeadStatusQuoted,
	LeadStatusConverted,
	LeadStatusLost,
}

// IsValidLeadStatus проверяет, что значение входит в перечень статусов
func IsValidLeadStatus(status string) bool {
	for _, s := range LeadStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Lead представляет потенциального клиента
type Lead struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Контактные данные. Телефон обязателен, дубликаты отслеживаются
	// проверкой CheckDuplicate, а не ограничением БД.
	Name     string `json:"name" gorm:"not null;type:varchar(100)"`
	Phone    string `json:"phone" gorm:"not null;index;type:varchar(20)"`
	Whatsapp string `json:"whatsapp" gorm:"type:varchar(20)"`
	Email    string `json:"email" gorm:"index;type:varchar(120)"`

	// Интересующий курс. Без выбранного курса конвертация невозможна.
	CourseInterestID *uint   `json:"course_interest_id" gorm:"index"`
	CourseInterest   *Course `json:"course_interest,omitempty" gorm:"foreignKey:CourseInterestID"`

	// Источник и статус в воронке
	LeadSource string `json:"lead_source" gorm:"type:varchar(50)"`
	Status     string `json:"status" gorm:"default:'New';index;type:varchar(20)"` // New, Contacted, Interested, Quoted, Converted, Lost

	// Актуальная предложенная сумма (копия из последнего квота)
	QuotedAmount decimal.Decimal `json:"quoted_amount" gorm:"type:decimal(15,2);default:0"`

	// Контакты и follow-up
	LastContactDate  *time.Time `json:"last_contact_date"`
	NextFollowupDate *time.Time `json:"next_followup_date"`
	FollowupTime     string     `json:"followup_time" gorm:"type:varchar(5)"`      // HH:MM
	FollowupType     string     `json:"followup_type" gorm:"type:varchar(20)"`     // Call, Email, WhatsApp, Meeting
	FollowupPriority string     `json:"followup_priority" gorm:"type:varchar(20)"` // Low, Medium, High, Urgent

	Comments string `json:"comments" gorm:"type:text"`

	// Владение: создатель и назначенный консультант
	CreatedByID  *uint `json:"created_by_id" gorm:"index"`
	CreatedBy    *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
	AssignedToID *uint `json:"assigned_to_id" gorm:"index"`
	AssignedTo   *User `json:"assigned_to,omitempty" gorm:"foreignKey:AssignedToID"`

	// Связи. Удаление лида каскадно удаляет его историю.
	Interactions []LeadInteraction `json:"interactions,omitempty" gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
	Quotes       []LeadQuote       `json:"quotes,omitempty" gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
}

// TableName задает имя таблицы для модели Lead
func (Lead) TableName() string {
	return "leads"
}

// IsTerminal проверяет, находится ли лид в конечном статусе
func (l *Lead) IsTerminal() bool {
	return l.Status == LeadStatusConverted || l.Status == LeadStatusLost
}

// OwnerID возвращает канонического владельца лида: назначенного консультанта,
// а если назначения нет, то создателя
func (l *Lead) OwnerID() *uint {
	if l.AssignedToID != nil {
		return l.AssignedToID
	}
	return l.CreatedByID
}

// Типы записей в истории лида
const (
	InteractionTypeCall           = "Call"
	InteractionTypeEmail          = "Email"
	InteractionTypeWhatsApp       = "WhatsApp"
	InteractionTypeMeeting        = "Meeting"
	InteractionTypeNote           = "Note"
	InteractionTypeComment        = "Comment"
	InteractionTypeQuoteUpdate    = "Quote Update"
	InteractionTypeFollowupUpdate = "Follow-up Update"
)

// LeadInteraction представляет запись в истории лида.
// Это журнал только на добавление: записи не редактируются и не удаляются.
type LeadInteraction struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	LeadID uint  `json:"lead_id" gorm:"not null;index"`
	Lead   *Lead `json:"-" gorm:"foreignKey:LeadID"`

	InteractionType string    `json:"interaction_type" gorm:"not null;type:varchar(20)"`
	Content         string    `json:"content" gorm:"type:text"`
	InteractionDate time.Time `json:"interaction_date"`
	IsImportant     bool      `json:"is_important" gorm:"default:false"`

	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели LeadInteraction
func (LeadInteraction) TableName() string {
	return "lead_interactions"
}

// Статусы квота
const (
	QuoteStatusActive   = "Active"
	QuoteStatusAccepted = "Accepted"
	QuoteStatusRejected = "Rejected"
	QuoteStatusExpired  = "Expired"
)

// LeadQuote представляет ценовое предложение для лида по конкретному курсу
type LeadQuote struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	LeadID uint  `json:"lead_id" gorm:"not null;index"`
	Lead   *Lead `json:"-" gorm:"foreignKey:LeadID"`

	CourseID uint    `json:"course_id" gorm:"not null"`
	Course   *Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`

	QuotedAmount decimal.Decimal `json:"quoted_amount" gorm:"type:decimal(15,2);not null"`
	Currency     string          `json:"currency" gorm:"default:'AED';type:varchar(3)"`
	ValidUntil   time.Time       `json:"valid_until" gorm:"not null"`
	QuoteNotes   string          `json:"quote_notes" gorm:"type:text"`
	Status       string          `json:"status" gorm:"default:'Active';type:varchar(20)"` // Active, Accepted, Rejected, Expired

	CreatedByID *uint `json:"created_by_id"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели LeadQuote
func (LeadQuote) TableName() string {
	return "lead_quotes"
}

// IsExpired проверяет, истек ли срок действия квота
func (q *LeadQuote) IsExpired() bool {
	return time.Now().After(q.ValidUntil)
}
