package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backend_crm/database"
	"backend_crm/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ошибки бизнес-правил жизненного цикла лида
var (
	ErrNotAuthorized    = errors.New("you can only edit leads assigned to you")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrNoCourseSelected = errors.New("please select a course before converting the lead")
	ErrLeadNotFound     = errors.New("lead not found")
	ErrQuoteNotFound    = errors.New("quote not found")
)

// DuplicateLeadError возвращается, когда телефон или email уже есть в базе
type DuplicateLeadError struct {
	Existing *models.Lead
	Field    string // phone или email
}

func (e *DuplicateLeadError) Error() string {
	return fmt.Sprintf("lead with this %s already exists: %s", e.Field, e.Existing.Name)
}

// LeadService реализует жизненный цикл лида: дубликаты, квоты, конвертацию,
// follow-up, историю и массовое назначение. Каждая мутация выполняется в
// одной транзакции: при любой ошибке все записи откатываются.
type LeadService struct {
	db     *gorm.DB
	access *AccessService
}

// NewLeadService создает новый экземпляр LeadService
func NewLeadService(db *gorm.DB, access *AccessService) *LeadService {
	return &LeadService{db: db, access: access}
}

// CheckDuplicate ищет существующий лид с тем же телефоном или email.
// Порядок проверки фиксирован: сначала телефон, и только если совпадения
// нет, проверяется email. excludeID исключает из поиска редактируемый лид.
func (s *LeadService) CheckDuplicate(phone, email string, excludeID uint) (*models.Lead, error) {
	newQuery := func() *gorm.DB {
		q := s.db.Model(&models.Lead{})
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		return q
	}

	var lead models.Lead
	if phone != "" {
		err := newQuery().Where("phone = ?", phone).Order("id").First(&lead).Error
		if err == nil {
			return &lead, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("ошибка поиска дубликата по телефону: %w", err)
		}
	}

	if email == "" {
		return nil, nil
	}

	err := newQuery().Where("email = ?", email).Order("id").First(&lead).Error
	if err == nil {
		return &lead, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ошибка поиска дубликата по email: %w", err)
	}

	return nil, nil
}

// CreateLeadInput параметры создания лида
type CreateLeadInput struct {
	Name             string
	Phone            string
	Whatsapp         string
	Email            string
	CourseInterestID *uint
	LeadSource       string
	Status           string
	QuotedAmount     decimal.Decimal
	NextFollowupDate *time.Time
	FollowupTime     string
	FollowupType     string
	FollowupPriority string
	Comments         string
	AssignedToID     *uint
}

// CreateLead создает лид после проверки статуса и дубликатов
func (s *LeadService) CreateLead(actor *models.User, input CreateLeadInput) (*models.Lead, error) {
	status := input.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	if !models.IsValidLeadStatus(status) {
		return nil, ErrInvalidStatus
	}

	if existing, err := s.CheckDuplicate(input.Phone, input.Email, 0); err != nil {
		return nil, err
	} else if existing != nil {
		field := "phone"
		if existing.Phone != input.Phone {
			field = "email"
		}
		return nil, &DuplicateLeadError{Existing: existing, Field: field}
	}

	lead := models.Lead{
		Name:             input.Name,
		Phone:            input.Phone,
		Whatsapp:         input.Whatsapp,
		Email:            input.Email,
		CourseInterestID: input.CourseInterestID,
		LeadSource:       input.LeadSource,
		Status:           status,
		QuotedAmount:     input.QuotedAmount,
		NextFollowupDate: input.NextFollowupDate,
		FollowupTime:     input.FollowupTime,
		FollowupType:     input.FollowupType,
		FollowupPriority: input.FollowupPriority,
		Comments:         input.Comments,
		CreatedByID:      &actor.ID,
		AssignedToID:     input.AssignedToID,
	}

	if err := s.db.Create(&lead).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания лида: %w", err)
	}

	database.ClearPipelineCache()
	return &lead, nil
}

// UpdateStatus напрямую переводит лид в новый статус. Переходы намеренно
// не ограничены: допустим любой из шести статусов из любого состояния.
func (s *LeadService) UpdateStatus(actor *models.User, leadID uint, newStatus string) error {
	if !models.IsValidLeadStatus(newStatus) {
		return ErrInvalidStatus
	}

	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return err
	}
	if !s.access.CanEditLead(actor, lead) {
		return ErrNotAuthorized
	}

	if err := s.db.Model(lead).Update("status", newStatus).Error; err != nil {
		return fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	database.ClearPipelineCache()
	return nil
}

// AddQuoteInput параметры создания квота
type AddQuoteInput struct {
	CourseID     uint
	QuotedAmount decimal.Decimal
	Currency     string
	ValidUntil   time.Time
	QuoteNotes   string
}

// AddQuote создает ценовое предложение. Если лид еще не в конечном статусе,
// он переводится в Quoted, а сумма копируется в lead.quoted_amount.
func (s *LeadService) AddQuote(actor *models.User, leadID uint, input AddQuoteInput) (*models.LeadQuote, error) {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanEditLead(actor, lead) {
		return nil, ErrNotAuthorized
	}

	currency := input.Currency
	if currency == "" {
		currency = "AED"
	}

	quote := models.LeadQuote{
		LeadID:       lead.ID,
		CourseID:     input.CourseID,
		QuotedAmount: input.QuotedAmount,
		Currency:     currency,
		ValidUntil:   input.ValidUntil,
		QuoteNotes:   input.QuoteNotes,
		Status:       models.QuoteStatusActive,
		CreatedByID:  &actor.ID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&quote).Error; err != nil {
			return fmt.Errorf("ошибка создания квота: %w", err)
		}

		if !lead.IsTerminal() {
			updates := map[string]interface{}{
				"status":        models.LeadStatusQuoted,
				"quoted_amount": input.QuotedAmount,
			}
			if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("ошибка обновления лида: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	database.ClearPipelineCache()
	return &quote, nil
}

// UpdateQuoteAmount переписывает сумму квота. Если квот самый свежий для
// лида, новая сумма попадает и в lead.quoted_amount. В историю всегда
// добавляется запись Quote Update со старой и новой суммой. Все записи
// выполняются атомарно.
func (s *LeadService) UpdateQuoteAmount(actor *models.User, quoteID uint, newAmount decimal.Decimal) (*models.LeadQuote, error) {
	var quote models.LeadQuote
	if err := s.db.First(&quote, quoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки квота: %w", err)
	}

	lead, err := s.getLead(s.db, quote.LeadID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanEditLead(actor, lead) {
		return nil, ErrNotAuthorized
	}

	oldAmount := quote.QuotedAmount

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LeadQuote{}).Where("id = ?", quote.ID).
			Update("quoted_amount", newAmount).Error; err != nil {
			return fmt.Errorf("ошибка обновления квота: %w", err)
		}

		// Самый свежий квот лида определяет lead.quoted_amount
		var latest models.LeadQuote
		if err := tx.Where("lead_id = ?", quote.LeadID).
			Order("created_at DESC, id DESC").First(&latest).Error; err != nil {
			return fmt.Errorf("ошибка поиска последнего квота: %w", err)
		}
		if latest.ID == quote.ID {
			if err := tx.Model(&models.Lead{}).Where("id = ?", quote.LeadID).
				Update("quoted_amount", newAmount).Error; err != nil {
				return fmt.Errorf("ошибка обновления суммы лида: %w", err)
			}
		}

		interaction := models.LeadInteraction{
			LeadID:          quote.LeadID,
			InteractionType: models.InteractionTypeQuoteUpdate,
			Content: fmt.Sprintf("Quote amount updated: %s → %s %s",
				oldAmount.StringFixed(2), newAmount.StringFixed(2), quote.Currency),
			InteractionDate: time.Now(),
			CreatedByID:     &actor.ID,
		}
		if err := tx.Create(&interaction).Error; err != nil {
			return fmt.Errorf("ошибка записи истории: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	quote.QuotedAmount = newAmount
	database.ClearPipelineCache()
	return &quote, nil
}

// ConvertLead превращает лид в студента. Без выбранного курса конвертация
// отклоняется без изменений состояния.
func (s *LeadService) ConvertLead(actor *models.User, leadID uint) (*models.Student, error) {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanEditLead(actor, lead) {
		return nil, ErrNotAuthorized
	}

	if lead.CourseInterestID == nil {
		return nil, ErrNoCourseSelected
	}

	var course models.Course
	if err := s.db.First(&course, *lead.CourseInterestID).Error; err != nil {
		return nil, fmt.Errorf("курс не найден: %w", err)
	}

	firstName, lastName := splitName(lead.Name)
	student := models.Student{
		LeadID:         &lead.ID,
		FirstName:      firstName,
		LastName:       lastName,
		Phone:          lead.Phone,
		Email:          lead.Email,
		CourseID:       course.ID,
		TotalFee:       course.Price,
		EnrollmentDate: time.Now(),
		Status:         models.StudentStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student).Error; err != nil {
			return fmt.Errorf("ошибка создания студента: %w", err)
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Update("status", models.LeadStatusConverted).Error; err != nil {
			return fmt.Errorf("ошибка обновления статуса лида: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	database.ClearPipelineCache()
	return &student, nil
}

// FollowupInput параметры обновления follow-up
type FollowupInput struct {
	Date     *time.Time
	Time     string
	Type     string
	Priority string
}

// UpdateFollowup перезаписывает поля follow-up и добавляет в историю запись
// Follow-up Update с построчным диффом изменившихся полей. Если изменений
// нет, фиксируется "No changes made".
func (s *LeadService) UpdateFollowup(actor *models.User, leadID uint, input FollowupInput) error {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return err
	}
	if !s.access.CanEditLead(actor, lead) {
		return ErrNotAuthorized
	}

	var changes []string
	appendChange := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			if oldVal == "" {
				oldVal = "none"
			}
			if newVal == "" {
				newVal = "none"
			}
			changes = append(changes, fmt.Sprintf("%s: %s → %s", field, oldVal, newVal))
		}
	}

	appendChange("Date", formatDate(lead.NextFollowupDate), formatDate(input.Date))
	appendChange("Time", lead.FollowupTime, input.Time)
	appendChange("Type", lead.FollowupType, input.Type)
	appendChange("Priority", lead.FollowupPriority, input.Priority)

	content := "No changes made"
	if len(changes) > 0 {
		content = "Follow-up updated: " + strings.Join(changes, "; ")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"next_followup_date": input.Date,
			"followup_time":      input.Time,
			"followup_type":      input.Type,
			"followup_priority":  input.Priority,
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("ошибка обновления follow-up: %w", err)
		}

		interaction := models.LeadInteraction{
			LeadID:          lead.ID,
			InteractionType: models.InteractionTypeFollowupUpdate,
			Content:         content,
			InteractionDate: time.Now(),
			CreatedByID:     &actor.ID,
		}
		if err := tx.Create(&interaction).Error; err != nil {
			return fmt.Errorf("ошибка записи истории: %w", err)
		}

		return nil
	})
}

// InteractionInput параметры записи взаимодействия
type InteractionInput struct {
	Type        string
	Content     string
	Date        *time.Time
	IsImportant bool
}

// AddInteraction добавляет запись о контакте с лидом и обновляет дату
// последнего контакта
func (s *LeadService) AddInteraction(actor *models.User, leadID uint, input InteractionInput) (*models.LeadInteraction, error) {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanEditLead(actor, lead) {
		return nil, ErrNotAuthorized
	}

	when := time.Now()
	if input.Date != nil {
		when = *input.Date
	}

	interaction := models.LeadInteraction{
		LeadID:          lead.ID,
		InteractionType: input.Type,
		Content:         input.Content,
		InteractionDate: when,
		IsImportant:     input.IsImportant,
		CreatedByID:     &actor.ID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&interaction).Error; err != nil {
			return fmt.Errorf("ошибка записи взаимодействия: %w", err)
		}
		if err := tx.Model(&models.Lead{}).Where("id = ?", lead.ID).
			Update("last_contact_date", when).Error; err != nil {
			return fmt.Errorf("ошибка обновления даты контакта: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &interaction, nil
}

// AddComment добавляет комментарий в историю лида. Другие поля лида
// не меняются.
func (s *LeadService) AddComment(actor *models.User, leadID uint, content string) (*models.LeadInteraction, error) {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return nil, err
	}
	if !s.access.CanEditLead(actor, lead) {
		return nil, ErrNotAuthorized
	}

	interaction := models.LeadInteraction{
		LeadID:          lead.ID,
		InteractionType: models.InteractionTypeComment,
		Content:         content,
		InteractionDate: time.Now(),
		CreatedByID:     &actor.ID,
	}
	if err := s.db.Create(&interaction).Error; err != nil {
		return nil, fmt.Errorf("ошибка записи комментария: %w", err)
	}

	return &interaction, nil
}

// BulkAssign назначает консультанта на набор лидов. Только для админов.
// Отсутствующие ID молча пропускаются; возвращается число обновленных лидов.
func (s *LeadService) BulkAssign(actor *models.User, leadIDs []uint, consultantID uint) (int, error) {
	if !s.access.CanBulkAssign(actor) {
		return 0, ErrNotAuthorized
	}

	var consultant models.User
	if err := s.db.First(&consultant, consultantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("consultant not found")
		}
		return 0, fmt.Errorf("ошибка загрузки консультанта: %w", err)
	}

	result := s.db.Model(&models.Lead{}).Where("id IN ?", leadIDs).
		Update("assigned_to_id", consultantID)
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка массового назначения: %w", result.Error)
	}

	database.ClearPipelineCache()
	return int(result.RowsAffected), nil
}

// DeleteLead удаляет лид вместе с историей и квотами
func (s *LeadService) DeleteLead(actor *models.User, leadID uint) error {
	lead, err := s.getLead(s.db, leadID)
	if err != nil {
		return err
	}
	if !s.access.CanEditLead(actor, lead) {
		return ErrNotAuthorized
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Каскад истории и квотов выполняется явно: soft delete лида
		// не трогает дочерние строки сам по себе
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadInteraction{}).Error; err != nil {
			return fmt.Errorf("ошибка удаления истории: %w", err)
		}
		if err := tx.Where("lead_id = ?", lead.ID).Delete(&models.LeadQuote{}).Error; err != nil {
			return fmt.Errorf("ошибка удаления квотов: %w", err)
		}
		if err := tx.Delete(&models.Lead{}, lead.ID).Error; err != nil {
			return fmt.Errorf("ошибка удаления лида: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	database.ClearPipelineCache()
	return nil
}

// PipelineEntry агрегат по одному статусу воронки
type PipelineEntry struct {
	Count      int64           `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// TTL кеша агрегатов воронки в Redis
const pipelineCacheTTL = 2 * time.Minute

// PipelineData возвращает агрегаты воронки по статусам с учетом видимости
// пользователя. Все шесть статусов присутствуют в результате всегда.
// Результат кешируется в Redis по пользователю; любая мутация лидов
// сбрасывает весь кеш воронки через ClearPipelineCache.
func (s *LeadService) PipelineData(user *models.User) (map[string]PipelineEntry, error) {
	cacheKey := database.PipelineCacheKey(user.ID)

	var cached map[string]PipelineEntry
	if err := database.CacheGetJSON(cacheKey, &cached); err == nil {
		return cached, nil
	}

	type row struct {
		Status     string
		Count      int64
		TotalValue decimal.Decimal
	}

	var rows []row
	err := s.access.VisibleLeads(s.db, user).
		Select("status, COUNT(id) AS count, COALESCE(SUM(quoted_amount), 0) AS total_value").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации воронки: %w", err)
	}

	result := make(map[string]PipelineEntry, len(models.LeadStatuses))
	for _, status := range models.LeadStatuses {
		result[status] = PipelineEntry{TotalValue: decimal.Zero}
	}
	for _, r := range rows {
		result[r.Status] = PipelineEntry{Count: r.Count, TotalValue: r.TotalValue}
	}

	if err := database.CacheSetJSON(cacheKey, result, pipelineCacheTTL); err != nil {
		log.Printf("⚠️ Не удалось закешировать воронку пользователя %d: %v", user.ID, err)
	}

	return result, nil
}

// getLead загружает лид по ID
func (s *LeadService) getLead(db *gorm.DB, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := db.First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки лида: %w", err)
	}
	return &lead, nil
}

// splitName делит полное имя на имя и фамилию
func splitName(full string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(full), " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// formatDate форматирует дату для диффа follow-up
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
