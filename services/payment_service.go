package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend_crm/config"
	"backend_crm/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ошибки платежного модуля
var (
	ErrProviderNotFound    = errors.New("payment provider not found")
	ErrProviderInactive    = errors.New("payment provider is not active")
	ErrPaymentLinkNotFound = errors.New("payment link not found")
)

// PaymentService управляет провайдерами, платежными ссылками и реквизитами
// компании. Ключи провайдера из БД имеют приоритет над ключами из окружения.
type PaymentService struct {
	db     *gorm.DB
	access *AccessService
	cfg    config.PaymentProvidersConfig
}

// NewPaymentService создает новый экземпляр PaymentService
func NewPaymentService(db *gorm.DB, access *AccessService, cfg config.PaymentProvidersConfig) *PaymentService {
	return &PaymentService{db: db, access: access, cfg: cfg}
}

// clientFor собирает HTTP-клиент с ключами конкретного провайдера
func (s *PaymentService) clientFor(provider *models.PaymentProvider) *PaymentClient {
	cfg := s.cfg
	if provider.APIKey != "" {
		switch strings.ToLower(provider.Name) {
		case models.ProviderVault:
			cfg.VaultAPIKey = provider.APIKey
		case models.ProviderTabby:
			cfg.TabbyAPIKey = provider.APIKey
		case models.ProviderTamara:
			cfg.TamaraAPIToken = provider.APIKey
		}
	}
	if provider.WebhookURL != "" {
		cfg.CallbackURL = provider.WebhookURL
	}
	return NewPaymentClient(cfg)
}

// ListProviders возвращает всех платежных провайдеров
func (s *PaymentService) ListProviders() ([]models.PaymentProvider, error) {
	var providers []models.PaymentProvider
	if err := s.db.Order("name").Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки провайдеров: %w", err)
	}
	return providers, nil
}

// SaveProvider создает или обновляет провайдера. Только для админов.
func (s *PaymentService) SaveProvider(actor *models.User, provider *models.PaymentProvider) error {
	if !s.access.CanManageSettings(actor) {
		return ErrNotAuthorized
	}

	name := strings.ToLower(provider.Name)
	switch name {
	case models.ProviderVault, models.ProviderTabby, models.ProviderTamara:
	default:
		return fmt.Errorf("unsupported payment provider: %s", provider.Name)
	}
	provider.Name = name

	if provider.ID == 0 {
		var existing models.PaymentProvider
		err := s.db.Where("name = ?", name).First(&existing).Error
		if err == nil {
			provider.ID = existing.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ошибка поиска провайдера: %w", err)
		}
	}

	if err := s.db.Save(provider).Error; err != nil {
		return fmt.Errorf("ошибка сохранения провайдера: %w", err)
	}
	return nil
}

// CreateLinkInput параметры создания платежной ссылки
type CreateLinkInput struct {
	LeadID      *uint
	StudentID   *uint
	ProviderID  uint
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// CreatePaymentLink создает ссылку у внешнего провайдера и сохраняет ее
// в БД со статусом pending. При ошибке провайдера локальная запись
// не создается.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, actor *models.User, input CreateLinkInput) (*models.PaymentLink, error) {
	var provider models.PaymentProvider
	if err := s.db.First(&provider, input.ProviderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки провайдера: %w", err)
	}
	if !provider.IsActive {
		return nil, ErrProviderInactive
	}

	customer, err := s.resolveCustomer(input.LeadID, input.StudentID)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = "AED"
	}

	result, err := s.clientFor(&provider).CreateLink(ctx, provider.Name, input.Amount, currency, input.Description, customer)
	if err != nil {
		return nil, err
	}

	link := models.PaymentLink{
		LeadID:           input.LeadID,
		StudentID:        input.StudentID,
		ProviderID:       provider.ID,
		Amount:           input.Amount,
		Currency:         currency,
		Description:      input.Description,
		PaymentURL:       result.PaymentURL,
		PaymentReference: uuid.New().String(),
		ExternalID:       result.ExternalID,
		Status:           models.PaymentStatusPending,
		ExpiresAt:        result.ExpiresAt,
		WebhookData:      result.RawData,
		CreatedByID:      &actor.ID,
	}

	if err := s.db.Create(&link).Error; err != nil {
		return nil, fmt.Errorf("ошибка сохранения платежной ссылки: %w", err)
	}

	return &link, nil
}

// ListPaymentLinks возвращает платежные ссылки, опционально отфильтрованные
// по лиду или студенту
func (s *PaymentService) ListPaymentLinks(leadID, studentID *uint) ([]models.PaymentLink, error) {
	query := s.db.Preload("Provider").Order("created_at DESC")
	if leadID != nil {
		query = query.Where("lead_id = ?", *leadID)
	}
	if studentID != nil {
		query = query.Where("student_id = ?", *studentID)
	}

	var links []models.PaymentLink
	if err := query.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки платежных ссылок: %w", err)
	}
	return links, nil
}

// VerifyPayment сверяет статус платежа с провайдером. Конечные статусы
// не перепроверяются.
func (s *PaymentService) VerifyPayment(ctx context.Context, linkID uint) (*models.PaymentLink, error) {
	var link models.PaymentLink
	if err := s.db.Preload("Provider").First(&link, linkID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentLinkNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки платежной ссылки: %w", err)
	}

	if link.IsFinal() {
		return &link, nil
	}

	result, err := s.clientFor(link.Provider).VerifyStatus(ctx, link.Provider.Name, link.ExternalID)
	if err != nil {
		return nil, err
	}

	newStatus := mapProviderStatus(result.Status)
	updates := map[string]interface{}{"webhook_data": result.RawData}
	if newStatus != "" && newStatus != link.Status {
		updates["status"] = newStatus
		if newStatus == models.PaymentStatusPaid {
			now := time.Now()
			updates["paid_at"] = &now
			link.PaidAt = &now
		}
		link.Status = newStatus
	}
	link.WebhookData = result.RawData

	if err := s.db.Model(&models.PaymentLink{}).Where("id = ?", link.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса платежа: %w", err)
	}

	return &link, nil
}

// HandleWebhook обрабатывает уведомление провайдера по платежной ссылке
func (s *PaymentService) HandleWebhook(reference, providerStatus, rawData string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	if err := s.db.Where("payment_reference = ?", reference).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentLinkNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки платежной ссылки: %w", err)
	}

	newStatus := mapProviderStatus(providerStatus)
	updates := map[string]interface{}{"webhook_data": rawData}
	if newStatus != "" && !link.IsFinal() {
		updates["status"] = newStatus
		link.Status = newStatus
		if newStatus == models.PaymentStatusPaid {
			now := time.Now()
			updates["paid_at"] = &now
			link.PaidAt = &now
		}
	}

	if err := s.db.Model(&models.PaymentLink{}).Where("id = ?", link.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления платежа: %w", err)
	}

	return &link, nil
}

// GetPaymentSettings возвращает реквизиты компании, создавая запись
// с умолчаниями при первом обращении
func (s *PaymentService) GetPaymentSettings() (*models.PaymentSettings, error) {
	var settings models.PaymentSettings
	err := s.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.PaymentSettings{
			CompanyName:     "Training Center",
			CompanyEmail:    "info@example.com",
			CompanyPhone:    "+971500000000",
			DefaultCurrency: "AED",
		}
		if err := s.db.Create(&settings).Error; err != nil {
			return nil, fmt.Errorf("ошибка создания платежных настроек: %w", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки платежных настроек: %w", err)
	}
	return &settings, nil
}

// UpdatePaymentSettings обновляет реквизиты компании. Только для админов.
func (s *PaymentService) UpdatePaymentSettings(actor *models.User, updates map[string]interface{}) (*models.PaymentSettings, error) {
	if !s.access.CanManageSettings(actor) {
		return nil, ErrNotAuthorized
	}

	settings, err := s.GetPaymentSettings()
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(settings).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления платежных настроек: %w", err)
	}
	return settings, nil
}

// mapProviderStatus переводит статус провайдера во внутренний статус ссылки.
// Неизвестные статусы не меняют состояние.
func mapProviderStatus(providerStatus string) string {
	switch strings.ToLower(providerStatus) {
	case "paid", "captured", "closed", "fully_captured", "approved", "authorized":
		return models.PaymentStatusPaid
	case "failed", "rejected", "declined":
		return models.PaymentStatusFailed
	case "expired":
		return models.PaymentStatusExpired
	case "cancelled", "canceled":
		return models.PaymentStatusCancelled
	case "pending", "created", "new":
		return models.PaymentStatusPending
	}
	return ""
}

// resolveCustomer собирает данные плательщика из лида или студента
func (s *PaymentService) resolveCustomer(leadID, studentID *uint) (PaymentCustomer, error) {
	if leadID != nil {
		var lead models.Lead
		if err := s.db.First(&lead, *leadID).Error; err != nil {
			return PaymentCustomer{}, fmt.Errorf("лид не найден: %w", err)
		}
		return PaymentCustomer{Name: lead.Name, Email: lead.Email, Phone: lead.Phone}, nil
	}
	if studentID != nil {
		var student models.Student
		if err := s.db.First(&student, *studentID).Error; err != nil {
			return PaymentCustomer{}, fmt.Errorf("студент не найден: %w", err)
		}
		return PaymentCustomer{Name: student.FullName(), Email: student.Email, Phone: student.Phone}, nil
	}
	return PaymentCustomer{}, fmt.Errorf("lead_id or student_id is required")
}
