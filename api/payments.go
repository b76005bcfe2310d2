package api

import (
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentsAPI обрабатывает платежных провайдеров, ссылки и реквизиты
type PaymentsAPI struct {
	db       *gorm.DB
	payments *services.PaymentService
}

// NewPaymentsAPI создает новый экземпляр PaymentsAPI
func NewPaymentsAPI(db *gorm.DB, payments *services.PaymentService) *PaymentsAPI {
	return &PaymentsAPI{db: db, payments: payments}
}

// RegisterRoutes регистрирует маршруты платежей. Вебхук регистрируется
// отдельно в публичной группе.
func (pa *PaymentsAPI) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	{
		payments.GET("/providers", pa.GetProviders)
		payments.POST("/providers", pa.SaveProvider)
		payments.GET("/links", pa.GetPaymentLinks)
		payments.POST("/links", pa.CreatePaymentLink)
		payments.POST("/links/:id/verify", pa.VerifyPayment)
		payments.GET("/settings", pa.GetPaymentSettings)
		payments.PUT("/settings", pa.UpdatePaymentSettings)
	}
}

// RegisterWebhook регистрирует публичный маршрут вебхука провайдеров
func (pa *PaymentsAPI) RegisterWebhook(public *gin.RouterGroup) {
	public.POST("/payments/webhook", pa.HandleWebhook)
}

// GetProviders возвращает платежных провайдеров
func (pa *PaymentsAPI) GetProviders(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	providers, err := pa.payments.ListProviders()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch payment providers")
		return
	}

	respondSuccess(c, http.StatusOK, providers)
}

// SaveProviderRequest представляет запрос на сохранение провайдера
type SaveProviderRequest struct {
	ID          uint   `json:"id"`
	Name        string `json:"name" binding:"required"`
	IsActive    *bool  `json:"is_active"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	Environment string `json:"environment" binding:"omitempty,oneof=sandbox production"`
	WebhookURL  string `json:"webhook_url" binding:"max=500"`
}

// SaveProvider создает или обновляет провайдера
func (pa *PaymentsAPI) SaveProvider(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req SaveProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	provider := models.PaymentProvider{
		Name:        req.Name,
		APIKey:      req.APIKey,
		APISecret:   req.APISecret,
		Environment: req.Environment,
		WebhookURL:  req.WebhookURL,
		IsActive:    true,
	}
	provider.ID = req.ID
	if req.IsActive != nil {
		provider.IsActive = *req.IsActive
	}
	if provider.Environment == "" {
		provider.Environment = "sandbox"
	}

	if err := pa.payments.SaveProvider(user, &provider); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, provider)
}

// GetPaymentLinks возвращает платежные ссылки
func (pa *PaymentsAPI) GetPaymentLinks(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var leadID, studentID *uint
	if raw := c.Query("lead_id"); raw != "" {
		if id, err := parseUintQuery(raw); err == nil {
			leadID = &id
		}
	}
	if raw := c.Query("student_id"); raw != "" {
		if id, err := parseUintQuery(raw); err == nil {
			studentID = &id
		}
	}

	links, err := pa.payments.ListPaymentLinks(leadID, studentID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch payment links")
		return
	}

	respondSuccess(c, http.StatusOK, links)
}

// CreatePaymentLinkRequest представляет запрос на создание ссылки
type CreatePaymentLinkRequest struct {
	LeadID      *uint           `json:"lead_id"`
	StudentID   *uint           `json:"student_id"`
	ProviderID  uint            `json:"provider_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	Description string          `json:"description" binding:"max=500"`
}

// CreatePaymentLink создает платежную ссылку у провайдера
func (pa *PaymentsAPI) CreatePaymentLink(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req CreatePaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if req.LeadID == nil && req.StudentID == nil {
		respondError(c, http.StatusBadRequest, "lead_id or student_id is required")
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, http.StatusBadRequest, "Amount must be positive")
		return
	}

	link, err := pa.payments.CreatePaymentLink(c.Request.Context(), user, services.CreateLinkInput{
		LeadID:      req.LeadID,
		StudentID:   req.StudentID,
		ProviderID:  req.ProviderID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, link)
}

// VerifyPayment сверяет статус платежа с провайдером
func (pa *PaymentsAPI) VerifyPayment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	link, err := pa.payments.VerifyPayment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, link)
}

// WebhookRequest представляет уведомление платежного провайдера
type WebhookRequest struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
	Status           string `json:"status" binding:"required"`
	RawData          string `json:"raw_data"`
}

// HandleWebhook обрабатывает уведомление провайдера. Маршрут публичный:
// провайдеры не проходят нашу аутентификацию.
func (pa *PaymentsAPI) HandleWebhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	link, err := pa.payments.HandleWebhook(req.PaymentReference, req.Status, req.RawData)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"id": link.ID, "payment_status": link.Status})
}

// GetPaymentSettings возвращает реквизиты компании
func (pa *PaymentsAPI) GetPaymentSettings(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	settings, err := pa.payments.GetPaymentSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch payment settings")
		return
	}

	respondSuccess(c, http.StatusOK, settings)
}

// UpdatePaymentSettings обновляет реквизиты компании
func (pa *PaymentsAPI) UpdatePaymentSettings(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	settings, err := pa.payments.UpdatePaymentSettings(user, updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, settings)
}
