package api

import (
	"fmt"
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TemplatesAPI обрабатывает шаблоны сообщений
type TemplatesAPI struct {
	db            *gorm.DB
	notifications *services.NotificationService
}

// NewTemplatesAPI создает новый экземпляр TemplatesAPI
func NewTemplatesAPI(db *gorm.DB, notifications *services.NotificationService) *TemplatesAPI {
	return &TemplatesAPI{db: db, notifications: notifications}
}

// RegisterRoutes регистрирует маршруты шаблонов сообщений
func (ta *TemplatesAPI) RegisterRoutes(router *gin.RouterGroup) {
	templates := router.Group("/templates")
	{
		templates.GET("", ta.GetTemplates)
		templates.GET("/:id", ta.GetTemplate)
		templates.POST("", ta.CreateTemplate)
		templates.PUT("/:id", ta.UpdateTemplate)
		templates.DELETE("/:id", ta.DeleteTemplate)
		templates.POST("/:id/use", ta.UseTemplate)
		templates.POST("/:id/send", ta.SendTemplate)
	}
}

// GetTemplates возвращает список шаблонов с фильтрами
func (ta *TemplatesAPI) GetTemplates(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	query := ta.db.Model(&models.MessageTemplate{})

	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if messageType := c.Query("message_type"); messageType != "" {
		query = query.Where("message_type = ?", messageType)
	}
	if active := c.Query("active"); active == "true" {
		query = query.Where("is_active = ?", true)
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(subject) LIKE ?", pattern, pattern)
	}

	var templates []models.MessageTemplate
	if err := query.Order("usage_count DESC, name").Find(&templates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch templates")
		return
	}

	respondSuccess(c, http.StatusOK, templates)
}

// GetTemplate возвращает шаблон по ID
func (ta *TemplatesAPI) GetTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var template models.MessageTemplate
	if err := ta.db.First(&template, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Template not found")
		return
	}

	respondSuccess(c, http.StatusOK, template)
}

// TemplateRequest представляет запрос на создание шаблона
type TemplateRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Category    string `json:"category" binding:"omitempty,oneof=Welcome Follow-up Reminder Confirmation 'Thank You' Other"`
	Subject     string `json:"subject" binding:"omitempty,max=200"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type" binding:"omitempty,oneof=Email SMS WhatsApp"`
	IsActive    *bool  `json:"is_active"`
}

// CreateTemplate создает новый шаблон сообщения
func (ta *TemplatesAPI) CreateTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	template := models.MessageTemplate{
		Name:        req.Name,
		Category:    req.Category,
		Subject:     req.Subject,
		Content:     req.Content,
		MessageType: req.MessageType,
		IsActive:    true,
	}
	if template.Category == "" {
		template.Category = "Other"
	}
	if template.MessageType == "" {
		template.MessageType = "Email"
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}

	if err := ta.db.Create(&template).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create template")
		return
	}

	respondSuccess(c, http.StatusCreated, template)
}

// UpdateTemplate изменяет шаблон сообщения
func (ta *TemplatesAPI) UpdateTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var template models.MessageTemplate
	if err := ta.db.First(&template, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Template not found")
		return
	}

	var req struct {
		Name        *string `json:"name" binding:"omitempty,max=100"`
		Category    *string `json:"category" binding:"omitempty,oneof=Welcome Follow-up Reminder Confirmation 'Thank You' Other"`
		Subject     *string `json:"subject" binding:"omitempty,max=200"`
		Content     *string `json:"content"`
		MessageType *string `json:"message_type" binding:"omitempty,oneof=Email SMS WhatsApp"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.MessageType != nil {
		updates["message_type"] = *req.MessageType
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := ta.db.Model(&template).Updates(updates).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to update template")
			return
		}
	}

	respondSuccess(c, http.StatusOK, template)
}

// DeleteTemplate удаляет шаблон сообщения
func (ta *TemplatesAPI) DeleteTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var template models.MessageTemplate
	if err := ta.db.First(&template, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Template not found")
		return
	}

	if err := ta.db.Delete(&template).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Template deleted"})
}

// UseTemplate увеличивает счетчик использований и возвращает содержимое
func (ta *TemplatesAPI) UseTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var template models.MessageTemplate
	if err := ta.db.First(&template, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Template not found")
		return
	}

	if err := ta.db.Model(&template).UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update usage count")
		return
	}

	respondSuccess(c, http.StatusOK, template)
}

// SendTemplateRequest представляет запрос на отправку шаблона
type SendTemplateRequest struct {
	Recipient string `json:"recipient" binding:"required,max=200"`
	Subject   string `json:"subject" binding:"omitempty,max=200"`
}

// SendTemplate отправляет шаблон получателю. Email уходит через SMTP,
// SMS и WhatsApp пересылаются оператору в Telegram для ручной отправки.
func (ta *TemplatesAPI) SendTemplate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var template models.MessageTemplate
	if err := ta.db.First(&template, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Template not found")
		return
	}
	if !template.IsActive {
		respondError(c, http.StatusBadRequest, "Template is not active")
		return
	}

	var req SendTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var err error
	switch template.MessageType {
	case "Email":
		subject := req.Subject
		if subject == "" {
			subject = template.Subject
		}
		err = ta.notifications.SendEmail(req.Recipient, subject, template.Content)
	default:
		message := fmt.Sprintf("📨 <b>%s template</b>\nRecipient: %s\n\n%s",
			template.MessageType, req.Recipient, template.Content)
		err = ta.notifications.SendTelegram(message)
	}
	if err != nil {
		respondError(c, http.StatusBadGateway, "Failed to send message")
		return
	}

	if err := ta.db.Model(&template).UpdateColumn("usage_count", gorm.Expr("usage_count + ?", 1)).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update usage count")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message":      "Template sent",
		"recipient":    req.Recipient,
		"message_type": template.MessageType,
	})
}
