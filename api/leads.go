package api

import (
	"errors"
	"net/http"
	"time"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LeadsAPI обрабатывает воронку лидов: CRUD, квоты, конвертацию,
// follow-up, историю и массовое назначение
type LeadsAPI struct {
	db     *gorm.DB
	leads  *services.LeadService
	access *services.AccessService
}

// NewLeadsAPI создает новый экземпляр LeadsAPI
func NewLeadsAPI(db *gorm.DB, leads *services.LeadService, access *services.AccessService) *LeadsAPI {
	return &LeadsAPI{db: db, leads: leads, access: access}
}

// RegisterRoutes регистрирует маршруты лидов
func (la *LeadsAPI) RegisterRoutes(router *gin.RouterGroup) {
	leads := router.Group("/leads")
	{
		leads.GET("", la.GetLeads)
		leads.POST("", la.CreateLead)
		leads.GET("/check-duplicate", la.CheckDuplicate)
		leads.POST("/bulk-assign", la.BulkAssign)
		leads.GET("/:id", la.GetLead)
		leads.PUT("/:id", la.UpdateLead)
		leads.DELETE("/:id", la.DeleteLead)
		leads.POST("/:id/status", la.UpdateStatus)
		leads.POST("/:id/convert", la.ConvertLead)
		leads.GET("/:id/quotes", la.GetQuotes)
		leads.POST("/:id/quotes", la.AddQuote)
		leads.POST("/:id/followup", la.UpdateFollowup)
		leads.GET("/:id/activities", la.GetActivities)
		leads.POST("/:id/interactions", la.AddInteraction)
		leads.POST("/:id/comments", la.AddComment)
	}

	router.PUT("/quotes/:id", la.UpdateQuoteAmount)

	router.GET("/pipeline", la.GetPipeline)
	router.GET("/pipeline/data", la.GetPipelineData)
}

// CreateLeadRequest представляет запрос на создание лида
type CreateLeadRequest struct {
	Name             string          `json:"name" binding:"required,max=100"`
	Phone            string          `json:"phone" binding:"required,max=20"`
	Whatsapp         string          `json:"whatsapp" binding:"max=20"`
	Email            string          `json:"email" binding:"omitempty,email"`
	CourseInterestID *uint           `json:"course_interest_id"`
	LeadSource       string          `json:"lead_source" binding:"max=50"`
	Status           string          `json:"status"`
	QuotedAmount     decimal.Decimal `json:"quoted_amount"`
	NextFollowupDate *time.Time      `json:"next_followup_date"`
	FollowupTime     string          `json:"followup_time" binding:"max=5"`
	FollowupType     string          `json:"followup_type" binding:"max=20"`
	FollowupPriority string          `json:"followup_priority" binding:"max=20"`
	Comments         string          `json:"comments"`
	AssignedToID     *uint           `json:"assigned_to_id"`
}

// UpdateLeadRequest представляет запрос на обновление лида
type UpdateLeadRequest struct {
	Name             *string          `json:"name" binding:"omitempty,max=100"`
	Phone            *string          `json:"phone" binding:"omitempty,max=20"`
	Whatsapp         *string          `json:"whatsapp" binding:"omitempty,max=20"`
	Email            *string          `json:"email" binding:"omitempty,email"`
	CourseInterestID *uint            `json:"course_interest_id"`
	LeadSource       *string          `json:"lead_source"`
	Status           *string          `json:"status"`
	QuotedAmount     *decimal.Decimal `json:"quoted_amount"`
	Comments         *string          `json:"comments"`
	AssignedToID     *uint            `json:"assigned_to_id"`
}

// GetLeads возвращает список лидов с фильтрацией, поиском и пагинацией.
// Видимость ограничена правами пользователя до применения пагинации.
func (la *LeadsAPI) GetLeads(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := la.access.VisibleLeads(la.db, user).
		Preload("CourseInterest").Preload("AssignedTo").Preload("CreatedBy")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("lead_source = ?", source)
	}
	if courseID := c.Query("course_id"); courseID != "" {
		query = query.Where("course_interest_id = ?", courseID)
	}
	if assignedTo := c.Query("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to_id = ?", assignedTo)
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			pattern, pattern, "%"+search+"%")
	}
	if from := parseDateQuery(c, "date_from"); from != nil {
		query = query.Where("leads.created_at >= ?", *from)
	}
	if to := parseDateQuery(c, "date_to"); to != nil {
		query = query.Where("leads.created_at < ?", to.AddDate(0, 0, 1))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count leads")
		return
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&leads).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch leads")
		return
	}

	c.JSON(http.StatusOK, listResponse(leads, total, p))
}

// GetLead возвращает лид со связями
func (la *LeadsAPI) GetLead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var lead models.Lead
	err := la.db.Preload("CourseInterest").Preload("AssignedTo").Preload("CreatedBy").
		Preload("Quotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Quotes.Course").
		First(&lead, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Lead not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch lead")
		return
	}

	if !la.access.CanViewLead(user, &lead) {
		respondError(c, http.StatusForbidden, "You can only view leads assigned to you")
		return
	}

	respondSuccess(c, http.StatusOK, lead)
}

// CheckDuplicate проверяет наличие лида с таким телефоном или email
func (la *LeadsAPI) CheckDuplicate(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	phone := c.Query("phone")
	if phone == "" {
		respondError(c, http.StatusBadRequest, "Phone is required")
		return
	}
	email := c.Query("email")
	var excludeID uint
	if raw := c.Query("exclude_id"); raw != "" {
		if id, err := parseUintQuery(raw); err == nil {
			excludeID = id
		}
	}

	existing, err := la.leads.CheckDuplicate(phone, email, excludeID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check duplicates")
		return
	}

	if existing == nil {
		respondSuccess(c, http.StatusOK, gin.H{"duplicate": false})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"duplicate": true, "lead": existing})
}

// CreateLead создает новый лид
func (la *LeadsAPI) CreateLead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	lead, err := la.leads.CreateLead(user, services.CreateLeadInput{
		Name:             req.Name,
		Phone:            req.Phone,
		Whatsapp:         req.Whatsapp,
		Email:            req.Email,
		CourseInterestID: req.CourseInterestID,
		LeadSource:       req.LeadSource,
		Status:           req.Status,
		QuotedAmount:     req.QuotedAmount,
		NextFollowupDate: req.NextFollowupDate,
		FollowupTime:     req.FollowupTime,
		FollowupType:     req.FollowupType,
		FollowupPriority: req.FollowupPriority,
		Comments:         req.Comments,
		AssignedToID:     req.AssignedToID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, lead)
}

// UpdateLead обновляет поля лида
func (la *LeadsAPI) UpdateLead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var lead models.Lead
	if err := la.db.First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Lead not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch lead")
		return
	}

	if !la.access.CanEditLead(user, &lead) {
		respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
		return
	}

	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if req.Status != nil && !models.IsValidLeadStatus(*req.Status) {
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	// Дубликаты перепроверяются только по измененным полям; пустое
	// значение пропускает соответствующую проверку
	checkPhone := ""
	if req.Phone != nil && *req.Phone != lead.Phone {
		checkPhone = *req.Phone
	}
	checkEmail := ""
	if req.Email != nil && *req.Email != lead.Email {
		checkEmail = *req.Email
	}
	if checkPhone != "" || checkEmail != "" {
		existing, err := la.leads.CheckDuplicate(checkPhone, checkEmail, lead.ID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to check duplicates")
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"status":        "error",
				"error":         "Lead with this phone or email already exists",
				"existing_lead": existing,
			})
			return
		}
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Whatsapp != nil {
		updates["whatsapp"] = *req.Whatsapp
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.CourseInterestID != nil {
		updates["course_interest_id"] = *req.CourseInterestID
	}
	if req.LeadSource != nil {
		updates["lead_source"] = *req.LeadSource
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.QuotedAmount != nil {
		updates["quoted_amount"] = *req.QuotedAmount
	}
	if req.Comments != nil {
		updates["comments"] = *req.Comments
	}
	if req.AssignedToID != nil {
		updates["assigned_to_id"] = *req.AssignedToID
	}

	if len(updates) > 0 {
		if err := la.db.Model(&lead).Updates(updates).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to update lead")
			return
		}
	}

	respondSuccess(c, http.StatusOK, lead)
}

// DeleteLead удаляет лид вместе с историей
func (la *LeadsAPI) DeleteLead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := la.leads.DeleteLead(user, id); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Lead deleted"})
}

// UpdateStatus переводит лид в новый статус. Ответ сохраняет формат
// {success, message} для совместимости со старым фронтендом.
func (la *LeadsAPI) UpdateStatus(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Status is required"})
		return
	}

	if err := la.leads.UpdateStatus(user, id, req.Status); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status"})
		case errors.Is(err, services.ErrLeadNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Lead not found"})
		case errors.Is(err, services.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "You can only edit leads assigned to you"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status updated successfully"})
}

// ConvertLead превращает лид в студента
func (la *LeadsAPI) ConvertLead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	student, err := la.leads.ConvertLead(user, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, student)
}

// AddQuoteRequest представляет запрос на создание квота
type AddQuoteRequest struct {
	CourseID     uint            `json:"course_id" binding:"required"`
	QuotedAmount decimal.Decimal `json:"quoted_amount" binding:"required"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	ValidUntil   time.Time       `json:"valid_until" binding:"required"`
	QuoteNotes   string          `json:"quote_notes"`
}

// GetQuotes возвращает квоты лида от новых к старым
func (la *LeadsAPI) GetQuotes(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var lead models.Lead
	if err := la.db.First(&lead, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Lead not found")
		return
	}
	if !la.access.CanViewLead(user, &lead) {
		respondError(c, http.StatusForbidden, "You can only view leads assigned to you")
		return
	}

	var quotes []models.LeadQuote
	if err := la.db.Preload("Course").Where("lead_id = ?", id).
		Order("created_at DESC, id DESC").Find(&quotes).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch quotes")
		return
	}

	respondSuccess(c, http.StatusOK, quotes)
}

// AddQuote создает ценовое предложение для лида
func (la *LeadsAPI) AddQuote(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AddQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	quote, err := la.leads.AddQuote(user, id, services.AddQuoteInput{
		CourseID:     req.CourseID,
		QuotedAmount: req.QuotedAmount,
		Currency:     req.Currency,
		ValidUntil:   req.ValidUntil,
		QuoteNotes:   req.QuoteNotes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, quote)
}

// UpdateQuoteAmount меняет сумму существующего квота
func (la *LeadsAPI) UpdateQuoteAmount(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		QuotedAmount decimal.Decimal `json:"quoted_amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	quote, err := la.leads.UpdateQuoteAmount(user, id, req.QuotedAmount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, quote)
}

// UpdateFollowupRequest представляет запрос на обновление follow-up
type UpdateFollowupRequest struct {
	NextFollowupDate *time.Time `json:"next_followup_date"`
	FollowupTime     string     `json:"followup_time" binding:"max=5"`
	FollowupType     string     `json:"followup_type" binding:"max=20"`
	FollowupPriority string     `json:"followup_priority" binding:"max=20"`
}

// UpdateFollowup обновляет план follow-up по лиду
func (la *LeadsAPI) UpdateFollowup(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateFollowupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	err := la.leads.UpdateFollowup(user, id, services.FollowupInput{
		Date:     req.NextFollowupDate,
		Time:     req.FollowupTime,
		Type:     req.FollowupType,
		Priority: req.FollowupPriority,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Follow-up updated"})
}

// GetActivities возвращает историю лида от новых записей к старым
func (la *LeadsAPI) GetActivities(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var lead models.Lead
	if err := la.db.First(&lead, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Lead not found")
		return
	}
	if !la.access.CanViewLead(user, &lead) {
		respondError(c, http.StatusForbidden, "You can only view leads assigned to you")
		return
	}

	var interactions []models.LeadInteraction
	if err := la.db.Preload("CreatedBy").Where("lead_id = ?", id).
		Order("interaction_date DESC, id DESC").Find(&interactions).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch activities")
		return
	}

	respondSuccess(c, http.StatusOK, interactions)
}

// AddInteractionRequest представляет запрос на запись взаимодействия
type AddInteractionRequest struct {
	InteractionType string     `json:"interaction_type" binding:"required,max=20"`
	Content         string     `json:"content" binding:"required"`
	InteractionDate *time.Time `json:"interaction_date"`
	IsImportant     bool       `json:"is_important"`
}

// AddInteraction записывает контакт с лидом
func (la *LeadsAPI) AddInteraction(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req AddInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	interaction, err := la.leads.AddInteraction(user, id, services.InteractionInput{
		Type:        req.InteractionType,
		Content:     req.Content,
		Date:        req.InteractionDate,
		IsImportant: req.IsImportant,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, interaction)
}

// AddComment добавляет комментарий в историю лида
func (la *LeadsAPI) AddComment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Comment content is required")
		return
	}

	interaction, err := la.leads.AddComment(user, id, req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, interaction)
}

// BulkAssignRequest представляет запрос массового назначения
type BulkAssignRequest struct {
	LeadIDs      []uint `json:"lead_ids" binding:"required,min=1"`
	ConsultantID uint   `json:"consultant_id" binding:"required"`
}

// BulkAssign назначает консультанта на набор лидов. Только для админов.
func (la *LeadsAPI) BulkAssign(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updated, err := la.leads.BulkAssign(user, req.LeadIDs, req.ConsultantID)
	if err != nil {
		if errors.Is(err, services.ErrNotAuthorized) {
			respondError(c, http.StatusForbidden, "Admin access required")
			return
		}
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"updated":   updated,
		"requested": len(req.LeadIDs),
	})
}

// GetPipeline возвращает лиды, сгруппированные по статусам воронки
func (la *LeadsAPI) GetPipeline(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var leads []models.Lead
	err := la.access.VisibleLeads(la.db, user).
		Preload("CourseInterest").Preload("AssignedTo").
		Order("created_at DESC").Find(&leads).Error
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch pipeline")
		return
	}

	grouped := make(map[string][]models.Lead, len(models.LeadStatuses))
	for _, status := range models.LeadStatuses {
		grouped[status] = []models.Lead{}
	}
	for _, lead := range leads {
		grouped[lead.Status] = append(grouped[lead.Status], lead)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"statuses": models.LeadStatuses,
		"leads":    grouped,
	})
}

// GetPipelineData возвращает агрегаты воронки по статусам. Ответ в плоском
// формате для совместимости со старым фронтендом.
func (la *LeadsAPI) GetPipelineData(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	data, err := la.leads.PipelineData(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch pipeline data")
		return
	}

	c.JSON(http.StatusOK, data)
}
