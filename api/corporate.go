package api

import (
	"errors"
	"net/http"
	"time"

	"backend_crm/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы корпоративных сделок в порядке продвижения
var corporateStatuses = []string{
	models.CorporateStatusInquiry,
	models.CorporateStatusProposal,
	models.CorporateStatusNegotiation,
	models.CorporateStatusConfirmed,
	models.CorporateStatusCompleted,
}

func isValidCorporateStatus(status string) bool {
	for _, s := range corporateStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CorporateAPI обрабатывает корпоративные B2B-сделки
type CorporateAPI struct {
	db *gorm.DB
}

// NewCorporateAPI создает новый экземпляр CorporateAPI
func NewCorporateAPI(db *gorm.DB) *CorporateAPI {
	return &CorporateAPI{db: db}
}

// RegisterRoutes регистрирует маршруты корпоративных сделок
func (ca *CorporateAPI) RegisterRoutes(router *gin.RouterGroup) {
	corporate := router.Group("/corporate")
	{
		corporate.GET("", ca.GetDeals)
		corporate.POST("", ca.CreateDeal)
		corporate.GET("/:id", ca.GetDeal)
		corporate.PUT("/:id", ca.UpdateDeal)
		corporate.DELETE("/:id", ca.DeleteDeal)
		corporate.POST("/:id/status", ca.UpdateDealStatus)
	}
}

// CorporateDealRequest представляет запрос на создание или обновление сделки
type CorporateDealRequest struct {
	CompanyName              string           `json:"company_name" binding:"required,max=200"`
	Location                 string           `json:"location" binding:"required,max=200"`
	Industry                 string           `json:"industry" binding:"max=100"`
	CompanySize              string           `json:"company_size" binding:"max=50"`
	ContactPersonName        string           `json:"contact_person_name" binding:"required,max=100"`
	ContactPersonEmail       string           `json:"contact_person_email" binding:"required,email"`
	ContactPersonCountryCode string           `json:"contact_person_country_code" binding:"max=5"`
	ContactPersonPhone       string           `json:"contact_person_phone" binding:"required,max=20"`
	CourseIDs                models.IDList    `json:"course_ids"`
	TraineeCount             int              `json:"trainee_count" binding:"required,min=1"`
	TrainingMode             string           `json:"training_mode" binding:"omitempty,oneof=Onsite Online Hybrid"`
	QuotationAmount          *decimal.Decimal `json:"quotation_amount"`
	DealValue                *decimal.Decimal `json:"deal_value"`
	ExpectedStartDate        *time.Time       `json:"expected_start_date"`
	BudgetRange              string           `json:"budget_range" binding:"max=50"`
	SpecialRequirements      string           `json:"special_requirements"`
	Status                   string           `json:"status"`
	StartDate                *time.Time       `json:"start_date"`
	EndDate                  *time.Time       `json:"end_date"`
}

// GetDeals возвращает список сделок с фильтрацией и пагинацией
func (ca *CorporateAPI) GetDeals(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := ca.db.Model(&models.CorporateTraining{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if mode := c.Query("training_mode"); mode != "" {
		query = query.Where("training_mode = ?", mode)
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(company_name) LIKE ? OR LOWER(contact_person_name) LIKE ?",
			pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count corporate deals")
		return
	}

	var deals []models.CorporateTraining
	if err := query.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&deals).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch corporate deals")
		return
	}

	c.JSON(http.StatusOK, listResponse(deals, total, p))
}

// GetDeal возвращает сделку вместе с запрошенными курсами
func (ca *CorporateAPI) GetDeal(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var deal models.CorporateTraining
	if err := ca.db.Preload("CreatedBy").First(&deal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Corporate deal not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch corporate deal")
		return
	}

	var courses []models.Course
	if len(deal.CourseIDs) > 0 {
		if err := ca.db.Where("id IN ?", []uint(deal.CourseIDs)).Find(&courses).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to fetch deal courses")
			return
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"deal":    deal,
		"courses": courses,
	})
}

// CreateDeal создает корпоративную сделку
func (ca *CorporateAPI) CreateDeal(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req CorporateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	status := req.Status
	if status == "" {
		status = models.CorporateStatusInquiry
	}
	if !isValidCorporateStatus(status) {
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	countryCode := req.ContactPersonCountryCode
	if countryCode == "" {
		countryCode = "+971"
	}

	deal := models.CorporateTraining{
		CompanyName:              req.CompanyName,
		Location:                 req.Location,
		Industry:                 req.Industry,
		CompanySize:              req.CompanySize,
		ContactPersonName:        req.ContactPersonName,
		ContactPersonEmail:       req.ContactPersonEmail,
		ContactPersonCountryCode: countryCode,
		ContactPersonPhone:       req.ContactPersonPhone,
		CourseIDs:                req.CourseIDs,
		TraineeCount:             req.TraineeCount,
		TrainingMode:             req.TrainingMode,
		ExpectedStartDate:        req.ExpectedStartDate,
		BudgetRange:              req.BudgetRange,
		SpecialRequirements:      req.SpecialRequirements,
		Status:                   status,
		StartDate:                req.StartDate,
		EndDate:                  req.EndDate,
		CreatedByID:              &user.ID,
	}
	if req.QuotationAmount != nil {
		deal.QuotationAmount = *req.QuotationAmount
	}
	if req.DealValue != nil {
		deal.DealValue = *req.DealValue
	}

	if err := ca.db.Create(&deal).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create corporate deal")
		return
	}

	respondSuccess(c, http.StatusCreated, deal)
}

// UpdateDeal обновляет сделку
func (ca *CorporateAPI) UpdateDeal(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var deal models.CorporateTraining
	if err := ca.db.First(&deal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Corporate deal not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch corporate deal")
		return
	}

	var req CorporateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if req.Status != "" && !isValidCorporateStatus(req.Status) {
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	updates := map[string]interface{}{
		"company_name":         req.CompanyName,
		"location":             req.Location,
		"industry":             req.Industry,
		"company_size":         req.CompanySize,
		"contact_person_name":  req.ContactPersonName,
		"contact_person_email": req.ContactPersonEmail,
		"contact_person_phone": req.ContactPersonPhone,
		"course_ids":           req.CourseIDs,
		"trainee_count":        req.TraineeCount,
		"training_mode":        req.TrainingMode,
		"expected_start_date":  req.ExpectedStartDate,
		"budget_range":         req.BudgetRange,
		"special_requirements": req.SpecialRequirements,
		"start_date":           req.StartDate,
		"end_date":             req.EndDate,
	}
	if req.ContactPersonCountryCode != "" {
		updates["contact_person_country_code"] = req.ContactPersonCountryCode
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.QuotationAmount != nil {
		updates["quotation_amount"] = *req.QuotationAmount
	}
	if req.DealValue != nil {
		updates["deal_value"] = *req.DealValue
	}

	if err := ca.db.Model(&deal).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update corporate deal")
		return
	}

	respondSuccess(c, http.StatusOK, deal)
}

// UpdateDealStatus меняет статус сделки
func (ca *CorporateAPI) UpdateDealStatus(c *gin.Context) {
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
		respondError(c, http.StatusBadRequest, "Status is required")
		return
	}
	if !isValidCorporateStatus(req.Status) {
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	result := ca.db.Model(&models.CorporateTraining{}).Where("id = ?", id).
		Update("status", req.Status)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update deal status")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Corporate deal not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Deal status updated"})
}

// DeleteDeal удаляет сделку
func (ca *CorporateAPI) DeleteDeal(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !user.IsAdmin() {
		respondError(c, http.StatusForbidden, "Admin access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result := ca.db.Delete(&models.CorporateTraining{}, id)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete corporate deal")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Corporate deal not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Corporate deal deleted"})
}
