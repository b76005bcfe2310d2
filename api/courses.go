package api

import (
	"errors"
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CoursesAPI обрабатывает каталог курсов
type CoursesAPI struct {
	db     *gorm.DB
	access *services.AccessService
}

// NewCoursesAPI создает новый экземпляр CoursesAPI
func NewCoursesAPI(db *gorm.DB, access *services.AccessService) *CoursesAPI {
	return &CoursesAPI{db: db, access: access}
}

// RegisterRoutes регистрирует маршруты курсов
func (ca *CoursesAPI) RegisterRoutes(router *gin.RouterGroup) {
	courses := router.Group("/courses")
	{
		courses.GET("", ca.GetCourses)
		courses.POST("", ca.CreateCourse)
		courses.GET("/:id", ca.GetCourse)
		courses.PUT("/:id", ca.UpdateCourse)
		courses.DELETE("/:id", ca.DeleteCourse)
	}
}

// CourseRequest представляет запрос на создание или обновление курса
type CourseRequest struct {
	Name         string            `json:"name" binding:"required,max=200"`
	Description  string            `json:"description"`
	Price        decimal.Decimal   `json:"price" binding:"required"`
	Duration     string            `json:"duration" binding:"max=50"`
	DurationType string            `json:"duration_type" binding:"omitempty,oneof=days weeks months"`
	Category     string            `json:"category" binding:"max=100"`
	MaxStudents  int               `json:"max_students"`
	KeyPoints    models.StringList `json:"key_points"`
	IsActive     *bool             `json:"is_active"`
}

// GetCourses возвращает список курсов с фильтрацией и пагинацией
func (ca *CoursesAPI) GetCourses(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := ca.db.Model(&models.Course{})

	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count courses")
		return
	}

	var courses []models.Course
	if err := query.Order("name").Offset(p.Offset).Limit(p.Limit).Find(&courses).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch courses")
		return
	}

	c.JSON(http.StatusOK, listResponse(courses, total, p))
}

// GetCourse возвращает курс по ID
func (ca *CoursesAPI) GetCourse(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var course models.Course
	if err := ca.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Course not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch course")
		return
	}

	respondSuccess(c, http.StatusOK, course)
}

// CreateCourse создает новый курс. Slug генерируется из названия.
func (ca *CoursesAPI) CreateCourse(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ca.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}

	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	maxStudents := req.MaxStudents
	if maxStudents <= 0 {
		maxStudents = 20
	}

	course := models.Course{
		Name:         req.Name,
		Slug:         models.GenerateSlug(req.Name),
		Description:  req.Description,
		Price:        req.Price,
		Duration:     req.Duration,
		DurationType: req.DurationType,
		Category:     req.Category,
		MaxStudents:  maxStudents,
		KeyPoints:    req.KeyPoints,
		IsActive:     isActive,
	}

	if err := ca.db.Create(&course).Error; err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Course with this name already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create course")
		return
	}

	respondSuccess(c, http.StatusCreated, course)
}

// UpdateCourse обновляет курс. Смена названия пересоздает slug.
func (ca *CoursesAPI) UpdateCourse(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ca.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var course models.Course
	if err := ca.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Course not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch course")
		return
	}

	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{
		"name":          req.Name,
		"slug":          models.GenerateSlug(req.Name),
		"description":   req.Description,
		"price":         req.Price,
		"duration":      req.Duration,
		"duration_type": req.DurationType,
		"category":      req.Category,
		"key_points":    req.KeyPoints,
	}
	if req.MaxStudents > 0 {
		updates["max_students"] = req.MaxStudents
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := ca.db.Model(&course).Updates(updates).Error; err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Course with this name already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update course")
		return
	}

	respondSuccess(c, http.StatusOK, course)
}

// DeleteCourse удаляет курс, если на него никто не записан
func (ca *CoursesAPI) DeleteCourse(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ca.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var studentCount int64
	if err := ca.db.Model(&models.Student{}).Where("course_id = ?", id).Count(&studentCount).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to check course usage")
		return
	}
	if studentCount > 0 {
		respondError(c, http.StatusBadRequest, "Cannot delete course with enrolled students")
		return
	}

	result := ca.db.Delete(&models.Course{}, id)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete course")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Course not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Course deleted"})
}
