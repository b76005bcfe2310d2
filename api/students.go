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

// StudentsAPI обрабатывает зачисленных студентов, оплаты и посещаемость
type StudentsAPI struct {
	db *gorm.DB
}

// NewStudentsAPI создает новый экземпляр StudentsAPI
func NewStudentsAPI(db *gorm.DB) *StudentsAPI {
	return &StudentsAPI{db: db}
}

// RegisterRoutes регистрирует маршруты студентов
func (sa *StudentsAPI) RegisterRoutes(router *gin.RouterGroup) {
	students := router.Group("/students")
	{
		students.GET("", sa.GetStudents)
		students.POST("", sa.CreateStudent)
		students.GET("/:id", sa.GetStudent)
		students.PUT("/:id", sa.UpdateStudent)
		students.DELETE("/:id", sa.DeleteStudent)
		students.POST("/:id/payments", sa.RecordPayment)
		students.GET("/:id/attendance", sa.GetAttendance)
		students.POST("/:id/attendance", sa.RecordAttendance)
	}
}

// StudentRequest представляет запрос на создание или обновление студента
type StudentRequest struct {
	FirstName    string            `json:"first_name" binding:"required,max=50"`
	LastName     string            `json:"last_name" binding:"max=50"`
	CountryCode  string            `json:"country_code" binding:"max=5"`
	Phone        string            `json:"phone" binding:"required,max=20"`
	Email        string            `json:"email" binding:"omitempty,email"`
	CourseID     uint              `json:"course_id" binding:"required"`
	ScheduleDays models.StringList `json:"schedule_days"`
	ScheduleTime string            `json:"schedule_time" binding:"max=20"`
	Status       string            `json:"status" binding:"omitempty,oneof=Active Completed Dropped Suspended"`
	TotalFee     *decimal.Decimal  `json:"total_fee"`
	PaymentPlan  string            `json:"payment_plan" binding:"max=50"`
	BatchName    string            `json:"batch_name" binding:"max=100"`
	StartDate    *time.Time        `json:"start_date"`
	EndDate      *time.Time        `json:"end_date"`
}

// GetStudents возвращает список студентов с фильтрацией и пагинацией
func (sa *StudentsAPI) GetStudents(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := sa.db.Model(&models.Student{}).Preload("Course")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if courseID := c.Query("course_id"); courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	if batch := c.Query("batch"); batch != "" {
		query = query.Where("batch_name = ?", batch)
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR phone LIKE ?",
			pattern, pattern, "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count students")
		return
	}

	var students []models.Student
	if err := query.Order("created_at DESC").Offset(p.Offset).Limit(p.Limit).Find(&students).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch students")
		return
	}

	c.JSON(http.StatusOK, listResponse(students, total, p))
}

// GetStudent возвращает студента со связями
func (sa *StudentsAPI) GetStudent(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var student models.Student
	err := sa.db.Preload("Course").Preload("Lead").
		Preload("AttendanceRecords", func(db *gorm.DB) *gorm.DB {
			return db.Order("attendance_date DESC")
		}).
		First(&student, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Student not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch student")
		return
	}

	respondSuccess(c, http.StatusOK, student)
}

// CreateStudent создает студента напрямую, без конвертации лида
func (sa *StudentsAPI) CreateStudent(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var course models.Course
	if err := sa.db.First(&course, req.CourseID).Error; err != nil {
		respondError(c, http.StatusBadRequest, "Course not found")
		return
	}

	totalFee := course.Price
	if req.TotalFee != nil {
		totalFee = *req.TotalFee
	}
	status := req.Status
	if status == "" {
		status = models.StudentStatusActive
	}
	countryCode := req.CountryCode
	if countryCode == "" {
		countryCode = "+971"
	}

	student := models.Student{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		CountryCode:    countryCode,
		Phone:          req.Phone,
		Email:          req.Email,
		CourseID:       req.CourseID,
		ScheduleDays:   req.ScheduleDays,
		ScheduleTime:   req.ScheduleTime,
		EnrollmentDate: time.Now(),
		Status:         status,
		TotalFee:       totalFee,
		PaymentPlan:    req.PaymentPlan,
		BatchName:      req.BatchName,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}

	if err := sa.db.Create(&student).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create student")
		return
	}

	respondSuccess(c, http.StatusCreated, student)
}

// UpdateStudent обновляет данные студента
func (sa *StudentsAPI) UpdateStudent(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var student models.Student
	if err := sa.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Student not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch student")
		return
	}

	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{
		"first_name":    req.FirstName,
		"last_name":     req.LastName,
		"phone":         req.Phone,
		"email":         req.Email,
		"course_id":     req.CourseID,
		"schedule_days": req.ScheduleDays,
		"schedule_time": req.ScheduleTime,
		"payment_plan":  req.PaymentPlan,
		"batch_name":    req.BatchName,
		"start_date":    req.StartDate,
		"end_date":      req.EndDate,
	}
	if req.CountryCode != "" {
		updates["country_code"] = req.CountryCode
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.TotalFee != nil {
		updates["total_fee"] = *req.TotalFee
	}

	if err := sa.db.Model(&student).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update student")
		return
	}

	respondSuccess(c, http.StatusOK, student)
}

// DeleteStudent удаляет студента
func (sa *StudentsAPI) DeleteStudent(c *gin.Context) {
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

	result := sa.db.Delete(&models.Student{}, id)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete student")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Student not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Student deleted"})
}

// RecordPayment фиксирует оплату студента. Сумма добавляется к fee_paid
// и не может превысить total_fee.
func (sa *StudentsAPI) RecordPayment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Amount is required")
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		respondError(c, http.StatusBadRequest, "Amount must be positive")
		return
	}

	var student models.Student
	if err := sa.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Student not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch student")
		return
	}

	newPaid := student.FeePaid.Add(req.Amount)
	if newPaid.GreaterThan(student.TotalFee) {
		respondError(c, http.StatusBadRequest, "Payment exceeds outstanding fee")
		return
	}

	if err := sa.db.Model(&student).Update("fee_paid", newPaid).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	student.FeePaid = newPaid
	respondSuccess(c, http.StatusOK, gin.H{
		"student":     student,
		"outstanding": student.OutstandingFee(),
	})
}

// GetAttendance возвращает посещаемость студента
func (sa *StudentsAPI) GetAttendance(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var records []models.AttendanceRecord
	if err := sa.db.Where("student_id = ?", id).
		Order("attendance_date DESC").Find(&records).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch attendance")
		return
	}

	respondSuccess(c, http.StatusOK, records)
}

// RecordAttendance добавляет отметку посещаемости
func (sa *StudentsAPI) RecordAttendance(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		AttendanceDate time.Time `json:"attendance_date" binding:"required"`
		Status         string    `json:"status" binding:"required,oneof=Present Absent Late"`
		Notes          string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var student models.Student
	if err := sa.db.First(&student, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Student not found")
		return
	}

	record := models.AttendanceRecord{
		StudentID:      student.ID,
		AttendanceDate: req.AttendanceDate,
		Status:         req.Status,
		Notes:          req.Notes,
	}
	if err := sa.db.Create(&record).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to record attendance")
		return
	}

	respondSuccess(c, http.StatusCreated, record)
}
