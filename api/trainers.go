package api

import (
	"errors"
	"net/http"
	"time"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TrainersAPI обрабатывает тренеров и расписание занятий
type TrainersAPI struct {
	db     *gorm.DB
	access *services.AccessService
}

// NewTrainersAPI создает новый экземпляр TrainersAPI
func NewTrainersAPI(db *gorm.DB, access *services.AccessService) *TrainersAPI {
	return &TrainersAPI{db: db, access: access}
}

// RegisterRoutes регистрирует маршруты тренеров и расписаний
func (ta *TrainersAPI) RegisterRoutes(router *gin.RouterGroup) {
	trainers := router.Group("/trainers")
	{
		trainers.GET("", ta.GetTrainers)
		trainers.POST("", ta.CreateTrainer)
		trainers.GET("/:id", ta.GetTrainer)
		trainers.PUT("/:id", ta.UpdateTrainer)
		trainers.DELETE("/:id", ta.DeleteTrainer)
	}

	schedules := router.Group("/schedules")
	{
		schedules.GET("", ta.GetSchedules)
		schedules.POST("", ta.CreateSchedule)
		schedules.PUT("/:id", ta.UpdateSchedule)
		schedules.POST("/:id/cancel", ta.CancelSchedule)
		schedules.POST("/:id/students", ta.AddScheduleStudent)
	}
}

// TrainerRequest представляет запрос на создание или обновление тренера
type TrainerRequest struct {
	Name           string `json:"name" binding:"required,max=100"`
	Phone          string `json:"phone" binding:"required,max=20"`
	Email          string `json:"email" binding:"required,email"`
	Specialization string `json:"specialization" binding:"max=200"`
	IsActive       *bool  `json:"is_active"`
	CourseIDs      []uint `json:"course_ids"`
}

// GetTrainers возвращает список тренеров с их курсами
func (ta *TrainersAPI) GetTrainers(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := ta.db.Model(&models.Trainer{}).Preload("TrainerCourses.Course")

	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count trainers")
		return
	}

	var trainers []models.Trainer
	if err := query.Order("name").Offset(p.Offset).Limit(p.Limit).Find(&trainers).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch trainers")
		return
	}

	c.JSON(http.StatusOK, listResponse(trainers, total, p))
}

// GetTrainer возвращает тренера с курсами и ближайшими занятиями
func (ta *TrainersAPI) GetTrainer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var trainer models.Trainer
	err := ta.db.Preload("TrainerCourses.Course").
		Preload("ClassSchedules", func(db *gorm.DB) *gorm.DB {
			return db.Where("class_date >= ? AND is_cancelled = ?", time.Now().AddDate(0, 0, -1), false).
				Order("class_date, start_time")
		}).
		First(&trainer, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Trainer not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch trainer")
		return
	}

	respondSuccess(c, http.StatusOK, trainer)
}

// CreateTrainer создает тренера и привязывает его к курсам
func (ta *TrainersAPI) CreateTrainer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}

	var req TrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	trainer := models.Trainer{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Specialization: req.Specialization,
		IsActive:       isActive,
	}

	err := ta.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trainer).Error; err != nil {
			return err
		}
		for _, courseID := range req.CourseIDs {
			tc := models.TrainerCourse{TrainerID: trainer.ID, CourseID: courseID}
			if err := tx.Create(&tc).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Trainer with this email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create trainer")
		return
	}

	respondSuccess(c, http.StatusCreated, trainer)
}

// UpdateTrainer обновляет тренера. Список курсов заменяется целиком.
func (ta *TrainersAPI) UpdateTrainer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var trainer models.Trainer
	if err := ta.db.First(&trainer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Trainer not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch trainer")
		return
	}

	var req TrainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	err := ta.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":           req.Name,
			"phone":          req.Phone,
			"email":          req.Email,
			"specialization": req.Specialization,
		}
		if req.IsActive != nil {
			updates["is_active"] = *req.IsActive
		}
		if err := tx.Model(&trainer).Updates(updates).Error; err != nil {
			return err
		}

		if req.CourseIDs != nil {
			if err := tx.Where("trainer_id = ?", trainer.ID).Delete(&models.TrainerCourse{}).Error; err != nil {
				return err
			}
			for _, courseID := range req.CourseIDs {
				tc := models.TrainerCourse{TrainerID: trainer.ID, CourseID: courseID}
				if err := tx.Create(&tc).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Trainer with this email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update trainer")
		return
	}

	respondSuccess(c, http.StatusOK, trainer)
}

// DeleteTrainer удаляет тренера вместе с привязками к курсам
func (ta *TrainersAPI) DeleteTrainer(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := ta.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trainer_id = ?", id).Delete(&models.TrainerCourse{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Trainer{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Trainer not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to delete trainer")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Trainer deleted"})
}

// ScheduleRequest представляет запрос на создание или обновление занятия
type ScheduleRequest struct {
	TrainerID       uint      `json:"trainer_id" binding:"required"`
	CourseID        uint      `json:"course_id" binding:"required"`
	ClassDate       time.Time `json:"class_date" binding:"required"`
	StartTime       string    `json:"start_time" binding:"required,len=5"`
	DurationMinutes int       `json:"duration_minutes"`
	ClassType       string    `json:"class_type" binding:"max=20"`
	Location        string    `json:"location" binding:"max=100"`
	OnlineLink      string    `json:"online_link" binding:"max=500"`
	Notes           string    `json:"notes"`
}

// GetSchedules возвращает занятия за период
func (ta *TrainersAPI) GetSchedules(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	query := ta.db.Model(&models.ClassSchedule{}).
		Preload("Trainer").Preload("Course").Preload("ClassStudents.Student")

	if trainerID := c.Query("trainer_id"); trainerID != "" {
		query = query.Where("trainer_id = ?", trainerID)
	}
	if courseID := c.Query("course_id"); courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	if from := parseDateQuery(c, "date_from"); from != nil {
		query = query.Where("class_date >= ?", *from)
	}
	if to := parseDateQuery(c, "date_to"); to != nil {
		query = query.Where("class_date < ?", to.AddDate(0, 0, 1))
	}
	if c.Query("include_cancelled") != "true" {
		query = query.Where("is_cancelled = ?", false)
	}

	var schedules []models.ClassSchedule
	if err := query.Order("class_date, start_time").Find(&schedules).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch schedules")
		return
	}

	respondSuccess(c, http.StatusOK, schedules)
}

// CreateSchedule создает занятие. Тренер должен вести выбранный курс.
func (ta *TrainersAPI) CreateSchedule(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var tc models.TrainerCourse
	err := ta.db.Where("trainer_id = ? AND course_id = ?", req.TrainerID, req.CourseID).First(&tc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusBadRequest, "Trainer is not assigned to this course")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to check trainer courses")
		return
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	classType := req.ClassType
	if classType == "" {
		classType = "Regular"
	}

	schedule := models.ClassSchedule{
		TrainerID:       req.TrainerID,
		CourseID:        req.CourseID,
		ClassDate:       req.ClassDate,
		StartTime:       req.StartTime,
		DurationMinutes: duration,
		ClassType:       classType,
		Location:        req.Location,
		OnlineLink:      req.OnlineLink,
		Notes:           req.Notes,
	}

	if err := ta.db.Create(&schedule).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create schedule")
		return
	}

	respondSuccess(c, http.StatusCreated, schedule)
}

// UpdateSchedule обновляет занятие
func (ta *TrainersAPI) UpdateSchedule(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var schedule models.ClassSchedule
	if err := ta.db.First(&schedule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Schedule not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch schedule")
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{
		"trainer_id":  req.TrainerID,
		"course_id":   req.CourseID,
		"class_date":  req.ClassDate,
		"start_time":  req.StartTime,
		"class_type":  req.ClassType,
		"location":    req.Location,
		"online_link": req.OnlineLink,
		"notes":       req.Notes,
	}
	if req.DurationMinutes > 0 {
		updates["duration_minutes"] = req.DurationMinutes
	}

	if err := ta.db.Model(&schedule).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update schedule")
		return
	}

	respondSuccess(c, http.StatusOK, schedule)
}

// CancelSchedule отменяет занятие, не удаляя его из истории
func (ta *TrainersAPI) CancelSchedule(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ta.access.CanManageCourses(user) {
		respondError(c, http.StatusForbidden, "Course management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result := ta.db.Model(&models.ClassSchedule{}).Where("id = ?", id).
		Update("is_cancelled", true)
	if result.Error != nil {
		respondError(c, http.StatusInternalServerError, "Failed to cancel schedule")
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Schedule not found")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Schedule cancelled"})
}

// AddScheduleStudent записывает студента на занятие
func (ta *TrainersAPI) AddScheduleStudent(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		StudentID uint `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Student ID is required")
		return
	}

	var schedule models.ClassSchedule
	if err := ta.db.First(&schedule, id).Error; err != nil {
		respondError(c, http.StatusNotFound, "Schedule not found")
		return
	}
	var student models.Student
	if err := ta.db.First(&student, req.StudentID).Error; err != nil {
		respondError(c, http.StatusBadRequest, "Student not found")
		return
	}

	var existing models.ClassStudent
	err := ta.db.Where("class_schedule_id = ? AND student_id = ?", schedule.ID, student.ID).
		First(&existing).Error
	if err == nil {
		respondError(c, http.StatusConflict, "Student already added to this class")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, http.StatusInternalServerError, "Failed to check class students")
		return
	}

	cs := models.ClassStudent{ClassScheduleID: schedule.ID, StudentID: student.ID}
	if err := ta.db.Create(&cs).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to add student to class")
		return
	}

	respondSuccess(c, http.StatusCreated, cs)
}
