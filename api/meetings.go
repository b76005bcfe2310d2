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

// MeetingsAPI обрабатывает встречи с лидами и студентами
type MeetingsAPI struct {
	db     *gorm.DB
	access *services.AccessService
}

// NewMeetingsAPI создает новый экземпляр MeetingsAPI
func NewMeetingsAPI(db *gorm.DB, access *services.AccessService) *MeetingsAPI {
	return &MeetingsAPI{db: db, access: access}
}

// RegisterRoutes регистрирует маршруты встреч
func (ma *MeetingsAPI) RegisterRoutes(router *gin.RouterGroup) {
	meetings := router.Group("/meetings")
	{
		meetings.GET("", ma.GetMeetings)
		meetings.POST("", ma.CreateMeeting)
		meetings.GET("/:id", ma.GetMeeting)
		meetings.PUT("/:id", ma.UpdateMeeting)
		meetings.DELETE("/:id", ma.DeleteMeeting)
		meetings.POST("/:id/status", ma.UpdateMeetingStatus)
	}
}

// MeetingRequest представляет запрос на создание или обновление встречи
type MeetingRequest struct {
	LeadID        *uint     `json:"lead_id"`
	StudentID     *uint     `json:"student_id"`
	Title         string    `json:"title" binding:"required,max=200"`
	MeetingType   string    `json:"meeting_type" binding:"required,oneof=Online Offline"`
	MeetingDate   time.Time `json:"meeting_date" binding:"required"`
	Duration      int       `json:"duration"`
	MeetingLink   string    `json:"meeting_link" binding:"max=500"`
	Location      string    `json:"location" binding:"max=200"`
	Agenda        string    `json:"agenda"`
	Notes         string    `json:"notes"`
	EmailReminder bool      `json:"email_reminder"`
	SMSReminder   bool      `json:"sms_reminder"`
	ReminderTime  *int      `json:"reminder_time"`
}

// visibleMeetings ограничивает встречи по видимости лидов: пользователь без
// права просмотра всех лидов видит только встречи по своим лидам и встречи
// со студентами
func (ma *MeetingsAPI) visibleMeetings(user *models.User) *gorm.DB {
	query := ma.db.Model(&models.Meeting{})
	if ma.access.CanViewAllLeads(user) {
		return query
	}
	return query.
		Joins("LEFT JOIN leads ON leads.id = meetings.lead_id").
		Where("meetings.lead_id IS NULL OR leads.assigned_to_id = ? OR (leads.assigned_to_id IS NULL AND leads.created_by_id = ?)",
			user.ID, user.ID)
}

// GetMeetings возвращает список встреч с фильтрацией и пагинацией
func (ma *MeetingsAPI) GetMeetings(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	p := parsePagination(c)
	query := ma.visibleMeetings(user).Preload("Lead").Preload("Student")

	if status := c.Query("status"); status != "" {
		query = query.Where("meetings.status = ?", status)
	}
	if meetingType := c.Query("type"); meetingType != "" {
		query = query.Where("meetings.meeting_type = ?", meetingType)
	}
	if from := parseDateQuery(c, "date_from"); from != nil {
		query = query.Where("meetings.meeting_date >= ?", *from)
	}
	if to := parseDateQuery(c, "date_to"); to != nil {
		query = query.Where("meetings.meeting_date < ?", to.AddDate(0, 0, 1))
	}
	if c.Query("upcoming") == "true" {
		query = query.Where("meetings.meeting_date > ? AND meetings.status = ?",
			time.Now(), models.MeetingStatusScheduled)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count meetings")
		return
	}

	var meetings []models.Meeting
	if err := query.Order("meetings.meeting_date").Offset(p.Offset).Limit(p.Limit).Find(&meetings).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch meetings")
		return
	}

	c.JSON(http.StatusOK, listResponse(meetings, total, p))
}

// GetMeeting возвращает встречу по ID
func (ma *MeetingsAPI) GetMeeting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var meeting models.Meeting
	err := ma.db.Preload("Lead").Preload("Student").Preload("CreatedBy").First(&meeting, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Meeting not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch meeting")
		return
	}

	if meeting.Lead != nil && !ma.access.CanViewLead(user, meeting.Lead) {
		respondError(c, http.StatusForbidden, "You can only view meetings for leads assigned to you")
		return
	}

	respondSuccess(c, http.StatusOK, meeting)
}

// CreateMeeting создает встречу
func (ma *MeetingsAPI) CreateMeeting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if req.LeadID != nil {
		var lead models.Lead
		if err := ma.db.First(&lead, *req.LeadID).Error; err != nil {
			respondError(c, http.StatusBadRequest, "Lead not found")
			return
		}
		if !ma.access.CanEditLead(user, &lead) {
			respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
			return
		}
	}
	if req.StudentID != nil {
		var student models.Student
		if err := ma.db.First(&student, *req.StudentID).Error; err != nil {
			respondError(c, http.StatusBadRequest, "Student not found")
			return
		}
	}

	duration := req.Duration
	if duration <= 0 {
		duration = 60
	}

	meeting := models.Meeting{
		LeadID:        req.LeadID,
		StudentID:     req.StudentID,
		Title:         req.Title,
		MeetingType:   req.MeetingType,
		MeetingDate:   req.MeetingDate,
		Duration:      duration,
		Status:        models.MeetingStatusScheduled,
		MeetingLink:   req.MeetingLink,
		Location:      req.Location,
		Agenda:        req.Agenda,
		Notes:         req.Notes,
		EmailReminder: req.EmailReminder,
		SMSReminder:   req.SMSReminder,
		ReminderTime:  req.ReminderTime,
		CreatedByID:   &user.ID,
	}

	if err := ma.db.Create(&meeting).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to create meeting")
		return
	}

	respondSuccess(c, http.StatusCreated, meeting)
}

// UpdateMeeting обновляет данные встречи. Перенос даты сбрасывает флаг
// отправленного напоминания.
func (ma *MeetingsAPI) UpdateMeeting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var meeting models.Meeting
	if err := ma.db.Preload("Lead").First(&meeting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Meeting not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch meeting")
		return
	}

	if meeting.Lead != nil && !ma.access.CanEditLead(user, meeting.Lead) {
		respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
		return
	}

	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{
		"title":          req.Title,
		"meeting_type":   req.MeetingType,
		"meeting_date":   req.MeetingDate,
		"meeting_link":   req.MeetingLink,
		"location":       req.Location,
		"agenda":         req.Agenda,
		"notes":          req.Notes,
		"email_reminder": req.EmailReminder,
		"sms_reminder":   req.SMSReminder,
		"reminder_time":  req.ReminderTime,
	}
	if req.Duration > 0 {
		updates["duration"] = req.Duration
	}
	if !req.MeetingDate.Equal(meeting.MeetingDate) {
		updates["reminder_sent"] = false
	}

	if err := ma.db.Model(&meeting).Updates(updates).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update meeting")
		return
	}

	respondSuccess(c, http.StatusOK, meeting)
}

// UpdateMeetingStatus меняет статус встречи
func (ma *MeetingsAPI) UpdateMeetingStatus(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=Scheduled Completed Cancelled 'No Show'"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid status")
		return
	}

	var meeting models.Meeting
	if err := ma.db.Preload("Lead").First(&meeting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Meeting not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch meeting")
		return
	}

	if meeting.Lead != nil && !ma.access.CanEditLead(user, meeting.Lead) {
		respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
		return
	}

	if err := ma.db.Model(&meeting).Update("status", req.Status).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update meeting status")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Meeting status updated"})
}

// DeleteMeeting удаляет встречу
func (ma *MeetingsAPI) DeleteMeeting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var meeting models.Meeting
	if err := ma.db.Preload("Lead").First(&meeting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Meeting not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch meeting")
		return
	}

	if meeting.Lead != nil && !ma.access.CanEditLead(user, meeting.Lead) {
		respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
		return
	}

	if err := ma.db.Delete(&meeting).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete meeting")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Meeting deleted"})
}
