package api

import (
	"net/http"
	"time"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardAPI собирает сводку для главного экрана
type DashboardAPI struct {
	db     *gorm.DB
	leads  *services.LeadService
	access *services.AccessService
}

// NewDashboardAPI создает новый экземпляр DashboardAPI
func NewDashboardAPI(db *gorm.DB, leads *services.LeadService, access *services.AccessService) *DashboardAPI {
	return &DashboardAPI{db: db, leads: leads, access: access}
}

// RegisterRoutes регистрирует маршруты дашборда
func (da *DashboardAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", da.GetDashboard)
}

// GetDashboard возвращает сводку: воронка, follow-up на сегодня,
// ближайшие встречи, выручка и последняя активность. Консультант без
// права просмотра всех лидов получает цифры только по своим.
func (da *DashboardAPI) GetDashboard(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	pipeline, err := da.leads.PipelineData(user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch pipeline data")
		return
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekEnd := dayStart.AddDate(0, 0, 7)

	// Follow-up на сегодня (просроченные тоже попадают)
	var followupsDue int64
	da.access.VisibleLeads(da.db.Model(&models.Lead{}), user).
		Where("next_followup_date < ?", dayEnd).
		Where("status NOT IN ?", []string{models.LeadStatusConverted, models.LeadStatusLost}).
		Count(&followupsDue)

	var newLeadsToday int64
	da.access.VisibleLeads(da.db.Model(&models.Lead{}), user).
		Where("created_at >= ?", dayStart).
		Count(&newLeadsToday)

	// Встречи на ближайшую неделю
	meetingsQuery := da.db.Model(&models.Meeting{}).
		Where("status = ?", models.MeetingStatusScheduled).
		Where("meeting_date >= ? AND meeting_date < ?", now, weekEnd)
	if !da.access.CanViewAllLeads(user) {
		meetingsQuery = meetingsQuery.
			Joins("LEFT JOIN leads ON leads.id = meetings.lead_id").
			Where("meetings.lead_id IS NULL OR leads.assigned_to_id = ? OR (leads.assigned_to_id IS NULL AND leads.created_by_id = ?)",
				user.ID, user.ID)
	}
	var upcomingMeetings []models.Meeting
	meetingsQuery.Order("meeting_date").Limit(10).Find(&upcomingMeetings)

	// Выручка по студентам
	var revenue struct {
		TotalPaid decimal.Decimal
		TotalFee  decimal.Decimal
		Students  int64
	}
	da.db.Model(&models.Student{}).
		Select("COALESCE(SUM(fee_paid), 0) AS total_paid, COALESCE(SUM(total_fee), 0) AS total_fee, COUNT(*) AS students").
		Scan(&revenue)
	var activeStudents int64
	da.db.Model(&models.Student{}).
		Where("status = ?", models.StudentStatusActive).
		Count(&activeStudents)

	// Последние взаимодействия по видимым лидам
	activityQuery := da.db.Model(&models.LeadInteraction{}).
		Joins("JOIN leads ON leads.id = lead_interactions.lead_id")
	if !da.access.CanViewAllLeads(user) {
		activityQuery = activityQuery.
			Where("leads.assigned_to_id = ? OR (leads.assigned_to_id IS NULL AND leads.created_by_id = ?)",
				user.ID, user.ID)
	}
	var recentActivity []models.LeadInteraction
	activityQuery.
		Select("lead_interactions.*").
		Order("lead_interactions.interaction_date DESC, lead_interactions.id DESC").
		Limit(10).
		Find(&recentActivity)

	respondSuccess(c, http.StatusOK, gin.H{
		"pipeline":        pipeline,
		"followups_due":   followupsDue,
		"new_leads_today": newLeadsToday,
		"meetings":        upcomingMeetings,
		"revenue": gin.H{
			"total_paid":      revenue.TotalPaid,
			"total_fee":       revenue.TotalFee,
			"outstanding":     revenue.TotalFee.Sub(revenue.TotalPaid),
			"students":        revenue.Students,
			"active_students": activeStudents,
		},
		"recent_activity": recentActivity,
	})
}
