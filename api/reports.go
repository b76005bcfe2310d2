package api

import (
	"net/http"
	"path/filepath"

	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReportsAPI обрабатывает построение и выгрузку отчетов
type ReportsAPI struct {
	db      *gorm.DB
	reports *services.ReportService
	access  *services.AccessService
}

// NewReportsAPI создает новый экземпляр ReportsAPI
func NewReportsAPI(db *gorm.DB, reports *services.ReportService, access *services.AccessService) *ReportsAPI {
	return &ReportsAPI{db: db, reports: reports, access: access}
}

// RegisterRoutes регистрирует маршруты отчетов
func (ra *ReportsAPI) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("", ra.GetReport)
		reports.GET("/export", ra.ExportReport)
	}
}

func (ra *ReportsAPI) reportParams(c *gin.Context) services.ReportParams {
	return services.ReportParams{
		Type:     c.DefaultQuery("type", services.ReportTypeLeads),
		Status:   c.Query("status"),
		Format:   c.DefaultQuery("format", services.ReportFormatCSV),
		DateFrom: parseDateQuery(c, "date_from"),
		DateTo:   parseDateQuery(c, "date_to"),
	}
}

// GetReport возвращает данные отчета по типу
func (ra *ReportsAPI) GetReport(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ra.access.CanViewReports(user) {
		respondError(c, http.StatusForbidden, "You do not have permission to view reports")
		return
	}

	params := ra.reportParams(c)
	data, err := ra.reports.GetReportData(user, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"type":    params.Type,
		"headers": data.Headers,
		"rows":    data.Rows,
		"summary": data.Summary,
	})
}

// ExportReport формирует файл отчета и отдает его на скачивание
func (ra *ReportsAPI) ExportReport(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ra.access.CanViewReports(user) {
		respondError(c, http.StatusForbidden, "You do not have permission to view reports")
		return
	}

	params := ra.reportParams(c)
	filePath, err := ra.reports.ExportReport(user, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(filePath))
	c.File(filePath)
}
