package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"backend_crm/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Типы отчетов
const (
	ReportTypeLeads       = "leads"
	ReportTypeConversion  = "conversion"
	ReportTypeRevenue     = "revenue"
	ReportTypeConsultants = "consultants"
	ReportTypeStudents    = "students"
)

// Форматы выгрузки
const (
	ReportFormatCSV   = "csv"
	ReportFormatExcel = "excel"
	ReportFormatPDF   = "pdf"
)

// Ошибки параметров отчета
var (
	ErrUnknownReportType   = errors.New("unsupported report type")
	ErrUnknownReportFormat = errors.New("unsupported report format")
)

// ReportService строит отчеты по воронке, выручке и работе консультантов.
// Данные отчетов подчиняются правилам видимости: консультант без права
// просмотра всех лидов получает отчет только по своим.
type ReportService struct {
	db     *gorm.DB
	access *AccessService
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB, access *AccessService) *ReportService {
	return &ReportService{db: db, access: access}
}

// ReportData представляет данные для отчета
type ReportData struct {
	Headers []string                 `json:"headers"`
	Rows    []map[string]interface{} `json:"rows"`
	Summary map[string]interface{}   `json:"summary,omitempty"`
}

// ReportParams представляет параметры генерации отчета
type ReportParams struct {
	Type     string     `json:"type"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Status   string     `json:"status,omitempty"`
	Format   string     `json:"format"`
}

// GetReportData собирает данные отчета в зависимости от типа
func (rs *ReportService) GetReportData(user *models.User, params ReportParams) (*ReportData, error) {
	switch params.Type {
	case ReportTypeLeads:
		return rs.getLeadsReportData(user, params)
	case ReportTypeConversion:
		return rs.getConversionReportData(user, params)
	case ReportTypeRevenue:
		return rs.getRevenueReportData(params)
	case ReportTypeConsultants:
		return rs.getConsultantsReportData(params)
	case ReportTypeStudents:
		return rs.getStudentsReportData(params)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownReportType, params.Type)
	}
}

// getLeadsReportData строит список лидов за период со сводкой по статусам
func (rs *ReportService) getLeadsReportData(user *models.User, params ReportParams) (*ReportData, error) {
	query := rs.access.VisibleLeads(rs.db, user).
		Preload("CourseInterest").Preload("AssignedTo")
	query = applyDateRange(query, "leads.created_at", params.DateFrom, params.DateTo)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("failed to get leads: %w", err)
	}

	data := &ReportData{
		Headers: []string{"ID", "Name", "Phone", "Email", "Source", "Status", "Course", "Quoted Amount", "Assigned To", "Created At"},
		Rows:    make([]map[string]interface{}, 0, len(leads)),
	}

	statusCounts := make(map[string]int)
	totalQuoted := decimal.Zero
	for _, lead := range leads {
		courseName := ""
		if lead.CourseInterest != nil {
			courseName = lead.CourseInterest.Name
		}
		assignedTo := ""
		if lead.AssignedTo != nil {
			assignedTo = lead.AssignedTo.Username
		}

		data.Rows = append(data.Rows, map[string]interface{}{
			"ID":            lead.ID,
			"Name":          lead.Name,
			"Phone":         lead.Phone,
			"Email":         lead.Email,
			"Source":        lead.LeadSource,
			"Status":        lead.Status,
			"Course":        courseName,
			"Quoted Amount": lead.QuotedAmount.StringFixed(2),
			"Assigned To":   assignedTo,
			"Created At":    lead.CreatedAt.Format("2006-01-02 15:04"),
		})

		statusCounts[lead.Status]++
		totalQuoted = totalQuoted.Add(lead.QuotedAmount)
	}

	data.Summary = map[string]interface{}{
		"total_leads":  len(leads),
		"by_status":    statusCounts,
		"total_quoted": totalQuoted.StringFixed(2),
	}

	return data, nil
}

// getConversionReportData строит конверсию по источникам лидов
func (rs *ReportService) getConversionReportData(user *models.User, params ReportParams) (*ReportData, error) {
	type row struct {
		LeadSource string
		Total      int64
		Converted  int64
		Lost       int64
	}

	query := rs.access.VisibleLeads(rs.db, user).
		Select("lead_source, COUNT(id) AS total, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS converted, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS lost",
			models.LeadStatusConverted, models.LeadStatusLost).
		Group("lead_source")
	query = applyDateRange(query, "leads.created_at", params.DateFrom, params.DateTo)

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversion data: %w", err)
	}

	data := &ReportData{
		Headers: []string{"Source", "Total Leads", "Converted", "Lost", "Conversion Rate"},
		Rows:    make([]map[string]interface{}, 0, len(rows)),
	}

	var totalLeads, totalConverted int64
	for _, r := range rows {
		source := r.LeadSource
		if source == "" {
			source = "Unknown"
		}
		rate := 0.0
		if r.Total > 0 {
			rate = float64(r.Converted) / float64(r.Total) * 100
		}

		data.Rows = append(data.Rows, map[string]interface{}{
			"Source":          source,
			"Total Leads":     r.Total,
			"Converted":       r.Converted,
			"Lost":            r.Lost,
			"Conversion Rate": fmt.Sprintf("%.1f%%", rate),
		})

		totalLeads += r.Total
		totalConverted += r.Converted
	}

	overallRate := 0.0
	if totalLeads > 0 {
		overallRate = float64(totalConverted) / float64(totalLeads) * 100
	}
	data.Summary = map[string]interface{}{
		"total_leads":     totalLeads,
		"total_converted": totalConverted,
		"conversion_rate": fmt.Sprintf("%.1f%%", overallRate),
	}

	return data, nil
}

// getRevenueReportData строит выручку по курсам на основе оплат студентов
func (rs *ReportService) getRevenueReportData(params ReportParams) (*ReportData, error) {
	type row struct {
		CourseName string
		Students   int64
		FeePaid    decimal.Decimal
		TotalFee   decimal.Decimal
	}

	query := rs.db.Model(&models.Student{}).
		Select("courses.name AS course_name, COUNT(students.id) AS students, " +
			"COALESCE(SUM(students.fee_paid), 0) AS fee_paid, " +
			"COALESCE(SUM(students.total_fee), 0) AS total_fee").
		Joins("JOIN courses ON courses.id = students.course_id").
		Group("courses.name")
	query = applyDateRange(query, "students.enrollment_date", params.DateFrom, params.DateTo)

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get revenue data: %w", err)
	}

	data := &ReportData{
		Headers: []string{"Course", "Students", "Collected", "Total Fees", "Outstanding"},
		Rows:    make([]map[string]interface{}, 0, len(rows)),
	}

	totalCollected := decimal.Zero
	totalOutstanding := decimal.Zero
	for _, r := range rows {
		outstanding := r.TotalFee.Sub(r.FeePaid)
		data.Rows = append(data.Rows, map[string]interface{}{
			"Course":      r.CourseName,
			"Students":    r.Students,
			"Collected":   r.FeePaid.StringFixed(2),
			"Total Fees":  r.TotalFee.StringFixed(2),
			"Outstanding": outstanding.StringFixed(2),
		})
		totalCollected = totalCollected.Add(r.FeePaid)
		totalOutstanding = totalOutstanding.Add(outstanding)
	}

	data.Summary = map[string]interface{}{
		"total_collected":   totalCollected.StringFixed(2),
		"total_outstanding": totalOutstanding.StringFixed(2),
	}

	return data, nil
}

// getConsultantsReportData строит показатели работы консультантов
func (rs *ReportService) getConsultantsReportData(params ReportParams) (*ReportData, error) {
	var users []models.User
	if err := rs.db.Where("is_active = ?", true).Order("username").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	data := &ReportData{
		Headers: []string{"Consultant", "Role", "Leads", "Converted", "Conversion Rate", "Quoted Amount"},
		Rows:    make([]map[string]interface{}, 0, len(users)),
	}

	for _, user := range users {
		type row struct {
			Total     int64
			Converted int64
			Quoted    decimal.Decimal
		}
		var r row
		query := rs.db.Model(&models.Lead{}).
			Select("COUNT(id) AS total, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS converted, "+
				"COALESCE(SUM(quoted_amount), 0) AS quoted", models.LeadStatusConverted).
			Where("assigned_to_id = ? OR (assigned_to_id IS NULL AND created_by_id = ?)", user.ID, user.ID)
		query = applyDateRange(query, "created_at", params.DateFrom, params.DateTo)
		if err := query.Scan(&r).Error; err != nil {
			return nil, fmt.Errorf("failed to get consultant stats: %w", err)
		}

		rate := 0.0
		if r.Total > 0 {
			rate = float64(r.Converted) / float64(r.Total) * 100
		}

		data.Rows = append(data.Rows, map[string]interface{}{
			"Consultant":      user.Username,
			"Role":            user.Role,
			"Leads":           r.Total,
			"Converted":       r.Converted,
			"Conversion Rate": fmt.Sprintf("%.1f%%", rate),
			"Quoted Amount":   r.Quoted.StringFixed(2),
		})
	}

	return data, nil
}

// getStudentsReportData строит список студентов с оплатами
func (rs *ReportService) getStudentsReportData(params ReportParams) (*ReportData, error) {
	query := rs.db.Preload("Course")
	query = applyDateRange(query, "enrollment_date", params.DateFrom, params.DateTo)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var students []models.Student
	if err := query.Order("enrollment_date DESC").Find(&students).Error; err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}

	data := &ReportData{
		Headers: []string{"ID", "Name", "Phone", "Course", "Status", "Enrolled", "Fee Paid", "Total Fee", "Outstanding"},
		Rows:    make([]map[string]interface{}, 0, len(students)),
	}

	totalOutstanding := decimal.Zero
	for _, student := range students {
		courseName := ""
		if student.Course != nil {
			courseName = student.Course.Name
		}
		outstanding := student.OutstandingFee()

		data.Rows = append(data.Rows, map[string]interface{}{
			"ID":          student.ID,
			"Name":        student.FullName(),
			"Phone":       student.Phone,
			"Course":      courseName,
			"Status":      student.Status,
			"Enrolled":    student.EnrollmentDate.Format("2006-01-02"),
			"Fee Paid":    student.FeePaid.StringFixed(2),
			"Total Fee":   student.TotalFee.StringFixed(2),
			"Outstanding": outstanding.StringFixed(2),
		})
		totalOutstanding = totalOutstanding.Add(outstanding)
	}

	data.Summary = map[string]interface{}{
		"total_students":    len(students),
		"total_outstanding": totalOutstanding.StringFixed(2),
	}

	return data, nil
}

// ExportReport генерирует файл отчета в запрошенном формате и возвращает
// путь к файлу
func (rs *ReportService) ExportReport(user *models.User, params ReportParams) (string, error) {
	data, err := rs.GetReportData(user, params)
	if err != nil {
		return "", err
	}

	reportsDir := "reports"
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	fileName := fmt.Sprintf("report_%s_%s", params.Type, timestamp)

	switch params.Format {
	case ReportFormatCSV:
		return rs.generateCSVReport(data, filepath.Join(reportsDir, fileName+".csv"))
	case ReportFormatExcel:
		return rs.generateExcelReport(data, filepath.Join(reportsDir, fileName+".xlsx"))
	case ReportFormatPDF:
		return rs.generatePDFReport(data, params.Type, filepath.Join(reportsDir, fileName+".pdf"))
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownReportFormat, params.Format)
	}
}

// generateCSVReport генерирует CSV файл отчета
func (rs *ReportService) generateCSVReport(data *ReportData, filePath string) (string, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(data.Headers); err != nil {
		return "", err
	}

	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			if value, ok := row[header]; ok {
				record[i] = fmt.Sprintf("%v", value)
			}
		}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	return filePath, nil
}

// generateExcelReport генерирует Excel файл отчета
func (rs *ReportService) generateExcelReport(data *ReportData, filePath string) (string, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Failed to close Excel file: %v", err)
		}
	}()

	sheetName := "Report"
	f.SetSheetName("Sheet1", sheetName)

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, row := range data.Rows {
		for colIdx, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if value, ok := row[header]; ok {
				f.SetCellValue(sheetName, cell, value)
			}
		}
	}

	endCell, _ := excelize.CoordinatesToCellName(len(data.Headers), len(data.Rows)+1)
	f.AutoFilter(sheetName, "A1:"+endCell, []excelize.AutoFilterOptions{})

	if err := f.SaveAs(filePath); err != nil {
		return "", err
	}

	return filePath, nil
}

// generatePDFReport генерирует PDF файл отчета
func (rs *ReportService) generatePDFReport(data *ReportData, reportType, filePath string) (string, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)

	pdf.Cell(80, 10, fmt.Sprintf("Report: %s", reportType))
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 8)
	colWidth := 270.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.Cell(colWidth, 8, header)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 8)
	maxRows := 100
	for i, row := range data.Rows {
		if i >= maxRows {
			pdf.Cell(colWidth, 8, fmt.Sprintf("... and %d more rows", len(data.Rows)-maxRows))
			break
		}

		for _, header := range data.Headers {
			value := ""
			if val, ok := row[header]; ok {
				value = fmt.Sprintf("%.20s", fmt.Sprintf("%v", val))
			}
			pdf.Cell(colWidth, 8, value)
		}
		pdf.Ln(6)
	}

	return filePath, pdf.OutputFileAndClose(filePath)
}

// applyDateRange добавляет фильтр по периоду к запросу
func applyDateRange(query *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where(column+" >= ?", *from)
	}
	if to != nil {
		query = query.Where(column+" <= ?", *to)
	}
	return query
}
