package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backend_crm/middleware"
	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
)

// Pagination параметры страницы из query-строки
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// parsePagination разбирает page и limit. Лимит ограничен сотней записей.
func parsePagination(c *gin.Context) Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// listResponse собирает стандартный конверт списка с пагинацией
func listResponse(items interface{}, total int64, p Pagination) gin.H {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return gin.H{
		"status": "success",
		"data": gin.H{
			"items": items,
			"total": total,
			"page":  p.Page,
			"limit": p.Limit,
			"pages": pages,
		},
	}
}

// respondError отправляет стандартный конверт ошибки
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": "error", "error": message})
}

// respondSuccess отправляет стандартный конверт успешного ответа
func respondSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{"status": "success", "data": data})
}

// respondServiceError переводит ошибку сервиса в HTTP-ответ
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthorized):
		respondError(c, http.StatusForbidden, "You can only edit leads assigned to you")
	case errors.Is(err, services.ErrLeadNotFound):
		respondError(c, http.StatusNotFound, "Lead not found")
	case errors.Is(err, services.ErrQuoteNotFound):
		respondError(c, http.StatusNotFound, "Quote not found")
	case errors.Is(err, services.ErrInvalidStatus):
		respondError(c, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, services.ErrNoCourseSelected):
		respondError(c, http.StatusBadRequest, "Please select a course before converting the lead")
	case errors.Is(err, services.ErrProviderNotFound):
		respondError(c, http.StatusNotFound, "Payment provider not found")
	case errors.Is(err, services.ErrProviderInactive):
		respondError(c, http.StatusBadRequest, "Payment provider is not active")
	case errors.Is(err, services.ErrPaymentLinkNotFound):
		respondError(c, http.StatusNotFound, "Payment link not found")
	case errors.Is(err, services.ErrUnknownReportType):
		respondError(c, http.StatusBadRequest, "Unsupported report type")
	case errors.Is(err, services.ErrUnknownReportFormat):
		respondError(c, http.StatusBadRequest, "Unsupported report format")
	default:
		var dup *services.DuplicateLeadError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, gin.H{
				"status":        "error",
				"error":         dup.Error(),
				"existing_lead": dup.Existing,
			})
			return
		}
		// Детали ошибок хранилища остаются в логе, клиенту уходит
		// обезличенное сообщение
		log.Printf("❌ Ошибка при обработке %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// currentUser возвращает аутентифицированного пользователя или отвечает 401
func currentUser(c *gin.Context) *models.User {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		c.Abort()
	}
	return user
}

// parseIDParam разбирает числовой параметр пути
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parseUintQuery разбирает числовое значение query-параметра
func parseUintQuery(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}

// parseDateQuery разбирает дату YYYY-MM-DD из query-строки
func parseDateQuery(c *gin.Context, name string) *time.Time {
	value := c.Query(name)
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

// searchPattern готовит шаблон LIKE для регистронезависимого поиска
func searchPattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// isDuplicateErr определяет нарушение уникальности по тексту ошибки БД
func isDuplicateErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique") ||
		strings.Contains(msg, "constraint")
}
