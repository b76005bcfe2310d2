package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"backend_crm/models"
	"backend_crm/services"
	"backend_crm/testutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupLeadsRouter собирает роутер лидов с подменой авторизации:
// вместо JWT в контекст кладется переданный пользователь
func setupLeadsRouter(t *testing.T) (*gorm.DB, func(*models.User) *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutils.SetupTestDB(t)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	access := services.NewAccessService()
	leadService := services.NewLeadService(db, access)
	leadsAPI := NewLeadsAPI(db, leadService, access)

	routerFor := func(user *models.User) *gin.Engine {
		router := gin.New()
		group := router.Group("/api")
		group.Use(func(c *gin.Context) {
			c.Set("user", user)
			c.Next()
		})
		leadsAPI.RegisterRoutes(group)
		return router
	}

	return db, routerFor
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLeadsAPICreate(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	router := routerFor(admin)

	t.Run("Создание лида", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/leads",
			`{"name": "Ahmed Hassan", "phone": "+971501234567", "lead_source": "Website"}`)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Status string      `json:"status"`
			Data   models.Lead `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.Equal(t, models.LeadStatusNew, resp.Data.Status)
	})

	t.Run("Дубликат телефона дает 409 с существующим лидом", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/leads",
			`{"name": "Other Person", "phone": "+971501234567"}`)
		require.Equal(t, http.StatusConflict, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp["status"])
		assert.NotNil(t, resp["existing_lead"])
	})

	t.Run("Отсутствие телефона дает 400", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/leads", `{"name": "No Phone"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeadsAPIVisibility(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)

	mine := testutils.CreateTestLead(t, db, "Mine", "+971502000001", consultant)
	foreign := testutils.CreateTestLead(t, db, "Foreign", "+971502000002", admin)

	t.Run("Список консультанта не содержит чужих лидов", func(t *testing.T) {
		w := doJSON(routerFor(consultant), "GET", "/api/leads", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Items []models.Lead `json:"items"`
				Total int64         `json:"total"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.Total)
		require.Len(t, resp.Data.Items, 1)
		assert.Equal(t, mine.ID, resp.Data.Items[0].ID)
	})

	t.Run("Чужой лид дает 403 с понятным сообщением", func(t *testing.T) {
		w := doJSON(routerFor(consultant), "GET", fmt.Sprintf("/api/leads/%d", foreign.ID), "")
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "You can only view leads assigned to you")
	})

	t.Run("Админ видит весь список", func(t *testing.T) {
		w := doJSON(routerFor(admin), "GET", "/api/leads", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Total int64 `json:"total"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.Data.Total)
	})
}

func TestLeadsAPIStatusEndpoint(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)
	lead := testutils.CreateTestLead(t, db, "Status Lead", "+971502000003", admin)

	t.Run("Успешный перевод возвращает {success, message}", func(t *testing.T) {
		w := doJSON(routerFor(admin), "POST", fmt.Sprintf("/api/leads/%d/status", lead.ID),
			`{"status": "Contacted"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Status updated successfully", resp.Message)

		var reloaded models.Lead
		require.NoError(t, db.First(&reloaded, lead.ID).Error)
		assert.Equal(t, models.LeadStatusContacted, reloaded.Status)
	})

	t.Run("Неизвестный статус дает 400", func(t *testing.T) {
		w := doJSON(routerFor(admin), "POST", fmt.Sprintf("/api/leads/%d/status", lead.ID),
			`{"status": "Frozen"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("Чужой лид дает 403", func(t *testing.T) {
		w := doJSON(routerFor(consultant), "POST", fmt.Sprintf("/api/leads/%d/status", lead.ID),
			`{"status": "Contacted"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Несуществующий лид дает 404", func(t *testing.T) {
		w := doJSON(routerFor(admin), "POST", "/api/leads/99999/status",
			`{"status": "Contacted"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLeadsAPIConvert(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	course := testutils.CreateTestCourse(t, db, "Business English", 2400)
	router := routerFor(admin)

	t.Run("Без курса конвертация дает 400", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, db, "No Course", "+971502000004", admin)
		w := doJSON(router, "POST", fmt.Sprintf("/api/leads/%d/convert", lead.ID), "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "please select a course")
	})

	t.Run("Конвертация возвращает студента", func(t *testing.T) {
		lead := testutils.CreateTestLead(t, db, "Layla Ibrahim", "+971502000005", admin)
		require.NoError(t, db.Model(lead).Update("course_interest_id", course.ID).Error)

		w := doJSON(router, "POST", fmt.Sprintf("/api/leads/%d/convert", lead.ID), "")
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data models.Student `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Layla", resp.Data.FirstName)
		assert.Equal(t, "Ibrahim", resp.Data.LastName)
		assert.True(t, resp.Data.TotalFee.Equal(course.Price))
	})
}

func TestLeadsAPIBulkAssign(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)

	first := testutils.CreateTestLead(t, db, "Bulk One", "+971502000006", admin)
	second := testutils.CreateTestLead(t, db, "Bulk Two", "+971502000007", admin)

	t.Run("Консультанту запрещено", func(t *testing.T) {
		w := doJSON(routerFor(consultant), "POST", "/api/leads/bulk-assign",
			fmt.Sprintf(`{"lead_ids": [%d], "consultant_id": %d}`, first.ID, consultant.ID))
		require.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Admin access required")
	})

	t.Run("Назначение возвращает счетчики", func(t *testing.T) {
		w := doJSON(routerFor(admin), "POST", "/api/leads/bulk-assign",
			fmt.Sprintf(`{"lead_ids": [%d, %d, 99999], "consultant_id": %d}`,
				first.ID, second.ID, consultant.ID))
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Updated   int `json:"updated"`
				Requested int `json:"requested"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Updated)
		assert.Equal(t, 3, resp.Data.Requested)
	})
}

func TestLeadsAPIPipeline(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)

	lead := testutils.CreateTestLead(t, db, "Pipe Lead", "+971502000008", admin)
	require.NoError(t, db.Model(lead).Updates(map[string]interface{}{
		"status":        models.LeadStatusQuoted,
		"quoted_amount": 1500,
	}).Error)

	t.Run("Сгруппированная воронка содержит все статусы", func(t *testing.T) {
		w := doJSON(routerFor(admin), "GET", "/api/pipeline", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Statuses []string                 `json:"statuses"`
				Leads    map[string][]models.Lead `json:"leads"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.LeadStatuses, resp.Data.Statuses)
		assert.Len(t, resp.Data.Leads, len(models.LeadStatuses))
		assert.Len(t, resp.Data.Leads[models.LeadStatusQuoted], 1)
	})

	t.Run("Плоский формат pipeline/data", func(t *testing.T) {
		w := doJSON(routerFor(admin), "GET", "/api/pipeline/data", "")
		require.Equal(t, http.StatusOK, w.Code)

		var data map[string]struct {
			Count      int64  `json:"count"`
			TotalValue string `json:"total_value"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
		require.Len(t, data, len(models.LeadStatuses))
		assert.Equal(t, int64(1), data[models.LeadStatusQuoted].Count)
		assert.Equal(t, "1500", data[models.LeadStatusQuoted].TotalValue)
	})
}

func TestLeadsAPICheckDuplicate(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	lead := testutils.CreateTestLead(t, db, "Dup Lead", "+971502000009", admin)
	router := routerFor(admin)

	t.Run("Телефон обязателен", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/leads/check-duplicate", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Найденный дубликат", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/leads/check-duplicate?phone=%2B971502000009", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Duplicate bool         `json:"duplicate"`
				Lead      *models.Lead `json:"lead"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Data.Duplicate)
		require.NotNil(t, resp.Data.Lead)
		assert.Equal(t, lead.ID, resp.Data.Lead.ID)
	})

	t.Run("exclude_id исключает сам лид", func(t *testing.T) {
		w := doJSON(router, "GET",
			fmt.Sprintf("/api/leads/check-duplicate?phone=%%2B971502000009&exclude_id=%d", lead.ID), "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"duplicate":false`)
	})
}

func TestLeadsAPIUpdateDuplicateRecheck(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)

	first := testutils.CreateTestLead(t, db, "First", "+971503000001", admin)
	second := testutils.CreateTestLead(t, db, "Second", "+971503000002", admin)
	require.NoError(t, db.Model(first).Update("email", "shared@example.com").Error)
	require.NoError(t, db.Model(second).Update("email", "shared@example.com").Error)

	router := routerFor(admin)

	t.Run("Смена только телефона не проверяет неизмененный email", func(t *testing.T) {
		w := doJSON(router, "PUT", fmt.Sprintf("/api/leads/%d", first.ID),
			`{"phone": "+971503000099"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var updated models.Lead
		require.NoError(t, db.First(&updated, first.ID).Error)
		assert.Equal(t, "+971503000099", updated.Phone)
	})

	t.Run("Смена email на занятый дает 409", func(t *testing.T) {
		w := doJSON(router, "PUT", fmt.Sprintf("/api/leads/%d", second.ID),
			`{"email": "other@example.com"}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = doJSON(router, "PUT", fmt.Sprintf("/api/leads/%d", second.ID),
			`{"email": "shared@example.com"}`)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "existing_lead")
	})

	t.Run("Смена телефона на занятый дает 409", func(t *testing.T) {
		w := doJSON(router, "PUT", fmt.Sprintf("/api/leads/%d", second.ID),
			`{"phone": "+971503000099"}`)
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestLeadsAPIInternalErrorHidden(t *testing.T) {
	db, routerFor := setupLeadsRouter(t)
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	router := routerFor(admin)

	// Ломаем хранилище, чтобы сервис вернул обернутую ошибку БД
	require.NoError(t, db.Migrator().DropTable(&models.Lead{}))

	w := doJSON(router, "POST", "/api/leads",
		`{"name": "Broken Storage", "phone": "+971504000001"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "Internal server error", resp["error"])
	assert.NotContains(t, w.Body.String(), "no such table")
	assert.NotContains(t, w.Body.String(), "ошибка")
}
