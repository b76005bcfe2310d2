package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend_crm/config"
	"backend_crm/middleware"
	"backend_crm/models"
	"backend_crm/testutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupAuthRouter(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutils.SetupTestDB(t)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	authMiddleware := middleware.NewAuthMiddleware(db, config.JWTConfig{
		Secret:    "test-secret-key-for-testing-only",
		ExpiresIn: 24 * time.Hour,
		Issuer:    "backend_crm",
	})

	router := gin.New()
	public := router.Group("/api")
	protected := router.Group("/api")
	protected.Use(authMiddleware.RequireAuth())

	NewAuthAPI(db, authMiddleware).RegisterRoutes(public, protected)
	return db, router
}

func newAuthorizedRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serveRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createLoginUser(t *testing.T, db *gorm.DB, username, password string, active bool) *models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
		Role:     models.RoleConsultant,
		IsActive: active,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestLogin(t *testing.T) {
	db, router := setupAuthRouter(t)
	createLoginUser(t, db, "ayesha", "secret123", true)
	createLoginUser(t, db, "disabled", "secret123", false)

	t.Run("Успешный вход возвращает токен и пользователя", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login",
			`{"username": "ayesha", "password": "secret123"}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Status string `json:"status"`
			Data   struct {
				Token string      `json:"token"`
				User  models.User `json:"user"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.NotEmpty(t, resp.Data.Token)
		assert.Equal(t, "ayesha", resp.Data.User.Username)

		var reloaded models.User
		require.NoError(t, db.Where("username = ?", "ayesha").First(&reloaded).Error)
		assert.NotNil(t, reloaded.LastLogin)
	})

	t.Run("Неверный пароль не раскрывает причину", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login",
			`{"username": "ayesha", "password": "wrongpass"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid username or password")
	})

	t.Run("Несуществующий пользователь дает тот же ответ", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login",
			`{"username": "nobody", "password": "secret123"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid username or password")
	})

	t.Run("Деактивированный аккаунт отклоняется", func(t *testing.T) {
		w := doJSON(router, "POST", "/api/auth/login",
			`{"username": "disabled", "password": "secret123"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Account is deactivated")
	})
}

func TestAuthMe(t *testing.T) {
	db, router := setupAuthRouter(t)
	createLoginUser(t, db, "karim", "secret123", true)

	login := doJSON(router, "POST", "/api/auth/login",
		`{"username": "karim", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, login.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	t.Run("С токеном возвращается профиль", func(t *testing.T) {
		req := newAuthorizedRequest("GET", "/api/auth/me", "", loginResp.Data.Token)
		w := serveRequest(router, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"username":"karim"`)
	})

	t.Run("Без токена 401", func(t *testing.T) {
		w := doJSON(router, "GET", "/api/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("С мусорным токеном 401", func(t *testing.T) {
		req := newAuthorizedRequest("GET", "/api/auth/me", "", "not-a-jwt")
		w := serveRequest(router, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestChangePassword(t *testing.T) {
	db, router := setupAuthRouter(t)
	createLoginUser(t, db, "noura", "oldpassword", true)

	login := doJSON(router, "POST", "/api/auth/login",
		`{"username": "noura", "password": "oldpassword"}`)
	require.Equal(t, http.StatusOK, login.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))
	token := loginResp.Data.Token

	t.Run("Неверный текущий пароль отклоняется", func(t *testing.T) {
		req := newAuthorizedRequest("POST", "/api/auth/change-password",
			`{"current_password": "wrong", "new_password": "newpassword1"}`, token)
		w := serveRequest(router, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Current password is incorrect")
	})

	t.Run("Смена пароля и вход с новым", func(t *testing.T) {
		req := newAuthorizedRequest("POST", "/api/auth/change-password",
			`{"current_password": "oldpassword", "new_password": "newpassword1"}`, token)
		w := serveRequest(router, req)
		require.Equal(t, http.StatusOK, w.Code)

		relogin := doJSON(router, "POST", "/api/auth/login",
			`{"username": "noura", "password": "newpassword1"}`)
		assert.Equal(t, http.StatusOK, relogin.Code)

		oldLogin := doJSON(router, "POST", "/api/auth/login",
			`{"username": "noura", "password": "oldpassword"}`)
		assert.Equal(t, http.StatusUnauthorized, oldLogin.Code)
	})
}
