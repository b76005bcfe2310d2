package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"backend_crm/middleware"
	"backend_crm/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthAPI обрабатывает вход и операции с текущим пользователем
type AuthAPI struct {
	db   *gorm.DB
	auth *middleware.AuthMiddleware
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(db *gorm.DB, auth *middleware.AuthMiddleware) *AuthAPI {
	return &AuthAPI{db: db, auth: auth}
}

// RegisterRoutes регистрирует маршруты аутентификации
func (aa *AuthAPI) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/auth/login", aa.Login)
	protected.GET("/auth/me", aa.GetCurrentUserInfo)
	protected.POST("/auth/change-password", aa.ChangePassword)
}

// LoginRequest запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=3,max=100"`
}

// ChangePasswordRequest запрос на смену пароля
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100"`
}

// Структурированное логирование для авторизации
func logAuthOperation(operation, username string, details map[string]interface{}) {
	logData := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"operation": operation,
		"username":  username,
	}
	for key, value := range details {
		logData[key] = value
	}

	logJSON, _ := json.Marshal(logData)
	log.Printf("AUTH_LOG: %s", string(logJSON))
}

// Login проверяет учетные данные и выдает JWT
func (aa *AuthAPI) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logAuthOperation("login_validation_error", req.Username, map[string]interface{}{
			"error":      err.Error(),
			"status":     "failed",
			"ip_address": c.ClientIP(),
		})
		respondError(c, http.StatusBadRequest, "Invalid username or password")
		return
	}

	logAuthOperation("login_attempt", req.Username, map[string]interface{}{
		"ip_address": c.ClientIP(),
		"user_agent": c.GetHeader("User-Agent"),
	})

	var user models.User
	err := aa.db.Where("username = ?", req.Username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logAuthOperation("login_failed", req.Username, map[string]interface{}{
				"reason":     "user_not_found",
				"ip_address": c.ClientIP(),
			})
			respondError(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if !user.IsActive {
		logAuthOperation("login_failed", req.Username, map[string]interface{}{
			"reason":     "user_deactivated",
			"ip_address": c.ClientIP(),
		})
		respondError(c, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logAuthOperation("login_failed", req.Username, map[string]interface{}{
			"reason":     "invalid_password",
			"ip_address": c.ClientIP(),
		})
		respondError(c, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := aa.auth.GenerateToken(&user)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	now := time.Now()
	aa.db.Model(&user).Update("last_login", &now)

	logAuthOperation("login_success", req.Username, map[string]interface{}{
		"user_id":    user.ID,
		"role":       user.Role,
		"ip_address": c.ClientIP(),
	})

	respondSuccess(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GetCurrentUserInfo возвращает профиль текущего пользователя
func (aa *AuthAPI) GetCurrentUserInfo(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// ChangePassword меняет пароль текущего пользователя
func (aa *AuthAPI) ChangePassword(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		respondError(c, http.StatusBadRequest, "Current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	if err := aa.db.Model(user).Update("password", string(hashed)).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update password")
		return
	}

	logAuthOperation("password_changed", user.Username, map[string]interface{}{
		"user_id":    user.ID,
		"ip_address": c.ClientIP(),
	})

	respondSuccess(c, http.StatusOK, gin.H{"message": "Password updated successfully"})
}
