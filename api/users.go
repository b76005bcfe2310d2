package api

import (
	"errors"
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UsersAPI обрабатывает управление пользователями
type UsersAPI struct {
	db     *gorm.DB
	access *services.AccessService
}

// NewUsersAPI создает новый экземпляр UsersAPI
func NewUsersAPI(db *gorm.DB, access *services.AccessService) *UsersAPI {
	return &UsersAPI{db: db, access: access}
}

// RegisterRoutes регистрирует маршруты управления пользователями
func (ua *UsersAPI) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", ua.GetUsers)
		users.POST("", ua.CreateUser)
		users.GET("/:id", ua.GetUser)
		users.PUT("/:id", ua.UpdateUser)
		users.DELETE("/:id", ua.DeleteUser)
		users.POST("/:id/toggle-active", ua.ToggleActive)
	}
}

// CreateUserRequest представляет запрос на создание пользователя
type CreateUserRequest struct {
	Username          string `json:"username" binding:"required,min=3,max=50"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8,max=100"`
	Role              string `json:"role" binding:"omitempty,oneof=consultant admin superadmin"`
	CanViewAllLeads   bool   `json:"can_view_all_leads"`
	CanManageUsers    bool   `json:"can_manage_users"`
	CanViewReports    bool   `json:"can_view_reports"`
	CanManageCourses  bool   `json:"can_manage_courses"`
	CanManageSettings bool   `json:"can_manage_settings"`
}

// UpdateUserRequest представляет запрос на обновление пользователя
type UpdateUserRequest struct {
	Username          *string `json:"username" binding:"omitempty,min=3,max=50"`
	Email             *string `json:"email" binding:"omitempty,email"`
	Password          *string `json:"password" binding:"omitempty,min=8,max=100"`
	Role              *string `json:"role" binding:"omitempty,oneof=consultant admin superadmin"`
	IsActive          *bool   `json:"is_active"`
	CanViewAllLeads   *bool   `json:"can_view_all_leads"`
	CanManageUsers    *bool   `json:"can_manage_users"`
	CanViewReports    *bool   `json:"can_view_reports"`
	CanManageCourses  *bool   `json:"can_manage_courses"`
	CanManageSettings *bool   `json:"can_manage_settings"`
}

// GetUsers возвращает список пользователей с фильтрацией и пагинацией
func (ua *UsersAPI) GetUsers(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ua.access.CanManageUsers(user) {
		respondError(c, http.StatusForbidden, "User management access required")
		return
	}

	p := parsePagination(c)
	query := ua.db.Model(&models.User{})

	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if active := c.Query("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}
	if search := c.Query("search"); search != "" {
		pattern := searchPattern(search)
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to count users")
		return
	}

	var users []models.User
	if err := query.Order("username").Offset(p.Offset).Limit(p.Limit).Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, listResponse(users, total, p))
}

// GetUser возвращает пользователя по ID
func (ua *UsersAPI) GetUser(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if !ua.access.CanManageUsers(user) && user.ID != id {
		respondError(c, http.StatusForbidden, "User management access required")
		return
	}

	var target models.User
	if err := ua.db.First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	respondSuccess(c, http.StatusOK, target)
}

// CreateUser создает нового пользователя
func (ua *UsersAPI) CreateUser(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ua.access.CanManageUsers(user) {
		respondError(c, http.StatusForbidden, "User management access required")
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	// Назначать админские роли может только суперадмин
	role := req.Role
	if role == "" {
		role = models.RoleConsultant
	}
	if role != models.RoleConsultant && !user.IsSuperadmin() {
		respondError(c, http.StatusForbidden, "Only superadmin can create admin users")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	newUser := models.User{
		Username:          req.Username,
		Email:             req.Email,
		Password:          string(hashed),
		Role:              role,
		IsActive:          true,
		CanViewAllLeads:   req.CanViewAllLeads,
		CanManageUsers:    req.CanManageUsers,
		CanViewReports:    req.CanViewReports,
		CanManageCourses:  req.CanManageCourses,
		CanManageSettings: req.CanManageSettings,
		CreatedByID:       &user.ID,
	}

	if err := ua.db.Create(&newUser).Error; err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Username or email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	respondSuccess(c, http.StatusCreated, newUser)
}

// UpdateUser обновляет данные пользователя
func (ua *UsersAPI) UpdateUser(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ua.access.CanManageUsers(user) {
		respondError(c, http.StatusForbidden, "User management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var target models.User
	if err := ua.db.First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if req.Role != nil && *req.Role != target.Role && !user.IsSuperadmin() {
		respondError(c, http.StatusForbidden, "Only superadmin can change roles")
		return
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		updates["username"] = *req.Username
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to hash password")
			return
		}
		updates["password"] = string(hashed)
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.CanViewAllLeads != nil {
		updates["can_view_all_leads"] = *req.CanViewAllLeads
	}
	if req.CanManageUsers != nil {
		updates["can_manage_users"] = *req.CanManageUsers
	}
	if req.CanViewReports != nil {
		updates["can_view_reports"] = *req.CanViewReports
	}
	if req.CanManageCourses != nil {
		updates["can_manage_courses"] = *req.CanManageCourses
	}
	if req.CanManageSettings != nil {
		updates["can_manage_settings"] = *req.CanManageSettings
	}

	if len(updates) == 0 {
		respondSuccess(c, http.StatusOK, target)
		return
	}

	if err := ua.db.Model(&target).Updates(updates).Error; err != nil {
		if isDuplicateErr(err) {
			respondError(c, http.StatusConflict, "Username or email already exists")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to update user")
		return
	}

	respondSuccess(c, http.StatusOK, target)
}

// ToggleActive переключает активность пользователя
func (ua *UsersAPI) ToggleActive(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !ua.access.CanManageUsers(user) {
		respondError(c, http.StatusForbidden, "User management access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if id == user.ID {
		respondError(c, http.StatusBadRequest, "You cannot deactivate your own account")
		return
	}

	var target models.User
	if err := ua.db.First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if err := ua.db.Model(&target).Update("is_active", !target.IsActive).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to update user")
		return
	}

	target.IsActive = !target.IsActive
	respondSuccess(c, http.StatusOK, target)
}

// DeleteUser деактивирует пользователя. Записи не удаляются, чтобы
// сохранить историю лидов.
func (ua *UsersAPI) DeleteUser(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	if !user.IsSuperadmin() {
		respondError(c, http.StatusForbidden, "Superadmin access required")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if id == user.ID {
		respondError(c, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	var target models.User
	if err := ua.db.First(&target, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch user")
		return
	}

	if err := ua.db.Model(&target).Update("is_active", false).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to deactivate user")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "User deactivated"})
}
