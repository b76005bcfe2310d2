package api

import (
	"net/http"

	"backend_crm/models"
	"backend_crm/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsAPI обрабатывает справочники и системные настройки
type SettingsAPI struct {
	db       *gorm.DB
	settings *services.SettingsService
}

// NewSettingsAPI создает новый экземпляр SettingsAPI
func NewSettingsAPI(db *gorm.DB, settings *services.SettingsService) *SettingsAPI {
	return &SettingsAPI{db: db, settings: settings}
}

// RegisterRoutes регистрирует маршруты настроек
func (sa *SettingsAPI) RegisterRoutes(router *gin.RouterGroup) {
	settings := router.Group("/settings")
	{
		settings.GET("/choices/:key", sa.GetChoices)
		settings.GET("/:key", sa.ListSettings)
		settings.POST("", sa.CreateSetting)
		settings.PUT("/:key/:id", sa.UpdateSetting)
		settings.DELETE("/:key/:id", sa.DeleteSetting)
	}

	system := router.Group("/system-settings")
	{
		system.GET("/:key", sa.GetSystemSetting)
		system.PUT("/:key", sa.SetSystemSetting)
	}
}

// GetChoices возвращает пункты выпадающего списка по ключу
func (sa *SettingsAPI) GetChoices(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	choices, err := sa.settings.GetChoices(c.Param("key"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch choices")
		return
	}

	respondSuccess(c, http.StatusOK, choices)
}

// ListSettings возвращает все строки справочника, включая неактивные
func (sa *SettingsAPI) ListSettings(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	settings, err := sa.settings.ListSettings(c.Param("key"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch settings")
		return
	}

	respondSuccess(c, http.StatusOK, settings)
}

// SettingRequest представляет запрос на создание пункта справочника
type SettingRequest struct {
	Key         string `json:"key" binding:"required,max=100"`
	Value       string `json:"value" binding:"required,max=150"`
	DisplayName string `json:"display_name" binding:"required,max=200"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// CreateSetting добавляет пункт справочника
func (sa *SettingsAPI) CreateSetting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	setting := models.Setting{
		Key:         req.Key,
		Value:       req.Value,
		DisplayName: req.DisplayName,
		Description: req.Description,
		IsActive:    true,
		SortOrder:   req.SortOrder,
	}
	if req.IsActive != nil {
		setting.IsActive = *req.IsActive
	}

	if err := sa.settings.CreateSetting(user, &setting); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, setting)
}

// UpdateSetting изменяет пункт справочника
func (sa *SettingsAPI) UpdateSetting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Value       *string `json:"value" binding:"omitempty,max=150"`
		DisplayName *string `json:"display_name" binding:"omitempty,max=200"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
		SortOrder   *int    `json:"sort_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Value != nil {
		updates["value"] = *req.Value
	}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}

	setting, err := sa.settings.UpdateSetting(user, id, updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, setting)
}

// DeleteSetting удаляет пункт справочника
func (sa *SettingsAPI) DeleteSetting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := sa.settings.DeleteSetting(user, id); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "Setting deleted"})
}

// GetSystemSetting возвращает системную настройку по ключу
func (sa *SettingsAPI) GetSystemSetting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	key := c.Param("key")
	value := sa.settings.GetSystemSetting(key, "")
	respondSuccess(c, http.StatusOK, gin.H{"key": key, "value": value})
}

// SetSystemSetting создает или обновляет системную настройку
func (sa *SettingsAPI) SetSystemSetting(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		return
	}

	var req struct {
		Value       string `json:"value" binding:"required"`
		SettingType string `json:"setting_type" binding:"omitempty,oneof=string number boolean json"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Value is required")
		return
	}

	key := c.Param("key")
	if err := sa.settings.SetSystemSetting(user, key, req.Value, req.SettingType); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"key": key, "value": req.Value})
}
