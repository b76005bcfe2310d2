package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"backend_crm/database"
	"backend_crm/models"

	"gorm.io/gorm"
)

// TTL кеша справочников в Redis
const choicesCacheTTL = 5 * time.Minute

// SettingsService управляет справочниками выпадающих списков и системными
// настройками. Чтение справочников кешируется в Redis; при недоступности
// Redis сервис работает напрямую с БД.
type SettingsService struct {
	db     *gorm.DB
	access *AccessService
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(db *gorm.DB, access *AccessService) *SettingsService {
	return &SettingsService{db: db, access: access}
}

// GetChoices возвращает активные пункты справочника по ключу, отсортированные
// по sort_order и value. Если в БД нет активных строк, возвращается
// встроенный запасной список.
func (s *SettingsService) GetChoices(key string) ([]models.Choice, error) {
	cacheKey := database.ChoicesCacheKey(key)

	var cached []models.Choice
	if err := database.CacheGetJSON(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var settings []models.Setting
	err := s.db.Where("key = ? AND is_active = ?", key, true).
		Order("sort_order, value").Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки справочника %s: %w", key, err)
	}

	choices := make([]models.Choice, 0, len(settings))
	for _, setting := range settings {
		choices = append(choices, models.Choice{
			Value:       setting.Value,
			DisplayName: setting.DisplayName,
		})
	}

	if len(choices) == 0 {
		choices = models.DefaultChoices(key)
	}

	if err := database.CacheSetJSON(cacheKey, choices, choicesCacheTTL); err != nil {
		log.Printf("⚠️ Не удалось закешировать справочник %s: %v", key, err)
	}

	return choices, nil
}

// ListSettings возвращает все строки справочника по ключу, включая неактивные
func (s *SettingsService) ListSettings(key string) ([]models.Setting, error) {
	var settings []models.Setting
	err := s.db.Where("key = ?", key).Order("sort_order, value").Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки настроек: %w", err)
	}
	return settings, nil
}

// CreateSetting добавляет новый пункт справочника и сбрасывает кеш
func (s *SettingsService) CreateSetting(actor *models.User, setting *models.Setting) error {
	if !s.access.CanManageSettings(actor) {
		return ErrNotAuthorized
	}

	var existing models.Setting
	err := s.db.Where("key = ? AND value = ?", setting.Key, setting.Value).First(&existing).Error
	if err == nil {
		return fmt.Errorf("setting with this value already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ошибка проверки настройки: %w", err)
	}

	if err := s.db.Create(setting).Error; err != nil {
		return fmt.Errorf("ошибка создания настройки: %w", err)
	}

	s.invalidateChoices(setting.Key)
	return nil
}

// UpdateSetting изменяет пункт справочника и сбрасывает кеш
func (s *SettingsService) UpdateSetting(actor *models.User, id uint, updates map[string]interface{}) (*models.Setting, error) {
	if !s.access.CanManageSettings(actor) {
		return nil, ErrNotAuthorized
	}

	var setting models.Setting
	if err := s.db.First(&setting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("setting not found")
		}
		return nil, fmt.Errorf("ошибка загрузки настройки: %w", err)
	}

	if err := s.db.Model(&setting).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления настройки: %w", err)
	}

	s.invalidateChoices(setting.Key)
	return &setting, nil
}

// DeleteSetting удаляет пункт справочника и сбрасывает кеш
func (s *SettingsService) DeleteSetting(actor *models.User, id uint) error {
	if !s.access.CanManageSettings(actor) {
		return ErrNotAuthorized
	}

	var setting models.Setting
	if err := s.db.First(&setting, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("setting not found")
		}
		return fmt.Errorf("ошибка загрузки настройки: %w", err)
	}

	if err := s.db.Delete(&setting).Error; err != nil {
		return fmt.Errorf("ошибка удаления настройки: %w", err)
	}

	s.invalidateChoices(setting.Key)
	return nil
}

// GetSystemSetting возвращает значение системной настройки или значение
// по умолчанию, если ключ не найден
func (s *SettingsService) GetSystemSetting(key, defaultValue string) string {
	var setting models.SystemSetting
	err := s.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		return defaultValue
	}
	return setting.SettingValue
}

// SetSystemSetting создает или обновляет системную настройку
func (s *SettingsService) SetSystemSetting(actor *models.User, key, value, settingType string) error {
	if !s.access.CanManageSettings(actor) {
		return ErrNotAuthorized
	}

	var setting models.SystemSetting
	err := s.db.Where("setting_key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.SystemSetting{
			SettingKey:   key,
			SettingValue: value,
			SettingType:  settingType,
		}
		if err := s.db.Create(&setting).Error; err != nil {
			return fmt.Errorf("ошибка создания системной настройки: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка загрузки системной настройки: %w", err)
	}

	updates := map[string]interface{}{"setting_value": value}
	if settingType != "" {
		updates["setting_type"] = settingType
	}
	if err := s.db.Model(&setting).Updates(updates).Error; err != nil {
		return fmt.Errorf("ошибка обновления системной настройки: %w", err)
	}

	return nil
}

func (s *SettingsService) invalidateChoices(key string) {
	if err := database.CacheDel(database.ChoicesCacheKey(key)); err != nil {
		log.Printf("⚠️ Не удалось сбросить кеш справочника %s: %v", key, err)
	}
}
