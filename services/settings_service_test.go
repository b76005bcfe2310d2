package services

import (
	"testing"

	"backend_crm/models"
	"backend_crm/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSettingsService(t *testing.T) (*SettingsService, *models.User, *models.User) {
	t.Helper()

	db := testutils.SetupTestDB(t)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	service := NewSettingsService(db, NewAccessService())
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)
	return service, admin, consultant
}

func TestGetChoices(t *testing.T) {
	service, admin, _ := setupSettingsService(t)

	t.Run("Пустой справочник откатывается к встроенным значениям", func(t *testing.T) {
		choices, err := service.GetChoices(models.SettingKeyLeadSource)
		require.NoError(t, err)
		assert.NotEmpty(t, choices)
	})

	t.Run("Строки из БД перекрывают встроенные", func(t *testing.T) {
		require.NoError(t, service.CreateSetting(admin, &models.Setting{
			Key:         models.SettingKeyLeadSource,
			Value:       "TikTok",
			DisplayName: "TikTok",
			IsActive:    true,
			SortOrder:   1,
		}))

		choices, err := service.GetChoices(models.SettingKeyLeadSource)
		require.NoError(t, err)
		require.Len(t, choices, 1)
		assert.Equal(t, "TikTok", choices[0].Value)
	})

	t.Run("Неактивные строки не возвращаются", func(t *testing.T) {
		require.NoError(t, service.CreateSetting(admin, &models.Setting{
			Key:         models.SettingKeyLeadSource,
			Value:       "Fax",
			DisplayName: "Fax",
			IsActive:    false,
		}))

		choices, err := service.GetChoices(models.SettingKeyLeadSource)
		require.NoError(t, err)
		for _, c := range choices {
			assert.NotEqual(t, "Fax", c.Value)
		}
	})
}

func TestCreateSetting(t *testing.T) {
	service, admin, consultant := setupSettingsService(t)

	t.Run("Консультанту запрещено", func(t *testing.T) {
		err := service.CreateSetting(consultant, &models.Setting{
			Key: models.SettingKeyLeadSource, Value: "X", DisplayName: "X",
		})
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("Дубликат значения отклоняется", func(t *testing.T) {
		setting := &models.Setting{
			Key: models.SettingKeyLeadSource, Value: "Referral", DisplayName: "Referral", IsActive: true,
		}
		require.NoError(t, service.CreateSetting(admin, setting))

		err := service.CreateSetting(admin, &models.Setting{
			Key: models.SettingKeyLeadSource, Value: "Referral", DisplayName: "Other name",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}

func TestSystemSettings(t *testing.T) {
	service, admin, consultant := setupSettingsService(t)

	t.Run("Значение по умолчанию для отсутствующего ключа", func(t *testing.T) {
		assert.Equal(t, "AED", service.GetSystemSetting("default_currency", "AED"))
	})

	t.Run("Upsert создает и обновляет", func(t *testing.T) {
		require.NoError(t, service.SetSystemSetting(admin, "default_currency", "USD", "string"))
		assert.Equal(t, "USD", service.GetSystemSetting("default_currency", "AED"))

		require.NoError(t, service.SetSystemSetting(admin, "default_currency", "AED", ""))
		assert.Equal(t, "AED", service.GetSystemSetting("default_currency", ""))
	})

	t.Run("Запись запрещена без права на настройки", func(t *testing.T) {
		err := service.SetSystemSetting(consultant, "default_currency", "EUR", "")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}
