package testutils

import (
	"os"

	"backend_crm/config"
)

// SetupTestConfig настраивает тестовую конфигурацию
func SetupTestConfig() {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	os.Setenv("APP_ENV", "test")

	config.LoadConfig()
}
