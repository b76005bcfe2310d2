package testutils

import (
	"fmt"
	"testing"

	"backend_crm/database"
	"backend_crm/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB создает тестовую базу данных SQLite в памяти
// Эта функция должна использоваться во всех тестах для обеспечения консистентности
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Отключаем логи в тестах
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB очищает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// CreateTestUser создает пользователя с указанной ролью.
// Username и email выводятся из роли и счетчика, чтобы не нарушать уникальность.
func CreateTestUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	var count int64
	db.Model(&models.User{}).Count(&count)

	user := &models.User{
		Username: fmt.Sprintf("%s%d", role, count+1),
		Email:    fmt.Sprintf("%s%d@example.com", role, count+1),
		Password: "hashed_password",
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestCourse создает активный курс с заданной ценой
func CreateTestCourse(t *testing.T, db *gorm.DB, name string, price float64) *models.Course {
	t.Helper()

	course := &models.Course{
		Name:        name,
		Slug:        models.GenerateSlug(name),
		Price:       decimal.NewFromFloat(price),
		IsActive:    true,
		MaxStudents: 20,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("Failed to create test course: %v", err)
	}
	return course
}

// CreateTestLead создает лид с обязательными полями.
// owner может быть nil, тогда лид остается неназначенным.
func CreateTestLead(t *testing.T, db *gorm.DB, name, phone string, owner *models.User) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		Name:   name,
		Phone:  phone,
		Status: models.LeadStatusNew,
	}
	if owner != nil {
		lead.AssignedToID = &owner.ID
		lead.CreatedByID = &owner.ID
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("Failed to create test lead: %v", err)
	}
	return lead
}
