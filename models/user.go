package models

import (
	"time"

	"gorm.io/gorm"
)

// Роли пользователей в системе
const (
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// User представляет модель пользователя в системе
type User struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Username string `json:"username" gorm:"uniqueIndex;not null;type:varchar(64)"`
	Email    string `json:"email" gorm:"uniqueIndex;not null;type:varchar(120)"`
	Password string `json:"-" gorm:"not null"` // Пароль не возвращается в JSON

	// Роль и статус
	Role     string `json:"role" gorm:"default:'consultant';type:varchar(20)"` // consultant, admin, superadmin
	IsActive bool   `json:"is_active" gorm:"default:true"`

	// Флаги разрешений. Для роли admin флаги игнорируются:
	// проверки разрешений считают их всегда включенными.
	CanViewAllLeads   bool `json:"can_view_all_leads" gorm:"default:false"`
	CanManageUsers    bool `json:"can_manage_users" gorm:"default:false"`
	CanViewReports    bool `json:"can_view_reports" gorm:"default:false"`
	CanManageCourses  bool `json:"can_manage_courses" gorm:"default:false"`
	CanManageSettings bool `json:"can_manage_settings" gorm:"default:false"`

	LastLogin *time.Time `json:"last_login"`

	// Кто создал пользователя
	CreatedByID *uint `json:"created_by_id" gorm:"index"`
	CreatedBy   *User `json:"created_by,omitempty" gorm:"foreignKey:CreatedByID"`
}

// TableName задает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// IsAdmin проверяет, обладает ли пользователь административными правами.
// Суперадминистратор включает права администратора.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}

// IsSuperadmin проверяет, является ли пользователь суперадминистратором
func (u *User) IsSuperadmin() bool {
	return u.Role == RoleSuperadmin
}

// IsConsultant проверяет, является ли пользователь консультантом
func (u *User) IsConsultant() bool {
	return u.Role == RoleConsultant
}
