package services

import (
	"backend_crm/models"

	"gorm.io/gorm"
)

// AccessService отвечает на вопрос, разрешена ли пользователю операция.
// Все проверки являются чистыми предикатами без побочных эффектов; обработчики
// обязаны возвращать 403 при отказе, а не молча фильтровать результат.
//
// Каноническое поле владения лидом assigned_to_id; если назначения нет,
// владельцем считается создатель (created_by_id). Это правило применяется
// единообразно и в предикатах, и в фильтрации списков.
type AccessService struct{}

// NewAccessService создает новый экземпляр AccessService
func NewAccessService() *AccessService {
	return &AccessService{}
}

// CanViewLead проверяет, может ли пользователь видеть лид
func (s *AccessService) CanViewLead(user *models.User, lead *models.Lead) bool {
	if user.IsAdmin() || user.CanViewAllLeads {
		return true
	}
	owner := lead.OwnerID()
	return owner != nil && *owner == user.ID
}

// CanEditLead проверяет, может ли пользователь изменять лид.
// Отдельного права на редактирование нет: правило совпадает с просмотром.
func (s *AccessService) CanEditLead(user *models.User, lead *models.Lead) bool {
	return s.CanViewLead(user, lead)
}

// CanBulkAssign проверяет право на массовое назначение лидов
func (s *AccessService) CanBulkAssign(user *models.User) bool {
	return user.IsAdmin()
}

// CanManageUsers проверяет право на управление пользователями
func (s *AccessService) CanManageUsers(user *models.User) bool {
	return user.IsAdmin() || user.CanManageUsers
}

// CanManageSettings проверяет право на управление настройками
func (s *AccessService) CanManageSettings(user *models.User) bool {
	return user.IsAdmin() || user.CanManageSettings
}

// CanViewReports проверяет право на просмотр отчетов
func (s *AccessService) CanViewReports(user *models.User) bool {
	return user.IsAdmin() || user.CanViewReports
}

// CanManageCourses проверяет право на управление курсами
func (s *AccessService) CanManageCourses(user *models.User) bool {
	return user.IsAdmin() || user.CanManageCourses
}

// CanViewAllLeads проверяет, доступен ли пользователю полный список лидов
func (s *AccessService) CanViewAllLeads(user *models.User) bool {
	return user.IsAdmin() || user.CanViewAllLeads
}

// VisibleLeads возвращает запрос по лидам, ограниченный видимостью
// пользователя. Фильтр применяется на стороне БД до пагинации и агрегатов,
// чтобы чужие лиды не попадали даже в счетчики.
func (s *AccessService) VisibleLeads(db *gorm.DB, user *models.User) *gorm.DB {
	query := db.Model(&models.Lead{})
	if s.CanViewAllLeads(user) {
		return query
	}
	return query.Where(
		"assigned_to_id = ? OR (assigned_to_id IS NULL AND created_by_id = ?)",
		user.ID, user.ID,
	)
}
