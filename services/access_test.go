package services

import (
	"testing"

	"backend_crm/models"
	"backend_crm/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessPredicates(t *testing.T) {
	access := NewAccessService()

	admin := &models.User{Role: models.RoleAdmin}
	superadmin := &models.User{Role: models.RoleSuperadmin}
	consultant := &models.User{ID: 10, Role: models.RoleConsultant}
	trusted := &models.User{ID: 11, Role: models.RoleConsultant, CanViewAllLeads: true}

	ownLead := &models.Lead{AssignedToID: &consultant.ID}
	foreignOwner := uint(99)
	foreignLead := &models.Lead{AssignedToID: &foreignOwner}
	createdLead := &models.Lead{CreatedByID: &consultant.ID}
	reassigned := &models.Lead{AssignedToID: &foreignOwner, CreatedByID: &consultant.ID}

	t.Run("Админ и суперадмин видят все", func(t *testing.T) {
		assert.True(t, access.CanViewLead(admin, foreignLead))
		assert.True(t, access.CanViewLead(superadmin, foreignLead))
		assert.True(t, access.CanBulkAssign(superadmin))
		assert.True(t, access.CanManageSettings(admin))
	})

	t.Run("Консультант видит только свои лиды", func(t *testing.T) {
		assert.True(t, access.CanViewLead(consultant, ownLead))
		assert.False(t, access.CanViewLead(consultant, foreignLead))
	})

	t.Run("Создатель владеет неназначенным лидом", func(t *testing.T) {
		assert.True(t, access.CanViewLead(consultant, createdLead))
	})

	t.Run("Назначение перебивает создателя", func(t *testing.T) {
		assert.False(t, access.CanViewLead(consultant, reassigned))
	})

	t.Run("Флаг can_view_all_leads открывает полный список", func(t *testing.T) {
		assert.True(t, access.CanViewLead(trusted, foreignLead))
		assert.True(t, access.CanViewAllLeads(trusted))
	})

	t.Run("Редактирование совпадает с просмотром", func(t *testing.T) {
		assert.Equal(t, access.CanViewLead(consultant, foreignLead),
			access.CanEditLead(consultant, foreignLead))
	})

	t.Run("Массовое назначение только для админов", func(t *testing.T) {
		assert.False(t, access.CanBulkAssign(trusted))
	})
}

func TestVisibleLeads(t *testing.T) {
	db := testutils.SetupTestDB(t)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	access := NewAccessService()
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)
	other := testutils.CreateTestUser(t, db, models.RoleConsultant)

	testutils.CreateTestLead(t, db, "Mine", "+971501000001", consultant)
	testutils.CreateTestLead(t, db, "Theirs", "+971501000002", other)
	created := testutils.CreateTestLead(t, db, "Created unassigned", "+971501000003", nil)
	require.NoError(t, db.Model(created).Updates(map[string]interface{}{
		"created_by_id":  consultant.ID,
		"assigned_to_id": nil,
	}).Error)

	t.Run("Админ видит все лиды", func(t *testing.T) {
		var count int64
		require.NoError(t, access.VisibleLeads(db, admin).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})

	t.Run("Консультант видит назначенные и свои неназначенные", func(t *testing.T) {
		var leads []models.Lead
		require.NoError(t, access.VisibleLeads(db, consultant).Find(&leads).Error)
		require.Len(t, leads, 2)
		for _, l := range leads {
			assert.NotEqual(t, "Theirs", l.Name)
		}
	})
}
