package services

import (
	"errors"
	"testing"
	"time"

	"backend_crm/models"
	"backend_crm/testutils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLeadService(t *testing.T) (*LeadService, *models.User, *models.User) {
	t.Helper()

	db := testutils.SetupTestDB(t)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	service := NewLeadService(db, NewAccessService())
	admin := testutils.CreateTestUser(t, db, models.RoleAdmin)
	consultant := testutils.CreateTestUser(t, db, models.RoleConsultant)
	return service, admin, consultant
}

func TestCheckDuplicate(t *testing.T) {
	service, admin, _ := setupLeadService(t)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Ahmed Hassan",
		Phone: "+971501234567",
		Email: "ahmed@example.com",
	})
	require.NoError(t, err)

	t.Run("Совпадение по телефону", func(t *testing.T) {
		found, err := service.CheckDuplicate("+971501234567", "", 0)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, lead.ID, found.ID)
	})

	t.Run("Совпадение по email", func(t *testing.T) {
		found, err := service.CheckDuplicate("+971509999999", "ahmed@example.com", 0)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, lead.ID, found.ID)
	})

	t.Run("Телефон имеет приоритет над email", func(t *testing.T) {
		other, err := service.CreateLead(admin, CreateLeadInput{
			Name:  "Sara Ali",
			Phone: "+971508888888",
			Email: "sara@example.com",
		})
		require.NoError(t, err)

		// Телефон одного лида и email другого: побеждает телефон
		found, err := service.CheckDuplicate("+971508888888", "ahmed@example.com", 0)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, other.ID, found.ID)
	})

	t.Run("exclude_id исключает редактируемый лид", func(t *testing.T) {
		found, err := service.CheckDuplicate("+971501234567", "", lead.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Пустой email не ищется", func(t *testing.T) {
		found, err := service.CheckDuplicate("+971500000000", "", 0)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Пустой телефон не ищется", func(t *testing.T) {
		found, err := service.CheckDuplicate("", "ahmed@example.com", 0)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, lead.ID, found.ID)

		found, err = service.CheckDuplicate("", "", 0)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestCreateLead(t *testing.T) {
	service, admin, _ := setupLeadService(t)

	t.Run("Статус по умолчанию New", func(t *testing.T) {
		lead, err := service.CreateLead(admin, CreateLeadInput{
			Name:  "Omar Khalid",
			Phone: "+971501111111",
		})
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
		assert.Equal(t, admin.ID, *lead.CreatedByID)
	})

	t.Run("Недопустимый статус отклоняется", func(t *testing.T) {
		_, err := service.CreateLead(admin, CreateLeadInput{
			Name:   "Bad Status",
			Phone:  "+971502222222",
			Status: "InProgress",
		})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("Дубликат телефона отклоняется с деталями", func(t *testing.T) {
		_, err := service.CreateLead(admin, CreateLeadInput{
			Name:  "Duplicate Guy",
			Phone: "+971501111111",
		})
		var dup *DuplicateLeadError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "phone", dup.Field)
		assert.Equal(t, "Omar Khalid", dup.Existing.Name)
	})
}

func TestUpdateStatus(t *testing.T) {
	service, admin, consultant := setupLeadService(t)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Status Lead",
		Phone: "+971503333333",
	})
	require.NoError(t, err)

	t.Run("Переход допустим из любого статуса в любой", func(t *testing.T) {
		require.NoError(t, service.UpdateStatus(admin, lead.ID, models.LeadStatusLost))
		require.NoError(t, service.UpdateStatus(admin, lead.ID, models.LeadStatusInterested))
	})

	t.Run("Неизвестный статус отклоняется", func(t *testing.T) {
		assert.ErrorIs(t, service.UpdateStatus(admin, lead.ID, "Frozen"), ErrInvalidStatus)
	})

	t.Run("Чужой лид недоступен консультанту", func(t *testing.T) {
		err := service.UpdateStatus(consultant, lead.ID, models.LeadStatusContacted)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("Несуществующий лид", func(t *testing.T) {
		err := service.UpdateStatus(admin, 99999, models.LeadStatusContacted)
		assert.ErrorIs(t, err, ErrLeadNotFound)
	})
}

func TestAddQuote(t *testing.T) {
	service, admin, _ := setupLeadService(t)
	course := testutils.CreateTestCourse(t, service.db, "Python Programming", 3500)

	t.Run("Квот переводит лид в Quoted и копирует сумму", func(t *testing.T) {
		lead, err := service.CreateLead(admin, CreateLeadInput{
			Name:  "Quote Lead",
			Phone: "+971504444444",
		})
		require.NoError(t, err)

		quote, err := service.AddQuote(admin, lead.ID, AddQuoteInput{
			CourseID:     course.ID,
			QuotedAmount: decimal.NewFromInt(3000),
			ValidUntil:   time.Now().AddDate(0, 0, 14),
		})
		require.NoError(t, err)
		assert.Equal(t, "AED", quote.Currency)
		assert.Equal(t, models.QuoteStatusActive, quote.Status)

		updated, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusQuoted, updated.Status)
		assert.True(t, updated.QuotedAmount.Equal(decimal.NewFromInt(3000)))
	})

	t.Run("Конечный статус не перезаписывается", func(t *testing.T) {
		lead, err := service.CreateLead(admin, CreateLeadInput{
			Name:   "Lost Lead",
			Phone:  "+971505555555",
			Status: models.LeadStatusLost,
		})
		require.NoError(t, err)

		_, err = service.AddQuote(admin, lead.ID, AddQuoteInput{
			CourseID:     course.ID,
			QuotedAmount: decimal.NewFromInt(1000),
			ValidUntil:   time.Now().AddDate(0, 0, 7),
		})
		require.NoError(t, err)

		updated, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusLost, updated.Status)
		assert.True(t, updated.QuotedAmount.IsZero())
	})
}

func TestUpdateQuoteAmount(t *testing.T) {
	service, admin, _ := setupLeadService(t)
	course := testutils.CreateTestCourse(t, service.db, "Data Science", 5000)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Multi Quote",
		Phone: "+971506666666",
	})
	require.NoError(t, err)

	first, err := service.AddQuote(admin, lead.ID, AddQuoteInput{
		CourseID:     course.ID,
		QuotedAmount: decimal.NewFromInt(4000),
		ValidUntil:   time.Now().AddDate(0, 0, 14),
	})
	require.NoError(t, err)

	// Второй квот создается позже и становится самым свежим
	second := models.LeadQuote{
		LeadID:       lead.ID,
		CourseID:     course.ID,
		QuotedAmount: decimal.NewFromInt(4500),
		Currency:     "AED",
		ValidUntil:   time.Now().AddDate(0, 0, 14),
		Status:       models.QuoteStatusActive,
		CreatedAt:    first.CreatedAt.Add(time.Hour),
	}
	require.NoError(t, service.db.Create(&second).Error)

	t.Run("Старый квот не трогает сумму лида", func(t *testing.T) {
		_, err := service.UpdateQuoteAmount(admin, first.ID, decimal.NewFromInt(3800))
		require.NoError(t, err)

		updated, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.True(t, updated.QuotedAmount.Equal(decimal.NewFromInt(4000)),
			"amount of an older quote must not propagate")
	})

	t.Run("Самый свежий квот обновляет сумму лида", func(t *testing.T) {
		_, err := service.UpdateQuoteAmount(admin, second.ID, decimal.NewFromInt(4200))
		require.NoError(t, err)

		updated, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.True(t, updated.QuotedAmount.Equal(decimal.NewFromInt(4200)))
	})

	t.Run("В историю пишется запись Quote Update", func(t *testing.T) {
		var interactions []models.LeadInteraction
		require.NoError(t, service.db.Where("lead_id = ? AND interaction_type = ?",
			lead.ID, models.InteractionTypeQuoteUpdate).Order("id").Find(&interactions).Error)
		require.Len(t, interactions, 2)
		assert.Contains(t, interactions[1].Content, "4500.00 → 4200.00 AED")
	})

	t.Run("Несуществующий квот", func(t *testing.T) {
		_, err := service.UpdateQuoteAmount(admin, 99999, decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ErrQuoteNotFound)
	})
}

func TestConvertLead(t *testing.T) {
	service, admin, _ := setupLeadService(t)
	course := testutils.CreateTestCourse(t, service.db, "Digital Marketing", 2800)

	t.Run("Без курса конвертация отклоняется", func(t *testing.T) {
		lead, err := service.CreateLead(admin, CreateLeadInput{
			Name:  "No Course",
			Phone: "+971507777777",
		})
		require.NoError(t, err)

		_, err = service.ConvertLead(admin, lead.ID)
		assert.ErrorIs(t, err, ErrNoCourseSelected)

		unchanged, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusNew, unchanged.Status)
	})

	t.Run("Конвертация создает студента с ценой курса", func(t *testing.T) {
		lead, err := service.CreateLead(admin, CreateLeadInput{
			Name:             "Fatima Al Mansouri",
			Phone:            "+971508888777",
			Email:            "fatima@example.com",
			CourseInterestID: &course.ID,
		})
		require.NoError(t, err)

		student, err := service.ConvertLead(admin, lead.ID)
		require.NoError(t, err)

		assert.Equal(t, "Fatima", student.FirstName)
		assert.Equal(t, "Al Mansouri", student.LastName)
		assert.Equal(t, lead.Phone, student.Phone)
		assert.Equal(t, course.ID, student.CourseID)
		assert.True(t, student.TotalFee.Equal(course.Price))
		assert.Equal(t, models.StudentStatusActive, student.Status)

		converted, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusConverted, converted.Status)
	})
}

func TestUpdateFollowup(t *testing.T) {
	service, admin, _ := setupLeadService(t)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Followup Lead",
		Phone: "+971509990001",
	})
	require.NoError(t, err)

	t.Run("Дифф изменившихся полей попадает в историю", func(t *testing.T) {
		date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
		err := service.UpdateFollowup(admin, lead.ID, FollowupInput{
			Date:     &date,
			Time:     "14:30",
			Type:     "Call",
			Priority: "High",
		})
		require.NoError(t, err)

		var interaction models.LeadInteraction
		require.NoError(t, service.db.Where("lead_id = ? AND interaction_type = ?",
			lead.ID, models.InteractionTypeFollowupUpdate).
			Order("id DESC").First(&interaction).Error)
		assert.Contains(t, interaction.Content, "Follow-up updated:")
		assert.Contains(t, interaction.Content, "Date: none → 2026-09-15")
		assert.Contains(t, interaction.Content, "Time: none → 14:30")
		assert.Contains(t, interaction.Content, "Priority: none → High")
	})

	t.Run("Без изменений фиксируется No changes made", func(t *testing.T) {
		date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
		err := service.UpdateFollowup(admin, lead.ID, FollowupInput{
			Date:     &date,
			Time:     "14:30",
			Type:     "Call",
			Priority: "High",
		})
		require.NoError(t, err)

		var interaction models.LeadInteraction
		require.NoError(t, service.db.Where("lead_id = ? AND interaction_type = ?",
			lead.ID, models.InteractionTypeFollowupUpdate).
			Order("id DESC").First(&interaction).Error)
		assert.Equal(t, "No changes made", interaction.Content)
	})
}

func TestAddInteraction(t *testing.T) {
	service, admin, _ := setupLeadService(t)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Contact Lead",
		Phone: "+971509990002",
	})
	require.NoError(t, err)

	t.Run("Взаимодействие обновляет дату последнего контакта", func(t *testing.T) {
		_, err := service.AddInteraction(admin, lead.ID, InteractionInput{
			Type:    "Call",
			Content: "Discussed course schedule",
		})
		require.NoError(t, err)

		updated, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		require.NotNil(t, updated.LastContactDate)
	})

	t.Run("Комментарий не трогает дату контакта", func(t *testing.T) {
		before, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)

		_, err = service.AddComment(admin, lead.ID, "Prefers evening classes")
		require.NoError(t, err)

		after, err := service.getLead(service.db, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, before.LastContactDate.Unix(), after.LastContactDate.Unix())
	})
}

func TestBulkAssign(t *testing.T) {
	service, admin, consultant := setupLeadService(t)

	first, err := service.CreateLead(admin, CreateLeadInput{Name: "Bulk One", Phone: "+971509990003"})
	require.NoError(t, err)
	second, err := service.CreateLead(admin, CreateLeadInput{Name: "Bulk Two", Phone: "+971509990004"})
	require.NoError(t, err)

	t.Run("Консультанту операция запрещена", func(t *testing.T) {
		_, err := service.BulkAssign(consultant, []uint{first.ID}, consultant.ID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("Несуществующий консультант отклоняется", func(t *testing.T) {
		_, err := service.BulkAssign(admin, []uint{first.ID}, 99999)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consultant not found")
	})

	t.Run("Отсутствующие лиды молча пропускаются", func(t *testing.T) {
		updated, err := service.BulkAssign(admin, []uint{first.ID, second.ID, 99999}, consultant.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, updated)

		reloaded, err := service.getLead(service.db, first.ID)
		require.NoError(t, err)
		assert.Equal(t, consultant.ID, *reloaded.AssignedToID)
	})
}

func TestPipelineData(t *testing.T) {
	service, admin, consultant := setupLeadService(t)

	_, err := service.CreateLead(admin, CreateLeadInput{
		Name:         "Pipe One",
		Phone:        "+971509990005",
		Status:       models.LeadStatusQuoted,
		QuotedAmount: decimal.NewFromInt(2000),
	})
	require.NoError(t, err)
	_, err = service.CreateLead(admin, CreateLeadInput{
		Name:         "Pipe Two",
		Phone:        "+971509990006",
		Status:       models.LeadStatusQuoted,
		QuotedAmount: decimal.NewFromInt(3000),
		AssignedToID: &consultant.ID,
	})
	require.NoError(t, err)

	t.Run("Все шесть статусов присутствуют всегда", func(t *testing.T) {
		data, err := service.PipelineData(admin)
		require.NoError(t, err)
		require.Len(t, data, len(models.LeadStatuses))
		for _, status := range models.LeadStatuses {
			_, ok := data[status]
			assert.True(t, ok, "status %s missing from pipeline", status)
		}
	})

	t.Run("Суммы агрегируются по статусу", func(t *testing.T) {
		data, err := service.PipelineData(admin)
		require.NoError(t, err)
		assert.Equal(t, int64(2), data[models.LeadStatusQuoted].Count)
		assert.True(t, data[models.LeadStatusQuoted].TotalValue.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("Консультант видит только свои лиды", func(t *testing.T) {
		data, err := service.PipelineData(consultant)
		require.NoError(t, err)
		assert.Equal(t, int64(1), data[models.LeadStatusQuoted].Count)
		assert.True(t, data[models.LeadStatusQuoted].TotalValue.Equal(decimal.NewFromInt(3000)))
	})
}

func TestDeleteLead(t *testing.T) {
	service, admin, _ := setupLeadService(t)
	course := testutils.CreateTestCourse(t, service.db, "Excel Mastery", 900)

	lead, err := service.CreateLead(admin, CreateLeadInput{
		Name:  "Delete Me",
		Phone: "+971509990007",
	})
	require.NoError(t, err)

	_, err = service.AddQuote(admin, lead.ID, AddQuoteInput{
		CourseID:     course.ID,
		QuotedAmount: decimal.NewFromInt(900),
		ValidUntil:   time.Now().AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	_, err = service.AddComment(admin, lead.ID, "to be removed")
	require.NoError(t, err)

	require.NoError(t, service.DeleteLead(admin, lead.ID))

	_, err = service.getLead(service.db, lead.ID)
	assert.True(t, errors.Is(err, ErrLeadNotFound))

	var quotes, interactions int64
	service.db.Model(&models.LeadQuote{}).Where("lead_id = ?", lead.ID).Count(&quotes)
	service.db.Model(&models.LeadInteraction{}).Where("lead_id = ?", lead.ID).Count(&interactions)
	assert.Zero(t, quotes)
	assert.Zero(t, interactions)
}
