package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList(t *testing.T) {
	t.Run("Пустой список сериализуется в []", func(t *testing.T) {
		value, err := StringList{}.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", value)
	})

	t.Run("Сериализация и чтение сохраняют порядок", func(t *testing.T) {
		value, err := StringList{"Monday", "Wednesday", "Friday"}.Value()
		require.NoError(t, err)

		var list StringList
		require.NoError(t, list.Scan(value))
		assert.Equal(t, StringList{"Monday", "Wednesday", "Friday"}, list)
	})

	t.Run("Битый JSON дает пустой список без ошибки", func(t *testing.T) {
		var list StringList
		require.NoError(t, list.Scan("not json"))
		assert.Empty(t, list)
	})

	t.Run("NULL дает пустой список", func(t *testing.T) {
		var list StringList
		require.NoError(t, list.Scan(nil))
		assert.Empty(t, list)
	})
}

func TestIDList(t *testing.T) {
	t.Run("Сериализация и чтение", func(t *testing.T) {
		value, err := IDList{3, 1, 2}.Value()
		require.NoError(t, err)

		var list IDList
		require.NoError(t, list.Scan([]byte(value.(string))))
		assert.Equal(t, IDList{3, 1, 2}, list)
	})

	t.Run("Битый JSON дает пустой список без ошибки", func(t *testing.T) {
		var list IDList
		require.NoError(t, list.Scan(`{"broken":`))
		assert.Empty(t, list)
	})
}

func TestLeadHelpers(t *testing.T) {
	t.Run("IsValidLeadStatus", func(t *testing.T) {
		for _, status := range LeadStatuses {
			assert.True(t, IsValidLeadStatus(status))
		}
		assert.False(t, IsValidLeadStatus("Pending"))
		assert.False(t, IsValidLeadStatus("new"))
	})

	t.Run("OwnerID предпочитает назначенного", func(t *testing.T) {
		assigned, creator := uint(5), uint(7)
		lead := Lead{AssignedToID: &assigned, CreatedByID: &creator}
		assert.Equal(t, assigned, *lead.OwnerID())

		lead.AssignedToID = nil
		assert.Equal(t, creator, *lead.OwnerID())

		lead.CreatedByID = nil
		assert.Nil(t, lead.OwnerID())
	})

	t.Run("IsTerminal", func(t *testing.T) {
		assert.True(t, (&Lead{Status: LeadStatusConverted}).IsTerminal())
		assert.True(t, (&Lead{Status: LeadStatusLost}).IsTerminal())
		assert.False(t, (&Lead{Status: LeadStatusQuoted}).IsTerminal())
	})
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "python-programming", GenerateSlug("Python Programming"))
	assert.Equal(t, "excel-advanced", GenerateSlug("  Excel & Advanced!  "))
	assert.Equal(t, "ielts-preparation-2026", GenerateSlug("IELTS Preparation 2026"))
}
