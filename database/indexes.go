package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	Type    string // btree, gin
}

// PerformanceIndexes индексы для оптимизации производительности
var PerformanceIndexes = []DatabaseIndex{
	// Индексы для таблицы leads
	{
		Name:    "idx_leads_status_created",
		Table:   "leads",
		Columns: []string{"status", "created_at"},
		Type:    "btree",
	},
	{
		Name:    "idx_leads_assigned_status",
		Table:   "leads",
		Columns: []string{"assigned_to_id", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_leads_creator_status",
		Table:   "leads",
		Columns: []string{"created_by_id", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_leads_followup_date",
		Table:   "leads",
		Columns: []string{"next_followup_date"},
		Type:    "btree",
	},
	{
		Name:    "idx_leads_source",
		Table:   "leads",
		Columns: []string{"lead_source"},
		Type:    "btree",
	},

	// Индексы для истории лидов
	{
		Name:    "idx_lead_interactions_lead_date",
		Table:   "lead_interactions",
		Columns: []string{"lead_id", "interaction_date"},
		Type:    "btree",
	},
	{
		Name:    "idx_lead_quotes_lead_created",
		Table:   "lead_quotes",
		Columns: []string{"lead_id", "created_at"},
		Type:    "btree",
	},

	// Индексы для таблицы students
	{
		Name:    "idx_students_course_status",
		Table:   "students",
		Columns: []string{"course_id", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_students_enrollment_date",
		Table:   "students",
		Columns: []string{"enrollment_date"},
		Type:    "btree",
	},

	// Индексы для таблицы meetings
	{
		Name:    "idx_meetings_date_status",
		Table:   "meetings",
		Columns: []string{"meeting_date", "status"},
		Type:    "btree",
	},
	{
		Name:    "idx_meetings_lead",
		Table:   "meetings",
		Columns: []string{"lead_id"},
		Type:    "btree",
	},

	// Индексы для платежей
	{
		Name:    "idx_payment_links_status",
		Table:   "payment_links",
		Columns: []string{"status"},
		Type:    "btree",
	},
	{
		Name:    "idx_payment_links_reference",
		Table:   "payment_links",
		Columns: []string{"payment_reference"},
		Unique:  true,
		Type:    "btree",
	},

	// Индексы для расписания занятий
	{
		Name:    "idx_class_schedules_trainer_date",
		Table:   "class_schedules",
		Columns: []string{"trainer_id", "class_date"},
		Type:    "btree",
	},

	// Полнотекстовый поиск по лидам
	{
		Name:    "idx_leads_fulltext",
		Table:   "leads",
		Columns: []string{"name", "email"},
		Type:    "gin",
	},
}

// CreatePerformanceIndexes создает индексы для оптимизации производительности
func CreatePerformanceIndexes(db *gorm.DB) error {
	log.Printf("Creating performance indexes...")

	for _, index := range PerformanceIndexes {
		if err := CreateIndex(db, index); err != nil {
			log.Printf("Failed to create index %s: %v", index.Name, err)
			// Продолжаем создание других индексов даже если один упал
			continue
		}
		log.Printf("Created index: %s", index.Name)
	}

	log.Printf("Performance indexes creation completed")
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	var sql string

	switch index.Type {
	case "gin":
		// Для полнотекстового поиска
		if len(index.Columns) == 2 {
			sql = fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (to_tsvector('english', COALESCE(%s, '') || ' ' || COALESCE(%s, '')))",
				index.Name, index.Table, index.Columns[0], index.Columns[1],
			)
		} else {
			sql = fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (to_tsvector('english', %s))",
				index.Name, index.Table, index.Columns[0],
			)
		}
	default:
		// Обычные B-tree индексы
		uniqueStr := ""
		if index.Unique {
			uniqueStr = "UNIQUE "
		}

		columns := ""
		for i, col := range index.Columns {
			if i > 0 {
				columns += ", "
			}
			columns += col
		}

		sql = fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			uniqueStr, index.Name, index.Table, columns,
		)
	}

	return db.Exec(sql).Error
}

// DropIndex удаляет индекс
func DropIndex(db *gorm.DB, indexName string) error {
	sql := fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)
	return db.Exec(sql).Error
}
