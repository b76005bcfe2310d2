package services

import (
	"fmt"
	"log"
	"time"

	"backend_crm/models"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ReminderScheduler выполняет фоновые задачи напоминаний: проверку встреч
// каждые пять минут и утреннюю сводку follow-up. Напоминание о встрече
// отправляется один раз, после чего помечается reminder_sent.
type ReminderScheduler struct {
	db            *gorm.DB
	notifications *NotificationService
	cron          *cron.Cron
}

// NewReminderScheduler создает новый экземпляр ReminderScheduler
func NewReminderScheduler(db *gorm.DB, notifications *NotificationService) *ReminderScheduler {
	return &ReminderScheduler{
		db:            db,
		notifications: notifications,
		cron:          cron.New(),
	}
}

// Start регистрирует задачи и запускает планировщик
func (rs *ReminderScheduler) Start() error {
	if _, err := rs.cron.AddFunc("*/5 * * * *", rs.checkMeetingReminders); err != nil {
		return fmt.Errorf("failed to add meeting reminder job: %w", err)
	}
	if _, err := rs.cron.AddFunc("0 8 * * *", rs.sendFollowupDigest); err != nil {
		return fmt.Errorf("failed to add followup digest job: %w", err)
	}

	rs.cron.Start()
	log.Println("✅ Планировщик напоминаний запущен")
	return nil
}

// Stop останавливает планировщик
func (rs *ReminderScheduler) Stop() {
	rs.cron.Stop()
	log.Println("🛑 Планировщик напоминаний остановлен")
}

// checkMeetingReminders отправляет напоминания о встречах, у которых
// наступило время напоминания
func (rs *ReminderScheduler) checkMeetingReminders() {
	now := time.Now()

	var meetings []models.Meeting
	err := rs.db.Where("status = ? AND reminder_sent = ? AND reminder_time IS NOT NULL AND meeting_date > ?",
		models.MeetingStatusScheduled, false, now).Find(&meetings).Error
	if err != nil {
		log.Printf("❌ Ошибка загрузки встреч для напоминаний: %v", err)
		return
	}

	for _, meeting := range meetings {
		if !meeting.ReminderDue(now) {
			continue
		}

		when := meeting.MeetingDate.Format("2006-01-02 15:04")
		if err := rs.notifications.NotifyMeetingReminder(meeting.Title, when, meeting.MeetingType); err != nil {
			log.Printf("❌ Ошибка отправки напоминания о встрече %d: %v", meeting.ID, err)
			continue
		}

		if err := rs.db.Model(&models.Meeting{}).Where("id = ?", meeting.ID).
			Update("reminder_sent", true).Error; err != nil {
			log.Printf("❌ Ошибка отметки напоминания для встречи %d: %v", meeting.ID, err)
		}
	}
}

// sendFollowupDigest отправляет утреннюю сводку лидов с follow-up на сегодня
func (rs *ReminderScheduler) sendFollowupDigest() {
	today := time.Now().Truncate(24 * time.Hour)
	tomorrow := today.Add(24 * time.Hour)

	var leads []models.Lead
	err := rs.db.Preload("AssignedTo").
		Where("next_followup_date >= ? AND next_followup_date < ? AND status NOT IN ?",
			today, tomorrow, []string{models.LeadStatusConverted, models.LeadStatusLost}).
		Order("followup_time").Find(&leads).Error
	if err != nil {
		log.Printf("❌ Ошибка загрузки follow-up на сегодня: %v", err)
		return
	}

	if len(leads) == 0 {
		return
	}

	for _, lead := range leads {
		consultant := "unassigned"
		if lead.AssignedTo != nil {
			consultant = lead.AssignedTo.Username
		}
		if err := rs.notifications.NotifyFollowupDue(lead.Name, lead.Phone, lead.FollowupType, consultant); err != nil {
			log.Printf("❌ Ошибка отправки follow-up напоминания по лиду %d: %v", lead.ID, err)
		}
	}

	log.Printf("📨 Отправлена сводка follow-up: %d лидов", len(leads))
}
