package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strconv"

	"backend_crm/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NotificationService отправляет уведомления в Telegram и по email.
// Оба канала опциональны: при отсутствии настроек отправка пропускается
// с записью в лог.
type NotificationService struct {
	cfg    config.ExternalConfig
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotificationService создает новый экземпляр NotificationService.
// Telegram-бот инициализируется при наличии токена.
func NewNotificationService(cfg config.ExternalConfig) *NotificationService {
	ns := &NotificationService{cfg: cfg}

	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Printf("⚠️ Не удалось инициализировать Telegram-бота: %v", err)
		} else {
			ns.bot = bot
			if chatID, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64); err == nil {
				ns.chatID = chatID
			}
			log.Printf("✅ Telegram-бот инициализирован: @%s", bot.Self.UserName)
		}
	}

	return ns
}

// TelegramEnabled проверяет, настроен ли Telegram-канал
func (ns *NotificationService) TelegramEnabled() bool {
	return ns.bot != nil && ns.chatID != 0
}

// SendTelegram отправляет сообщение в настроенный чат
func (ns *NotificationService) SendTelegram(message string) error {
	if !ns.TelegramEnabled() {
		log.Printf("📵 Telegram не настроен, сообщение пропущено: %s", message)
		return nil
	}

	msg := tgbotapi.NewMessage(ns.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := ns.bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram: %w", err)
	}
	return nil
}

// SendEmail отправляет письмо через SMTP из конфигурации
func (ns *NotificationService) SendEmail(to, subject, body string) error {
	if ns.cfg.SMTP.Host == "" {
		log.Printf("📭 SMTP не настроен, письмо для %s пропущено: %s", to, subject)
		return nil
	}

	addr := fmt.Sprintf("%s:%d", ns.cfg.SMTP.Host, ns.cfg.SMTP.Port)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		ns.cfg.SMTP.From, to, subject, body))

	var auth smtp.Auth
	if ns.cfg.SMTP.User != "" {
		auth = smtp.PlainAuth("", ns.cfg.SMTP.User, ns.cfg.SMTP.Password, ns.cfg.SMTP.Host)
	}

	if err := smtp.SendMail(addr, auth, ns.cfg.SMTP.From, []string{to}, msg); err != nil {
		return fmt.Errorf("ошибка отправки email: %w", err)
	}
	return nil
}

// NotifyFollowupDue уведомляет о наступившем follow-up по лиду
func (ns *NotificationService) NotifyFollowupDue(leadName, phone, followupType, consultant string) error {
	message := fmt.Sprintf("🔔 <b>Follow-up due</b>\nLead: %s\nPhone: %s\nType: %s\nAssigned: %s",
		leadName, phone, followupType, consultant)
	return ns.SendTelegram(message)
}

// NotifyMeetingReminder уведомляет о приближающейся встрече
func (ns *NotificationService) NotifyMeetingReminder(title, when, meetingType string) error {
	message := fmt.Sprintf("📅 <b>Meeting reminder</b>\n%s\n%s (%s)", title, when, meetingType)
	return ns.SendTelegram(message)
}
