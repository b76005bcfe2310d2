package main

import (
	"log"
	"time"

	"backend_crm/api"
	"backend_crm/config"
	"backend_crm/database"
	"backend_crm/middleware"
	"backend_crm/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// initDB инициализирует подключение к базе данных
func initDB() {
	log.Println("🔧 Инициализация базы данных...")

	// Создаем базу данных, если она не существует
	if err := database.CreateDatabaseIfNotExists(); err != nil {
		log.Fatal("❌ Ошибка при создании базы данных:", err)
	}

	// Подключаемся к базе данных
	if err := database.ConnectDatabase(); err != nil {
		log.Fatal("❌ Ошибка подключения к базе данных:", err)
	}

	log.Println("✅ База данных успешно инициализирована")
}

func main() {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Файл .env не найден, используются системные переменные окружения")
	}

	cfg := config.GetConfig()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Инициализируем базу данных
	initDB()
	db := database.GetDB()

	// Redis опционален: без него выпадающие списки и воронка
	// просто не кэшируются
	if err := database.InitRedis(); err != nil {
		log.Printf("⚠️  Redis недоступен, кэширование отключено: %v", err)
	}

	if err := database.CreatePerformanceIndexes(db); err != nil {
		log.Printf("⚠️  Ошибка создания индексов: %v", err)
	}

	// Сервисы
	accessService := services.NewAccessService()
	leadService := services.NewLeadService(db, accessService)
	settingsService := services.NewSettingsService(db, accessService)
	paymentService := services.NewPaymentService(db, accessService, cfg.External.Payments)
	reportService := services.NewReportService(db, accessService)
	notificationService := services.NewNotificationService(cfg.External)

	// Планировщик напоминаний о встречах и follow-up
	reminderScheduler := services.NewReminderScheduler(db, notificationService)
	if err := reminderScheduler.Start(); err != nil {
		log.Printf("⚠️  Ошибка запуска планировщика напоминаний: %v", err)
	}
	defer reminderScheduler.Stop()

	// Настраиваем Gin router
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": "connected",
		})
	})

	authMiddleware := middleware.NewAuthMiddleware(db, cfg.JWT)

	public := r.Group("/api")
	authPublic := r.Group("/api")
	authPublic.Use(middleware.AuthRateLimit())
	protected := r.Group("/api")
	protected.Use(authMiddleware.RequireAuth(), middleware.APIRateLimit())

	// API роуты
	authAPI := api.NewAuthAPI(db, authMiddleware)
	authAPI.RegisterRoutes(authPublic, protected)

	usersAPI := api.NewUsersAPI(db, accessService)
	usersAPI.RegisterRoutes(protected)

	leadsAPI := api.NewLeadsAPI(db, leadService, accessService)
	leadsAPI.RegisterRoutes(protected)

	coursesAPI := api.NewCoursesAPI(db, accessService)
	coursesAPI.RegisterRoutes(protected)

	studentsAPI := api.NewStudentsAPI(db)
	studentsAPI.RegisterRoutes(protected)

	meetingsAPI := api.NewMeetingsAPI(db, accessService)
	meetingsAPI.RegisterRoutes(protected)

	corporateAPI := api.NewCorporateAPI(db)
	corporateAPI.RegisterRoutes(protected)

	trainersAPI := api.NewTrainersAPI(db, accessService)
	trainersAPI.RegisterRoutes(protected)

	paymentsAPI := api.NewPaymentsAPI(db, paymentService)
	paymentsAPI.RegisterRoutes(protected)
	paymentsAPI.RegisterWebhook(public)

	settingsAPI := api.NewSettingsAPI(db, settingsService)
	settingsAPI.RegisterRoutes(protected)

	templatesAPI := api.NewTemplatesAPI(db, notificationService)
	templatesAPI.RegisterRoutes(protected)

	reportsAPI := api.NewReportsAPI(db, reportService, accessService)
	reportsAPI.RegisterRoutes(protected)

	dashboardAPI := api.NewDashboardAPI(db, leadService, accessService)
	dashboardAPI.RegisterRoutes(protected)

	port := cfg.App.Port

	log.Printf("🚀 Сервер запущен на порту %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("❌ Ошибка запуска сервера:", err)
	}
}
