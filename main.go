package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fabrikaProject/config"
	"fabrikaProject/controllers"
	"fabrikaProject/database"
	"fabrikaProject/middleware"
	"fabrikaProject/services"
	"fabrikaProject/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
)

// application связывает сервисы и контроллеры
type application struct {
	cfg *config.Config

	users     *services.UserService
	finance   *services.FinanceService
	projects  *services.ProjectService
	contracts *services.ContractService
	payments  *services.PaymentService
	reports   *services.ReportService
	reminders *services.PaymentReminderService
}

func newApplication(cfg *config.Config, repo database.Repository, rates services.RateProvider, notifier services.Notifier) *application {
	// Одна блокировка на проект для всех сервисов, меняющих финансы
	locks := utils.NewKeyedMutex()
	finance := services.NewFinanceService(repo, locks)

	return &application{
		cfg:       cfg,
		users:     services.NewUserService(repo),
		finance:   finance,
		projects:  services.NewProjectService(repo, locks),
		contracts: services.NewContractService(repo, finance, locks),
		payments:  services.NewPaymentService(repo, finance, locks, rates, notifier),
		reports:   services.NewReportService(repo),
		reminders: services.NewPaymentReminderService(repo, notifier, cfg.Reminder.Recipient, cfg.Reminder.Interval),
	}
}

func (a *application) router() http.Handler {
	jwtKey := []byte(a.cfg.JWT.SecretKey)
	expiresIn := time.Duration(a.cfg.JWT.ExpiresIn) * time.Hour

	// Инициализируем контроллеры
	projectController := controllers.NewProjectController(a.projects, a.contracts, a.payments, a.finance, a.reports)
	contractController := controllers.NewContractController(a.contracts, a.projects, a.finance)
	paymentController := controllers.NewPaymentController(a.payments, a.projects)
	userController := controllers.NewUserController(a.users, jwtKey, expiresIn)
	adminController := controllers.NewAdminController(a.finance)

	router := mux.NewRouter()

	// Служебные маршруты обслуживает gin
	router.PathPrefix("/admin").Handler(controllers.NewAdminRouter(adminController, jwtKey, a.users))

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.LoggingMiddleware)
	protected.Use(middleware.AuthMiddleware(jwtKey, a.users))

	// Проекты
	protected.HandleFunc("/projects", projectController.CreateProject).Methods("POST")
	protected.HandleFunc("/projects", projectController.GetProjects).Methods("GET")
	protected.HandleFunc("/projects/{id}", projectController.GetProject).Methods("GET")
	protected.HandleFunc("/projects/{id}", projectController.UpdateProject).Methods("PATCH")
	protected.HandleFunc("/projects/{id}", projectController.DeleteProject).Methods("DELETE")
	protected.HandleFunc("/projects/{id}/financials", projectController.GetFinancials).Methods("GET")
	protected.HandleFunc("/projects/{id}/contracts", projectController.GetContracts).Methods("GET")
	protected.HandleFunc("/projects/{id}/payments", projectController.GetPayments).Methods("GET")
	protected.HandleFunc("/projects/{id}/members", projectController.AddMember).Methods("POST")
	protected.HandleFunc("/projects/{id}/members/{user_id}", projectController.RemoveMember).Methods("DELETE")
	protected.HandleFunc("/projects/{id}/report.xlsx", projectController.GetReport).Methods("GET")

	// Договоры
	protected.HandleFunc("/contracts", contractController.CreateContract).Methods("POST")
	protected.HandleFunc("/contracts/{id}", contractController.UpdateContract).Methods("PATCH")
	protected.HandleFunc("/contracts/{id}", contractController.DeleteContract).Methods("DELETE")
	protected.HandleFunc("/contracts/{id}/financials", contractController.GetFinancials).Methods("GET")

	// Платежи
	protected.HandleFunc("/payments", paymentController.CreatePayment).Methods("POST")
	protected.HandleFunc("/payments/{id}", paymentController.UpdatePayment).Methods("PATCH")
	protected.HandleFunc("/payments/{id}", paymentController.DeletePayment).Methods("DELETE")

	// Пользователи
	protected.HandleFunc("/users", userController.CreateUser).Methods("POST")
	protected.HandleFunc("/users", userController.GetUsers).Methods("GET")
	protected.HandleFunc("/users/{id}/token", userController.IssueToken).Methods("POST")

	return router
}

// bootstrapAdmin создает администратора и логирует токен для первого входа
func (a *application) bootstrapAdmin(ctx context.Context) error {
	admin, err := a.users.EnsureAdmin(ctx, a.cfg.Admin.Email, a.cfg.Admin.Name)
	if err != nil {
		return err
	}

	token, err := middleware.GenerateToken([]byte(a.cfg.JWT.SecretKey), admin, time.Duration(a.cfg.JWT.ExpiresIn)*time.Hour)
	if err != nil {
		return fmt.Errorf("ошибка выпуска токена администратора: %w", err)
	}
	utils.WithFields(utils.Fields{"email": admin.Email, "token": token}).Info("токен администратора")
	return nil
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		utils.Log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := utils.SetupLogger(cfg.Log.Level, cfg.Log.Dir); err != nil {
		utils.Log.Fatalf("Ошибка настройки логгера: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	// Инициализируем подключение к базе данных
	db, err := database.Connect(cfg)
	if err != nil {
		utils.Log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApplication(cfg, db.Repository(), services.NewRateService(cfg), services.NewEmailService(cfg))
	if err := app.bootstrapAdmin(ctx); err != nil {
		utils.Log.Fatalf("Ошибка создания администратора: %v", err)
	}

	// Запускаем напоминания о просроченных платежах
	app.reminders.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ошибка остановки сервера: %v", err)
		}
	}()

	utils.LogInfo("Сервер запущен на порту %d", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Log.Fatalf("Ошибка запуска сервера: %v", err)
	}
	utils.LogInfo("Сервер остановлен")
}
