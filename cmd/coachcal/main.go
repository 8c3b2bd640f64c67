package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"

	"github.com/coachbridge/coachcal/internal/booking"
	"github.com/coachbridge/coachcal/internal/calsync"
	"github.com/coachbridge/coachcal/internal/config"
	"github.com/coachbridge/coachcal/internal/db"
	"github.com/coachbridge/coachcal/internal/model"
	"github.com/coachbridge/coachcal/internal/provider"
	"github.com/coachbridge/coachcal/internal/repository"
	"github.com/coachbridge/coachcal/internal/routes"
	"github.com/coachbridge/coachcal/internal/token"
	"github.com/coachbridge/coachcal/internal/webhook"
)

const providerName = "cal"

func main() {
	// .env опционален, в проде конфиг приходит из окружения.
	_ = godotenv.Load()

	// 1. Конфиги из env.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}
	providerCfg, err := config.LoadProviderConfig()
	if err != nil {
		log.Fatalf("load provider config: %v", err)
	}
	serverCfg := config.LoadServerConfig()

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Репозитории (реализации на GORM).
	scheduleRepo := repository.NewGormScheduleRepository(gormDB)
	integrationRepo := repository.NewGormIntegrationRepository(gormDB)
	sessionRepo := repository.NewGormSessionRepository(gormDB)
	calBookingRepo := repository.NewGormCalBookingRepository(gormDB)
	syncEventRepo := repository.NewGormSyncEventRepository(gormDB)

	// 5. Клиент провайдера и сервисы поверх него.
	client := provider.NewClient(
		providerCfg.BaseURL,
		providerCfg.APIVersion,
		providerCfg.ClientID,
		providerCfg.ClientSecret,
		providerCfg.HTTPTimeout,
	)
	tokens := token.NewManager(integrationRepo, client, providerName)
	syncer := calsync.NewSyncer(scheduleRepo, integrationRepo, tokens, client, providerName)
	orchestrator := booking.NewOrchestrator(
		gormDB,
		scheduleRepo,
		sessionRepo,
		calBookingRepo,
		integrationRepo,
		syncEventRepo,
		tokens,
		client,
		providerName,
	)
	ingestor := webhook.NewIngestor(gormDB, calBookingRepo, sessionRepo)

	// 6. Подписка на вебхуки провайдера.
	if providerCfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), providerCfg.HTTPTimeout)
		if _, err := client.EnsureSubscription(ctx, providerCfg.WebhookURL, providerCfg.WebhookSecret); err != nil {
			// Не фатально: бронирования работают, догоним события позже.
			log.Printf("webhook subscription: %v", err)
		}
		cancel()
	}

	// 7. HTTP-приложение и маршруты.
	app := iris.New()
	app.Validator = validator.New()

	handlers := routes.NewHandlers(
		providerCfg,
		client,
		tokens,
		syncer,
		orchestrator,
		ingestor,
		scheduleRepo,
		sessionRepo,
		integrationRepo,
		providerName,
	)
	handlers.Register(app)

	// 8. Запускаем сервер в горутине.
	go func() {
		if err := app.Listen(serverCfg.Addr, iris.WithoutInterruptHandler); err != nil && err != iris.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()
	log.Printf("coachcal listening on %s", serverCfg.Addr)

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
