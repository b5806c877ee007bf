package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"stargate/internal/auth"
	"stargate/internal/config"
	"stargate/internal/handler"
	"stargate/internal/logger"
	"stargate/internal/preview"
	"stargate/internal/repository"
	"stargate/internal/service"
	"stargate/internal/storage"
)

func connectWithRetry(cfg config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Сначала подключаемся к базе postgres (системная база, которая всегда существует)
	pgDSN := strings.Replace(cfg.GetDSN(), "dbname="+cfg.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли рабочая база
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	// Если базы нет, создаем её
	if !exists {
		logger.Sugar.Infof("[DB] Database %s does not exist, creating...", cfg.Name)
		// имя базы нельзя передать параметром
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %q", cfg.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}

		logger.Sugar.Warnf("[DB] Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg config.DatabaseConfig) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.GetURL())
		if err == nil {
			break
		}
		logger.Sugar.Warnf("[DB] Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		logger.Sugar.Warnf("[DB] Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(appConfig.Log.Level)
	defer logger.Sync()

	db, err := connectWithRetry(appConfig.Database, 5, time.Second*5)
	if err != nil {
		logger.Sugar.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig.Database); err != nil {
		logger.Sugar.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(appConfig.Database.MaxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logger.Sugar.Fatalf("Failed to ping database: %v", err)
	}

	// Объектное хранилище бинарников версий
	storageConfig, err := storage.NewConfig(".s3.env")
	if err != nil {
		logger.Sugar.Fatalf("Failed to load storage config: %v", err)
	}

	objectStorage, err := storage.New(storageConfig)
	if err != nil {
		logger.Sugar.Fatalf("Failed to create %s storage: %v", storageConfig.Driver, err)
	}

	verifier := auth.NewVerifier(appConfig.Auth.JWTSecret)

	// Инициализация репозиториев
	fileRepo := repository.NewFileRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	annotationRepo := repository.NewAnnotationRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Инициализация сервисов
	versionService := service.NewVersionService(fileRepo, versionRepo, objectStorage)
	annotationService := service.NewAnnotationService(annotationRepo, versionRepo)
	promotionService := service.NewPromotionService(annotationService, taskRepo)
	previewService := preview.NewService(objectStorage, versionService)

	// Инициализация хендлеров
	versionHandler := handler.NewVersionHandler(versionService)
	annotationHandler := handler.NewAnnotationHandler(annotationService, promotionService)
	previewHandler := preview.NewHandler(previewService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Range", "X-Filename", "X-Description"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Use(verifier.Middleware)

		r.Route("/files/{fileID}", func(r chi.Router) {
			r.Get("/versions", versionHandler.ListVersions)
			r.Post("/versions", versionHandler.CreateVersion)
			r.Get("/content", versionHandler.FileContent)
		})

		r.Route("/versions/{versionID}", func(r chi.Router) {
			r.Get("/", versionHandler.GetVersion)
			r.Get("/content", versionHandler.VersionContent)
			r.Get("/pages/{page}/preview", previewHandler.GetPreview)
			r.Get("/annotations", annotationHandler.ListAnnotations)
			r.Post("/annotations", annotationHandler.CreateAnnotation)
		})

		r.Route("/annotations/{id}", func(r chi.Router) {
			r.Get("/", annotationHandler.GetAnnotation)
			r.Patch("/", annotationHandler.UpdateAnnotation)
			r.Put("/", annotationHandler.UpdateAnnotation)
			r.Delete("/", annotationHandler.DeleteAnnotation)
			r.Post("/promote", annotationHandler.PromoteToTask)
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Sugar.Infof("Starting HTTP server on port %s (%s)", appConfig.Server.Port, appConfig.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	logger.Sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Sugar.Errorf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		logger.Sugar.Errorf("Error closing database connection: %v", err)
	}

	logger.Sugar.Info("Server exited properly")
}
