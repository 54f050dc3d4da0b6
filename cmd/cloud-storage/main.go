// Точка входа cloud-storage: персонального файлового хранилища.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт хранилища и сервисный слой, запускает фоновые задачи
// (сверка, topologymetrics) и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/cloud-storage/internal/api/handlers"
	"github.com/bigkaa/goartstore/cloud-storage/internal/api/middleware"
	"github.com/bigkaa/goartstore/cloud-storage/internal/config"
	"github.com/bigkaa/goartstore/cloud-storage/internal/database"
	"github.com/bigkaa/goartstore/cloud-storage/internal/password"
	"github.com/bigkaa/goartstore/cloud-storage/internal/repository"
	"github.com/bigkaa/goartstore/cloud-storage/internal/server"
	"github.com/bigkaa/goartstore/cloud-storage/internal/service"
	"github.com/bigkaa/goartstore/cloud-storage/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("cloud-storage запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_root", cfg.StorageRoot),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics.
	// Проверка здоровья идёт через общий пул соединений.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище метаданных
	userRepo := repository.NewUserRepository(pool, password.NewScryptHasher())
	fileRepo := repository.NewFileRepository(pool)

	var users service.UserStore = userRepo
	if cfg.UserCacheSize > 0 {
		users = service.NewCachedUserStore(userRepo, cfg.UserCacheSize, cfg.UserCacheTTL)
		logger.Info("Кэш имён пользователей включён",
			slog.Int("size", cfg.UserCacheSize),
			slog.String("ttl", cfg.UserCacheTTL.String()),
		)
	}

	// 6. Файловое хранилище
	store, err := filestore.New(cfg.StorageRoot, cfg.AllowedExtensions)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Сервисный слой
	storageSvc := service.NewStorageService(users, fileRepo, store, logger)

	// 8. Фоновая сверка диска и метаданных
	var reconcileSvc *service.ReconcileService
	if cfg.ReconcileInterval > 0 {
		reconcileSvc = service.NewReconcileService(userRepo, fileRepo, store, cfg.ReconcileInterval, logger)
		reconcileSvc.Start(ctx)
	} else {
		logger.Info("Сверка отключена (CS_RECONCILE_INTERVAL=0)")
	}

	// 9. topologymetrics: мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"cloud-storage",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 10. HTTP API
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		filestore.NewReadinessChecker(store),
	)
	if dephealthSvc != nil {
		healthHandler.WithDependencies(dephealthSvc)
	}
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTTTL, logger)
	apiHandler := handlers.NewAPIHandler(healthHandler, storageSvc, jwtAuth, cfg.MaxUploadSize, logger)

	// 11. Запуск HTTP-сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	runErr := srv.Run()

	// 12. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if reconcileSvc != nil {
		reconcileSvc.Stop()
	}
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		pgDB.Close()
		pool.Close()
		os.Exit(1)
	}

	logger.Info("cloud-storage остановлен")
}
