package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/sabalioglu/vidgen/docs"
	"github.com/sabalioglu/vidgen/internal/handlers"
	"github.com/sabalioglu/vidgen/internal/metrics"
	"github.com/sabalioglu/vidgen/internal/middleware"
	"github.com/sabalioglu/vidgen/internal/services"
	"github.com/sabalioglu/vidgen/internal/views"
	"github.com/sabalioglu/vidgen/migrations"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application зібраний HTTP додаток з усіма залежностями
type Application struct {
	Router   *gin.Engine
	Visitors services.VisitorManager
	Profiles services.ProfileRepository

	closers []func() error
}

// Close звільняє підключення до зовнішніх сховищ
func (a *Application) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartServer запускає HTTP сервер і чекає сигналу для graceful shutdown
func StartServer(cfg *Config) error {
	// Налаштування логування
	setupLogging(cfg)

	// Налаштування Gin режиму
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close application resources")
		}
	}()

	// Створення HTTP сервера
	srv := &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      app.Router,
		ReadTimeout:  duration("read timeout", cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: duration("write timeout", cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  duration("idle timeout", cfg.Server.IdleTimeout, 120*time.Second),
	}

	// Канал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запуск сервера в goroutine
	go func() {
		logrus.Infof("🚀 Starting VideoGen web server on %s", cfg.GetAddress())
		logrus.Infof("Environment: %s", cfg.Server.Environment)
		logrus.Infof("Auth mode: %s, profiles backend: %s", cfg.Auth.Mode, cfg.Profiles.Backend)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Очікування сигналу для graceful shutdown
	<-quit
	logrus.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logrus.Info("✅ Server exited gracefully")
	return nil
}

// setupLogging налаштовує логування
func setupLogging(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logrus.Warnf("Invalid log level '%s', using info", cfg.Server.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Server.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// NewApplication створює сервіси за конфігурацією і реєструє маршрути
func NewApplication(cfg *Config) (*Application, error) {
	app := &Application{}

	tokens := services.NewJWTService(cfg.Auth.JWTSecret)

	var authClient services.AuthClient
	switch cfg.Auth.Mode {
	case AuthModeLocal:
		logrus.Warn("⚠️  Local auth mode: accounts live in process memory")
		authClient = services.NewLocalAuthClient(
			tokens,
			duration("local access ttl", cfg.Auth.LocalAccessTTL, time.Hour),
			duration("local refresh ttl", cfg.Auth.LocalRefreshTTL, 30*24*time.Hour),
			cfg.LocalAutoConfirm(),
		)
	default:
		authClient = services.NewGoTrueClient(
			cfg.Auth.SupabaseURL,
			cfg.Auth.AnonKey,
			duration("auth request timeout", cfg.Auth.RequestTimeout, 15*time.Second),
		)
	}

	storage, err := newSessionStorage(cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	profiles, err := newProfileRepository(cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Profiles = profiles

	app.Visitors = services.NewVisitorManager(services.VisitorManagerConfig{
		TTL:           time.Duration(cfg.Security.Session.MaxAge) * time.Second,
		AuthClient:    authClient,
		Storage:       storage,
		Tokens:        tokens,
		Profiles:      profiles,
		RefreshMargin: duration("refresh margin", cfg.Auth.RefreshMargin, time.Minute),
		FetchTimeout:  duration("profile fetch timeout", cfg.Profiles.FetchTimeout, 10*time.Second),
	})

	catalog := services.NewCatalog(cfg.CatalogProducts())

	if cfg.Checkout.Endpoint == "" {
		logrus.Warn("⚠️  Checkout endpoint is not configured, purchases will fail")
	}
	checkout := services.NewCheckoutService(
		cfg.Checkout.Endpoint,
		cfg.Auth.AnonKey,
		duration("checkout timeout", cfg.Checkout.Timeout, 30*time.Second),
	)

	renderer, err := views.NewRenderer()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	r := gin.New()
	r.HTMLRender = renderer

	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())
	if handler := corsMiddleware(cfg); handler != nil {
		r.Use(handler)
	}

	setupRoutes(r, cfg, routeDeps{
		visitors: app.Visitors,
		profiles: profiles,
		catalog:  catalog,
		checkout: checkout,
	})

	app.Router = r
	return app, nil
}

type routeDeps struct {
	visitors services.VisitorManager
	profiles services.ProfileRepository
	catalog  services.Catalog
	checkout services.CheckoutService
}

// setupRoutes налаштовує маршрути
func setupRoutes(r *gin.Engine, cfg *Config, deps routeDeps) {
	pageHandler := handlers.NewPageHandler(deps.catalog, deps.checkout, handlers.PageOptions{
		PublicURL:     cfg.Server.PublicURL,
		BotName:       cfg.Telegram.BotName,
		DashboardWait: duration("dashboard wait", cfg.Profiles.DashboardWait, 2*time.Second),
	})
	authHandler := handlers.NewAuthHandler()
	apiHandler := handlers.NewAPIHandler(deps.catalog, deps.checkout, cfg.Server.PublicURL)
	healthHandler := handlers.NewHealthHandler(deps.profiles, deps.visitors)

	// Службові endpoints без cookie відвідувача
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	site := r.Group("/")
	if cfg.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			float64(cfg.Security.RateLimit.RequestsPerMinute)/60,
			cfg.Security.RateLimit.Burst,
		)
		limiter.StartCleanup(10 * time.Minute)
		// ліміт перед відвідувачем: відхилений запит не створює стан
		site.Use(limiter.Middleware())
	}
	site.Use(middleware.VisitorMiddleware(deps.visitors, middleware.CookieOptions{
		Name:     cfg.Security.Session.CookieName,
		Secret:   cfg.Security.Session.Secret,
		Secure:   cfg.Security.Session.Secure,
		HTTPOnly: cfg.Security.Session.HTTPOnly,
		MaxAge:   time.Duration(cfg.Security.Session.MaxAge) * time.Second,
	}))
	{
		site.GET("/", pageHandler.Index)
		site.POST("/navigate", pageHandler.Navigate)
		site.POST("/profile/refresh", pageHandler.RefreshProfile)
		site.POST("/checkout", pageHandler.Purchase)

		auth := site.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/signup", authHandler.SignUp)
			auth.POST("/logout", authHandler.Logout)
		}

		api := site.Group("/api/v1")
		{
			api.GET("/session", apiHandler.Session)
			api.GET("/products", apiHandler.Products)
			api.POST("/navigate", apiHandler.Navigate)
			api.POST("/profile/refresh", apiHandler.RefreshProfile)
			api.POST("/checkout", apiHandler.Checkout)
			api.POST("/auth/login", apiHandler.Login)
			api.POST("/auth/signup", apiHandler.SignUp)
			api.POST("/auth/logout", apiHandler.Logout)
		}
	}
}

// corsMiddleware налаштовує CORS; без дозволених origins повертає nil
func corsMiddleware(cfg *Config) gin.HandlerFunc {
	origins := cfg.Security.CORS.AllowedOrigins
	if len(origins) == 0 {
		return nil
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowCredentials = cfg.Security.CORS.AllowCredentials
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		corsConfig.AllowMethods = cfg.Security.CORS.AllowedMethods
	}
	if len(cfg.Security.CORS.AllowedHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.Security.CORS.AllowedHeaders
	}
	if cfg.Security.CORS.MaxAge > 0 {
		corsConfig.MaxAge = time.Duration(cfg.Security.CORS.MaxAge) * time.Second
	}

	for _, origin := range origins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	if !corsConfig.AllowAllOrigins {
		for _, origin := range origins {
			if strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://") {
				corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, origin)
			} else {
				logrus.Warnf("Ignoring CORS origin without scheme: %s", origin)
			}
		}
		if len(corsConfig.AllowOrigins) == 0 {
			return nil
		}
	}

	return cors.New(corsConfig)
}

// newSessionStorage створює сховище auth сесій відвідувачів
func newSessionStorage(cfg *Config, app *Application) (services.SessionStorage, error) {
	if cfg.Auth.SessionStorage != SessionStorageRedis {
		return services.NewMemorySessionStorage(), nil
	}

	client, err := connectToRedis(cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)

	return services.NewRedisSessionStorage(client, duration("session ttl", cfg.Auth.SessionTTL, 30*24*time.Hour)), nil
}

// newProfileRepository створює сховище профілів за backend
func newProfileRepository(cfg *Config, app *Application) (services.ProfileRepository, error) {
	switch cfg.Profiles.Backend {
	case ProfilesBackendPostgres:
		db, err := connectToDatabase(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgresProfiles(db, app)
	case ProfilesBackendMemory:
		logrus.Warn("⚠️  Profiles are kept in process memory")
		return services.NewMemoryProfileRepository(), nil
	default:
		return services.NewRESTProfileRepository(
			cfg.Auth.SupabaseURL,
			cfg.Auth.AnonKey,
			cfg.Profiles.Table,
			duration("profile fetch timeout", cfg.Profiles.FetchTimeout, 10*time.Second),
		), nil
	}
}

// connectToRedis підключається до Redis і перевіряє з'єднання
func connectToRedis(cfg *Config) (*redis.Client, error) {
	logrus.Infof("🔌 Connecting to Redis: %s/%d", cfg.GetRedisAddress(), cfg.Redis.Database)

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.GetRedisAddress(),
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.Database,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logrus.Info("✅ Redis connection established")
	return client, nil
}

// connectToDatabase підключається до PostgreSQL бази даних через GORM
func connectToDatabase(cfg *Config) (*gorm.DB, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("database block is not configured")
	}

	logrus.Infof("🔌 Connecting to PostgreSQL database: %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}

	// В debug режимі включаємо логування SQL запитів
	if cfg.IsDevelopment() {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	connectionMaxLifetime := duration("connection max lifetime", cfg.Database.ConnectionMaxLifetime, 5*time.Minute)

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(connectionMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Infof("📊 Database connection pool configured: MaxOpen=%d, MaxIdle=%d, MaxLifetime=%v",
		cfg.Database.MaxOpenConnections, cfg.Database.MaxIdleConnections, connectionMaxLifetime)

	return db, nil
}

// postgresProfiles реєструє закриття пулу до міграцій, тож пул закривається і при їх помилці
func postgresProfiles(db *gorm.DB, app *Application) (services.ProfileRepository, error) {
	if sqlDB, err := db.DB(); err == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}
	if err := applyMigrations(db); err != nil {
		return nil, err
	}
	return services.NewGormProfileRepository(db), nil
}

// applyMigrations застосовує всі міграції по черзі
func applyMigrations(db *gorm.DB) error {
	for _, m := range migrations.All() {
		logrus.Infof("🛠️  Applying migration %s", m.Name)
		if err := m.Up(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

// RunMigrations виконує тільки міграції без запуску сервера
func RunMigrations(cfg *Config) error {
	setupLogging(cfg)

	db, err := connectToDatabase(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := applyMigrations(db); err != nil {
		return err
	}

	logrus.Info("✅ Database migrations completed successfully")
	return nil
}

// RollbackMigrations відкочує міграції у зворотному порядку
func RollbackMigrations(cfg *Config) error {
	setupLogging(cfg)

	db, err := connectToDatabase(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	all := migrations.All()
	for i := len(all) - 1; i >= 0; i-- {
		logrus.Infof("↩️  Rolling back migration %s", all[i].Name)
		if err := all[i].Rollback(db); err != nil {
			return fmt.Errorf("rollback %s failed: %w", all[i].Name, err)
		}
	}

	logrus.Info("✅ Database rollback completed")
	return nil
}
