package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vaporchat/vapor-backend/internal/config"
	"github.com/vaporchat/vapor-backend/internal/handler"
	"github.com/vaporchat/vapor-backend/internal/middleware"
	"github.com/vaporchat/vapor-backend/internal/migration"
	"github.com/vaporchat/vapor-backend/internal/repository"
	"github.com/vaporchat/vapor-backend/internal/routes"
	"github.com/vaporchat/vapor-backend/internal/scheduler"
	"github.com/vaporchat/vapor-backend/internal/service"
	"github.com/vaporchat/vapor-backend/internal/ws"
	pkgcache "github.com/vaporchat/vapor-backend/pkg/cache"
	pkgjwt "github.com/vaporchat/vapor-backend/pkg/jwt"
	pkglogger "github.com/vaporchat/vapor-backend/pkg/logger"
	pkgredis "github.com/vaporchat/vapor-backend/pkg/redis"
	pkgstorage "github.com/vaporchat/vapor-backend/pkg/storage"
)

// @title           Vapor Backend API
// @version         1.0
// @description     Ephemeral secure-message lifecycle backend
//
// @license.name    MIT
//
// @host            localhost:8082
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		pkglogger.Info("Migration warning: %v", err)
	}

	// Redis (optional: lifecycle dedup degrades to in-process only)
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Info("Warning: Failed to connect to Redis: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
	}

	// S3 media storage (optional: messages without media still work)
	var s3Client *pkgstorage.S3Client
	if cfg.Storage.Bucket != "" {
		s3Client, err = pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("Failed to init S3 storage: %v", err)
		}
	} else {
		pkglogger.Info("Warning: no S3 bucket configured, media uploads disabled")
	}

	jwtManager := pkgjwt.NewManager(cfg.JWT.Secret)

	// Realtime hub
	hub := ws.NewHub(redisClient)
	go hub.Run()

	// Scheduler owns all timer-driven work; stopped on shutdown below
	sched := scheduler.New(time.Second)

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// Lifecycle services
	var mediaStore service.MediaStore
	if s3Client != nil {
		mediaStore = s3Client
	}
	deletionSvc := service.NewDeletionService(messageRepo, mediaStore, cacheService, hub, sched, cfg.Lifecycle.GraceDelay)
	messageSvc := service.NewMessageService(messageRepo, chatRepo, cacheService, deletionSvc, hub, cfg.Lifecycle.MessageTTL)

	sweeper := service.NewExpirySweeper(messageRepo, deletionSvc)
	sched.Register("expiry-sweep", cfg.Lifecycle.SweepInterval, sweeper.Sweep)
	sched.Start()

	// Upload pipeline
	tracker := service.NewUploadTracker()
	var mediaSvc *service.MediaService
	if s3Client != nil {
		mediaSvc = service.NewMediaService(s3Client, tracker)
	}

	// Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	allowOrigins := cfg.CORS.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           86400,
	}))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "vapor-backend",
			"time":    time.Now().Unix(),
		})
	})

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Handlers and routes
	chatHandler := handler.NewChatHandler(chatRepo, cacheService)
	messageHandler := handler.NewMessageHandler(messageSvc, mediaSvc)
	uploadHandler := handler.NewUploadHandler(mediaSvc, tracker)
	wsHandler := handler.NewWSHandler(hub, allowOrigins)
	routes.Setup(router, chatHandler, messageHandler, uploadHandler, wsHandler, jwtManager)

	// Serve with graceful shutdown so in-flight requests finish and the
	// scheduler stops cleanly
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		pkglogger.Info("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down")

	sched.Stop()
	hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		pkglogger.Error("Server shutdown error: %v", err)
	}
}

// splitAndTrim splits a string by delimiter and trims spaces
func splitAndTrim(s string, delimiter string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, delimiter) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// initDB opens the MySQL connection pool
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}
