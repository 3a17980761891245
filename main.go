package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-reservation/config"
	"github.com/yeremiapane/restaurant-reservation/database"
	"github.com/yeremiapane/restaurant-reservation/hub"
	"github.com/yeremiapane/restaurant-reservation/middlewares"
	"github.com/yeremiapane/restaurant-reservation/queue"
	"github.com/yeremiapane/restaurant-reservation/router"
	"github.com/yeremiapane/restaurant-reservation/services"
	"github.com/yeremiapane/restaurant-reservation/store"
	"github.com/yeremiapane/restaurant-reservation/utils"
	"gorm.io/gorm"
)

func main() {
	cfg, envLoaded := config.Load()
	utils.InitLogger(cfg.IsProduction())
	utils.HideInternalErrors = cfg.IsProduction()
	if !envLoaded {
		utils.InfoLogger.Println("Warning: .env file not found, using environment only")
	}
	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.StoreDriver == "sql" || cfg.EnableTableService {
		var err error
		db, err = config.InitDB(cfg)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
		}
		if err := database.Migrate(db, cfg.StoreDriver == "sql", cfg.EnableTableService); err != nil {
			utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
		}
		utils.InfoLogger.Println("AutoMigrate completed.")
	}

	reservationStore := newReservationStore(ctx, cfg, db)

	board := hub.New(utils.InfoLogger)
	tables := services.NewHTTPTableClient(cfg.TableServiceURL, cfg.TableServiceTimeout)
	svc := services.NewReservationService(reservationStore, tables, utils.InfoLogger.WithField("component", "reservations"))
	svc.TableTimeout = cfg.TableServiceTimeout
	svc.Location = cfg.Location()
	svc.Notifiers = append(svc.Notifiers, board)

	if cfg.RabbitMQURL != "" {
		publisher := queue.NewPublisher(cfg.RabbitMQURL, cfg.EventsQueue, utils.ErrorLogger)
		defer publisher.Close()
		svc.Notifiers = append(svc.Notifiers, publisher)
	}

	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
		utils.InfoLogger.Printf("Rate limiting backed by redis at %s", cfg.RedisAddr)
	}
	limiter := middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rdb)
	limiter.StartCleanup(ctx, time.Minute)

	deps := router.Dependencies{
		Reservations: svc,
		Tokens:       utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer),
		Hub:          board,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.CORSOrigins,
	}
	if cfg.EnableTableService {
		deps.DB = db
	}
	r := router.SetupRouter(deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Graceful shutdown failed: %v", err)
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func newReservationStore(ctx context.Context, cfg *config.Config, db *gorm.DB) store.ReservationStore {
	switch cfg.StoreDriver {
	case "mongo":
		client, err := config.NewMongoClient(ctx, cfg)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		go func() {
			<-ctx.Done()
			_ = client.Disconnect(context.Background())
		}()
		mongoStore := store.NewMongoReservationStore(client.Database(cfg.MongoDatabase))
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			utils.ErrorLogger.WithError(err).Warn("reservation indexes not created")
		}
		utils.InfoLogger.WithFields(logrus.Fields{"database": cfg.MongoDatabase}).Info("Using MongoDB reservation store")
		return mongoStore
	case "sql":
		return store.NewGormReservationStore(db)
	default:
		utils.ErrorLogger.Fatalf("Unsupported STORE_DRIVER %q", cfg.StoreDriver)
		return nil
	}
}
