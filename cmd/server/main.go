package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/appolinair2355/Mon/internal/auth"
	"github.com/appolinair2355/Mon/internal/config"
	"github.com/appolinair2355/Mon/internal/repository/mongodb"
	"github.com/appolinair2355/Mon/internal/repository/redisstore"
	"github.com/appolinair2355/Mon/internal/repository/sheets"
	"github.com/appolinair2355/Mon/internal/repository/yamlfile"
	"github.com/appolinair2355/Mon/internal/scheduler"
	"github.com/appolinair2355/Mon/internal/server/handlers"
	"github.com/appolinair2355/Mon/internal/server/router"
	backupsvc "github.com/appolinair2355/Mon/internal/service/backup"
	"github.com/appolinair2355/Mon/internal/service/notify"
	"github.com/appolinair2355/Mon/internal/service/school"
	"github.com/appolinair2355/Mon/internal/service/spreadsheet"
	whatsappclient "github.com/appolinair2355/Mon/pkg/clients/whatsapp"
	"github.com/appolinair2355/Mon/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, closeStore := openStore(cfg, baseLogger)
	defer closeStore()

	registry := school.NewService(store, logger.Named(baseLogger, "svc.school"))
	workbooks := spreadsheet.NewService(registry, logger.Named(baseLogger, "svc.spreadsheet"))
	gate := auth.NewGate(cfg.Access.Passwords, cfg.Access.TokenSecret, cfg.Access.TokenTTL)

	var receipts notify.ReceiptSender = notify.Nop{}
	if cfg.WhatsApp.Enabled() {
		receipts = notify.NewWhatsAppReceipts(whatsappclient.NewClient(cfg.WhatsApp), cfg.WhatsApp.CountryCode, logger.Named(baseLogger, "svc.receipts"))
		baseLogger.Info("whatsapp payment receipts enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, payment receipts disabled")
	}

	var mirror sheets.Repository
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheetsRepo
	}

	backups := backupsvc.NewService(workbooks, registry, mirror, cfg.Backup.Dir, logger.Named(baseLogger, "svc.backup"))
	sched, err := scheduler.NewScheduler(cfg.Backup, backups, logger.Named(baseLogger, "scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	schoolHandler := handlers.NewSchoolHandler(registry, workbooks, gate, receipts, logger.Named(baseLogger, "handlers.school"))
	engine := router.New(schoolHandler, gate, logger.Named(baseLogger, "router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore selects the document backend and returns its release function.
func openStore(cfg *config.Config, log *zap.Logger) (school.Store, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch cfg.Store.Backend {
	case config.BackendMongo:
		repo, err := mongodb.NewDocumentStore(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			log.Fatal("failed to init mongodb store", zap.Error(err))
		}
		return repo, func() {
			if err := repo.Close(context.Background()); err != nil {
				log.Error("failed to close mongodb connection", zap.Error(err))
			}
		}
	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to init redis store", zap.Error(err))
		}
		store := redisstore.NewStore(client, cfg.Redis.Key, logger.Named(log, "repo.redis"))
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close redis connection", zap.Error(err))
			}
		}
	default:
		store, err := yamlfile.NewStore(cfg.Store.DataFile, logger.Named(log, "repo.yamlfile"))
		if err != nil {
			log.Fatal("failed to init yaml store", zap.Error(err))
		}
		return store, func() {}
	}
}
