package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mtss-api/internal/repository"
	"github.com/noah-isme/mtss-api/internal/service"
	"github.com/noah-isme/mtss-api/pkg/cache"
	"github.com/noah-isme/mtss-api/pkg/config"
	"github.com/noah-isme/mtss-api/pkg/database"
	"github.com/noah-isme/mtss-api/pkg/jobs"
	"github.com/noah-isme/mtss-api/pkg/logger"
	"github.com/noah-isme/mtss-api/pkg/storage"
	"github.com/noah-isme/mtss-api/pkg/tracing"
)

// @title MTSS Progress API
// @version 0.1.0
// @description Weekly intervention progress ledger, missing-log and referral reports.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server exited", zap.Error(err))
	}
	logr.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	shutdownTracing := tracing.Init(ctx, cfg, logr)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	redisClient := connectCache(ctx, cfg, logr)
	if redisClient != nil {
		defer redisClient.Close()
	}

	wired, err := buildApp(cfg, db, redisClient, logr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, wired, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if wired.queue != nil {
		wired.queue.Start(gctx)
		defer wired.queue.Stop()
		wired.reports.RecoverPendingJobs(gctx)
		wired.reports.StartCleanup(gctx)
	}

	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) *redis.Client {
	if !cfg.Cache.Enabled {
		return nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("report cache disabled", zap.Error(err))
		return nil
	}
	return client
}

// app holds the wired services the router needs.
type app struct {
	db            *sqlx.DB
	cacheRepo     *repository.CacheRepository
	audit         *repository.AuditRepository
	tokens        *service.TokenService
	metrics       *service.MetricsService
	students      *service.StudentService
	interventions *service.InterventionService
	progress      *service.ProgressService
	meetings      *service.MeetingService
	missingLogs   *service.MissingLogService
	referrals     *service.ReferralService
	reports       *service.ReportService
	queue         *jobs.Queue
}

func buildApp(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*app, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	var cacheRepo *repository.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false)
	}

	studentRepo := repository.NewStudentRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	reportRepo := repository.NewMTSSReportRepository(db)

	a := &app{
		db:        db,
		cacheRepo: cacheRepo,
		audit:     repository.NewAuditRepository(db),
		metrics:   metrics,
		tokens: service.NewTokenService(service.TokenConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}),
		students:      service.NewStudentService(studentRepo, validate, logr),
		interventions: service.NewInterventionService(interventionRepo, studentRepo, cacheSvc, validate, logr),
		progress:      service.NewProgressService(progressRepo, interventionRepo, studentRepo, cacheSvc, metrics, validate, logr),
		meetings:      service.NewMeetingService(meetingRepo, studentRepo, interventionRepo, cacheSvc, validate, logr),
		missingLogs:   service.NewMissingLogService(reportRepo, cacheSvc, metrics, cfg.Calendar.Location(), logr),
		referrals: service.NewReferralService(service.ReferralServiceParams{
			Stats:    reportRepo,
			Students: studentRepo,
			Cache:    cacheSvc,
			Metrics:  metrics,
			Thresholds: service.ReferralThresholds{
				LoadMinActive:     cfg.Referral.LoadMinActive,
				ChronicMinLogs:    cfg.Referral.ChronicMinLogs,
				ChronicMaxAvg:     cfg.Referral.ChronicMaxAvg,
				CombinedMinActive: cfg.Referral.CombinedMinActive,
				CombinedMinLogs:   cfg.Referral.CombinedMinLogs,
				CombinedAvgBelow:  cfg.Referral.CombinedAvgBelow,
			},
			Validator: validate,
			Logger:    logr,
		}),
	}

	if !cfg.Exports.Enabled {
		return a, nil
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(service.ExportSources{
		MissingLogs: a.missingLogs,
		Referrals:   a.referrals,
		Progress:    a.progress,
		Students:    studentRepo,
	}, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	jobRepo := repository.NewReportRepository(db)
	worker := service.NewReportWorker(jobRepo, exporter, metrics, logr)
	a.queue = jobs.NewQueue("report-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	a.reports = service.NewReportService(jobRepo, a.queue, exporter, metrics, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	return a, nil
}
