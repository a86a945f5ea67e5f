package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mtss-api/api/swagger"
	"github.com/noah-isme/mtss-api/internal/handler"
	"github.com/noah-isme/mtss-api/internal/middleware"
	"github.com/noah-isme/mtss-api/internal/models"
	"github.com/noah-isme/mtss-api/pkg/config"
	"github.com/noah-isme/mtss-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mtss-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mtss-api/pkg/middleware/requestid"
)

var (
	staff       = []models.UserRole{models.RoleAdmin, models.RoleCoordinator, models.RoleTeacher}
	coordinator = []models.UserRole{models.RoleAdmin, models.RoleCoordinator}
)

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	checks := map[string]handler.Pinger{"postgres": a.db}
	if a.cacheRepo != nil {
		checks["redis"] = handler.PingFunc(a.cacheRepo.Ping)
	}
	ops := handler.NewMetricsHandler(a.metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	exportHandler := handler.NewExportHandler(a.reports)
	if a.reports != nil {
		// Downloads authenticate through the signed token alone.
		api.GET("/export/:token", exportHandler.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(a.tokens))

	audit := func(action, resource, idParam string) gin.HandlerFunc {
		return middleware.Audit(a.audit, logr, action, resource, idParam)
	}
	staffOnly := middleware.RequireRoles(staff...)
	coordOnly := middleware.RequireRoles(coordinator...)

	students := handler.NewStudentHandler(a.students)
	secured.GET("/students", staffOnly, students.List)
	secured.POST("/students", coordOnly, students.Create)
	secured.GET("/students/:id", staffOnly, students.Get)

	interventions := handler.NewInterventionHandler(a.interventions)
	secured.GET("/students/:id/interventions", staffOnly, interventions.ListForStudent)
	secured.POST("/students/:id/interventions", coordOnly, interventions.Create)
	secured.GET("/interventions/:id", staffOnly, interventions.Get)
	secured.PATCH("/interventions/:id/status", coordOnly, audit(models.AuditActionInterventionStatus, "intervention", "id"), interventions.UpdateStatus)

	progress := handler.NewProgressHandler(a.progress)
	secured.POST("/progress", staffOnly, audit(models.AuditActionProgressUpsert, "progress", ""), progress.Upsert)
	secured.GET("/students/:id/progress", staffOnly, progress.ListForStudent)
	secured.DELETE("/progress/:id", coordOnly, audit(models.AuditActionProgressDelete, "progress", "id"), progress.Delete)
	secured.GET("/interventions/:id/progress/summary", staffOnly, progress.Summary)

	meetings := handler.NewMeetingHandler(a.meetings)
	secured.POST("/meetings", coordOnly, audit(models.AuditActionMeetingCreate, "meeting", "id"), meetings.Create)
	secured.GET("/meetings/:id", staffOnly, meetings.Get)
	secured.GET("/students/:id/meetings", staffOnly, meetings.ListForStudent)

	reports := handler.NewMTSSReportHandler(a.missingLogs, a.referrals)
	secured.GET("/reports/missing-logs", coordOnly, reports.MissingLogs)
	secured.GET("/reports/referral-candidates", coordOnly, reports.ReferralCandidates)
	secured.GET("/reports/monitored-students", coordOnly, reports.MonitoredStudents)
	secured.POST("/students/:id/monitoring", coordOnly, audit(models.AuditActionMonitoringStart, "student", "id"), reports.StartMonitoring)
	secured.DELETE("/students/:id/monitoring", coordOnly, audit(models.AuditActionMonitoringStop, "student", "id"), reports.StopMonitoring)

	if a.reports != nil {
		secured.POST("/exports", staffOnly, exportHandler.Generate)
		secured.GET("/exports/:id", staffOnly, exportHandler.Status)
	}

	return r
}
