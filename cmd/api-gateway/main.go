package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/clubhub-dev/clubhub-api/api/swagger"
	"github.com/clubhub-dev/clubhub-api/internal/handler"
	"github.com/clubhub-dev/clubhub-api/internal/middleware"
	"github.com/clubhub-dev/clubhub-api/internal/models"
	"github.com/clubhub-dev/clubhub-api/internal/repository"
	"github.com/clubhub-dev/clubhub-api/internal/service"
	"github.com/clubhub-dev/clubhub-api/pkg/cache"
	"github.com/clubhub-dev/clubhub-api/pkg/config"
	"github.com/clubhub-dev/clubhub-api/pkg/database"
	"github.com/clubhub-dev/clubhub-api/pkg/logger"
	corsmiddleware "github.com/clubhub-dev/clubhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clubhub-dev/clubhub-api/pkg/middleware/requestid"
)

// @title ClubHub API
// @version 0.1.0
// @description Participation and survey aggregation service for club operations
// @BasePath /
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	pollRepo := repository.NewPollRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	cacheEnabled := cfg.Attendance.CacheEnabled || cfg.Polls.CacheEnabled
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Attendance.CacheTTL, logr, cacheEnabled)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	rosterSvc := service.NewRosterService(studentRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(meetingRepo, studentRepo, cacheSvc, metricsSvc, validate, logr, cfg.Attendance.CacheTTL)
	pollSvc := service.NewPollService(pollRepo, studentRepo, cacheSvc, metricsSvc, logr, cfg.Polls.CacheTTL)
	scheduleSvc := service.NewScheduleService(appointmentRepo, taskRepo, validate, logr, cfg.Schedule.TaskDurationMinutes)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(attendanceSvc, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(rosterSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	pollHandler := handler.NewPollHandler(pollSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	authed := api.Group("", middleware.JWT(authSvc))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/students", studentHandler.List)
	authed.GET("/students/:id", studentHandler.Get)
	authed.POST("/students", adminOnly, studentHandler.Create)
	authed.POST("/students/bulk", adminOnly, studentHandler.CreateBulk)
	authed.PUT("/students/:id", adminOnly, studentHandler.Update)
	authed.DELETE("/students/:id", adminOnly, studentHandler.Delete)

	authed.GET("/attendance/snapshot", attendanceHandler.Snapshot)
	authed.GET("/attendance/meetings", attendanceHandler.History)
	authed.POST("/attendance/meetings", adminOnly, attendanceHandler.Save)
	authed.DELETE("/attendance/meetings/:id", adminOnly, attendanceHandler.Delete)
	authed.GET("/attendance/rollup", attendanceHandler.Rollup)
	authed.GET("/attendance/rollup/export/csv", attendanceHandler.ExportCSV)
	authed.GET("/attendance/rollup/export/pdf", attendanceHandler.ExportPDF)
	authed.GET("/attendance/stats", attendanceHandler.Stats)
	authed.GET("/attendance/search/student", attendanceHandler.SearchStudent)
	authed.GET("/attendance/search/date", attendanceHandler.SearchDate)

	authed.GET("/polls", pollHandler.List)
	authed.GET("/polls/:id", pollHandler.Get)
	authed.POST("/polls", adminOnly, pollHandler.Create)
	authed.PUT("/polls/:id", adminOnly, pollHandler.Update)
	authed.DELETE("/polls/:id", adminOnly, pollHandler.Delete)
	authed.POST("/polls/:id/votes", pollHandler.Vote)
	authed.GET("/polls/:id/votes/me", pollHandler.MyVote)
	authed.GET("/polls/:id/results", pollHandler.Results)
	authed.GET("/me/votes", pollHandler.AnsweredPolls)

	authed.GET("/schedule/day", scheduleHandler.Day)
	authed.GET("/schedule/month", scheduleHandler.Month)
	authed.GET("/schedule/appointments", adminOnly, scheduleHandler.ListAppointments)
	authed.POST("/schedule/appointments", adminOnly, scheduleHandler.CreateAppointment)
	authed.DELETE("/schedule/appointments", adminOnly, scheduleHandler.DeleteAllAppointments)
	authed.PUT("/schedule/appointments/:id", adminOnly, scheduleHandler.UpdateAppointment)
	authed.DELETE("/schedule/appointments/:id", adminOnly, scheduleHandler.DeleteAppointment)

	authed.GET("/tasks", scheduleHandler.ListTasks)
	authed.POST("/tasks", adminOnly, scheduleHandler.CreateTask)
	authed.PUT("/tasks/:id", adminOnly, scheduleHandler.UpdateTask)
	authed.PUT("/tasks/:id/done", scheduleHandler.SetTaskDone)
	authed.DELETE("/tasks/:id", adminOnly, scheduleHandler.DeleteTask)

	authed.GET("/admin/status", adminOnly, metricsHandler.Status)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
