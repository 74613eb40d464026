package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/proctor_backend/internal/config"
	"github.com/zaqqye/proctor_backend/internal/controllers"
	"github.com/zaqqye/proctor_backend/internal/middleware"
	"github.com/zaqqye/proctor_backend/internal/telemetry"
	"github.com/zaqqye/proctor_backend/internal/violations"
	"github.com/zaqqye/proctor_backend/internal/ws"
)

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, hubs *ws.Hubs, tel *telemetry.Publisher) {
	accessTTL, err := time.ParseDuration(cfg.AccessTokenTTLMinutes + "m")
	if err != nil || accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := 30 * 24 * time.Hour
	if days, err := strconv.Atoi(cfg.RefreshTokenTTLDays); err == nil && days > 0 {
		refreshTTL = time.Duration(days) * 24 * time.Hour
	}

	store := &violations.Store{DB: db}

	authCtrl := &controllers.AuthController{
		DB:            db,
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshJWTSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
	adminCtrl := &controllers.AdminController{DB: db}
	examCtrl := &controllers.ExamController{DB: db}
	violationCtrl := &controllers.ViolationController{DB: db, Store: store, Hubs: hubs, Telemetry: tel}
	reportCtrl := &controllers.ReportController{DB: db, Store: store}
	submissionCtrl := &controllers.SubmissionController{DB: db, Hubs: hubs}

	// Public
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", authCtrl.Login)
		auth.POST("/refresh", authCtrl.Refresh)
	}

	// Protected
	authMW := middleware.AuthMiddleware(db, middleware.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		JWTExpiresIn: accessTTL,
	})
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/auth/me", authCtrl.Me)
		api.POST("/auth/logout", authCtrl.Logout)

		// Student-facing proctoring surface
		student := api.Group("", middleware.RequireRoles("student"))
		{
			student.POST("/violations/log", violationCtrl.Log)
			student.POST("/exams/:exam_id/submit", submissionCtrl.Submit)
		}

		// Admin-only
		admin := api.Group("/admin", middleware.RequireRoles("admin"))
		{
			admin.GET("/users", adminCtrl.ListUsers)
			admin.POST("/users", authCtrl.Register)
			admin.GET("/users/:user_id", adminCtrl.GetUser)
			admin.PUT("/users/:user_id", adminCtrl.UpdateUser)
			admin.DELETE("/users/:user_id", adminCtrl.DeactivateUser)

			admin.GET("/exams", examCtrl.List)
			admin.POST("/exams", examCtrl.Create)
			admin.GET("/exams/:exam_id", examCtrl.Get)
			admin.PUT("/exams/:exam_id", examCtrl.Update)
			admin.DELETE("/exams/:exam_id", examCtrl.Deactivate)

			admin.POST("/exams/:exam_id/proctors", examCtrl.AssignProctor)
			admin.DELETE("/exams/:exam_id/proctors/:user_id", examCtrl.UnassignProctor)
			admin.GET("/exams/:exam_id/proctors", examCtrl.ListProctors)
			admin.POST("/exams/:exam_id/students", examCtrl.AssignStudent)
			admin.DELETE("/exams/:exam_id/students/:user_id", examCtrl.UnassignStudent)
			admin.GET("/exams/:exam_id/students", examCtrl.ListStudents)

			admin.PUT("/violations/:id/review", violationCtrl.Review)
			admin.PUT("/submissions/:submission_id/questions/:question_id/score", submissionCtrl.UpdateScore)
		}

		// Reporting: proctors see their exams, admins see everything
		reports := api.Group("/admin/exams/:exam_id/violations", middleware.RequireRoles("proctor", "admin"))
		{
			reports.GET("", violationCtrl.List)
			reports.GET("/summary", reportCtrl.Summary)
			reports.GET("/high-risk", reportCtrl.HighRisk)
			reports.GET("/recent", reportCtrl.Recent)
		}

		// Live feeds
		api.GET("/ws/violations", ws.ViolationFeedHandler(db, hubs.Violations))
		api.GET("/ws/student", ws.StudentFeedHandler(hubs.Student))
	}
}
