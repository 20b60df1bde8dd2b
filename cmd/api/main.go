// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/report-card/internal/achievements"
	"github.com/yourusername/report-card/internal/auth"
	"github.com/yourusername/report-card/internal/authz"
	"github.com/yourusername/report-card/internal/config"
	"github.com/yourusername/report-card/internal/database"
	"github.com/yourusername/report-card/internal/grades"
	"github.com/yourusername/report-card/internal/jobs"
	"github.com/yourusername/report-card/internal/reports"
	"github.com/yourusername/report-card/internal/repository"
	"github.com/yourusername/report-card/internal/school"
	"github.com/yourusername/report-card/internal/storage"
	"github.com/yourusername/report-card/internal/students"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// データベース接続とマイグレーション
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.MigrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// リポジトリ
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	termRepo := repository.NewTermRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	categoryRepo := repository.NewAchievementCategoryRepository(db)

	// 認証と認可
	sessionTTL := time.Duration(cfg.SessionExpireMinutes) * time.Minute
	authService := auth.NewService(userRepo, sessionRepo, sessionTTL)
	policy := authz.NewPolicy(repository.NewDirectory(studentRepo, classRepo, assignmentRepo))

	// ドメインサービス
	studentService := students.NewService(studentRepo, policy)
	schoolService := school.NewService(classRepo, termRepo, policy)
	gradeService := grades.NewService(gradeRepo, policy)
	achievementService := achievements.NewService(studentRepo, termRepo, gradeRepo, categoryRepo, policy)

	artifactStore, err := storage.NewLocal(cfg.ArtifactDir)
	if err != nil {
		log.Fatalf("Failed to prepare artifact storage: %v", err)
	}
	reportService := reports.NewService(studentRepo, termRepo, gradeRepo, policy, artifactStore)

	// 非同期ジョブ（帳票生成と定期セッション掃除）
	jobManager, err := setupJobs(cfg, reportService, authService)
	if err != nil {
		log.Fatalf("Failed to set up job manager: %v", err)
	}
	jobManager.StartWorkers()
	defer jobManager.Shutdown(context.Background())

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))

	// セッション解決と CSRF 保護は全ルート共通
	sessionMiddleware := auth.NewSessionMiddleware(authService, cfg, log.Default())
	csrfGuard := auth.NewCSRFGuard(authService, cfg, log.Default())
	router.Use(sessionMiddleware.Handler())
	router.Use(csrfGuard.Handler())

	setupRoutes(router, cfg, &handlers{
		auth:         auth.NewHandler(authService, cfg),
		students:     studentService,
		school:       schoolService,
		grades:       gradeService,
		achievements: achievementService,
		reports:      reportService,
		jobs:         jobManager,
	})

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

type handlers struct {
	auth         *auth.Handler
	students     *students.Service
	school       *school.Service
	grades       *grades.Service
	achievements *achievements.Service
	reports      *reports.Service
	jobs         *jobs.Manager
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "report-card-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, h *handlers) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api/v1")
	{
		authRoutes := api.Group("/auth")
		{
			// ログイン時はセッション未生成なので CSRF 検証は免除される
			authRoutes.POST("/login", h.auth.Login)
			authRoutes.POST("/logout", h.auth.Logout)
			authRoutes.GET("/status", h.auth.Status)

			authed := authRoutes.Group("")
			authed.Use(auth.RequireAuth())
			{
				authed.POST("/logout-all", h.auth.LogoutAll)
				authed.GET("/me", h.auth.Me)
				authed.POST("/cleanup-sessions", h.auth.CleanupSessions)
			}
		}

		protected := api.Group("")
		protected.Use(auth.RequireAuth())
		{
			protected.GET("/students", students.ListHandler(h.students))
			protected.GET("/students/:id", students.GetHandler(h.students))
			protected.GET("/students/:id/grades", grades.ListHandler(h.grades))
			protected.PUT("/students/:id/grades", grades.UpdateHandler(h.grades))
			protected.GET("/students/:id/grades/summary", grades.SummaryHandler(h.grades))
			protected.GET("/students/:id/achievements/suggestions", achievements.SuggestHandler(h.achievements))

			protected.GET("/classes", school.ClassesHandler(h.school))
			protected.GET("/classes/:id", school.ClassHandler(h.school))
			protected.GET("/classes/:id/students", students.ClassStudentsHandler(h.students))
			protected.GET("/terms", school.TermsHandler(h.school))
			protected.GET("/subjects", grades.SubjectsHandler(h.grades))

			protected.POST("/reports/generate", reports.GenerateHandler(h.reports, h.jobs))
			protected.GET("/jobs/:id", jobStatusHandler(h.jobs))
			protected.GET("/jobs/:id/download", jobDownloadHandler(h.jobs, h.reports))
		}
	}
}
