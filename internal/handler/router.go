package handler

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/perfreview/internal/apilog"
	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/realtime"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
)

//go:embed static
var staticFS embed.FS

// PushPathPrefix はバックエンドからのプッシュAPIのパス接頭辞。CSRF検証から除外する。
const PushPathPrefix = "/internal/realtime/"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	API         *gateway.Client
	Sessions    *session.Manager
	Renderer    *Renderer
	Sanitizer   *security.Sanitizer
	RateLimiter *middleware.RateLimiter
	CSRF        middleware.CSRFConfig
	CSP         string
	Location    *time.Location

	// 通知
	Hub  http.Handler
	Push *realtime.PushHandler

	// 運用
	Metrics http.Handler
	Health  HealthChecker
	Logs    *apilog.Buffer
	Logger  *slog.Logger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ブラウザ向けルートのミドルウェアの実行順序:
//
//	Recovery → SecurityHeaders → Session → Logging → Scope → CSRF → RateLimit(General)
//
// /health・/metrics・プッシュAPIはセッションを持たない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSP))

	status := NewStatusHandler(deps.Health, deps.Logs, logger)

	// --- セッション不要のルート ---
	r.Get("/health", status.Health)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if static, err := fs.Sub(staticFS, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	// バックエンドの通知サービスからのプッシュ（共有鍵で認証）
	if deps.Push != nil {
		r.Route("/internal/realtime/users/{userId}", func(r chi.Router) {
			r.Use(middleware.NewLoggingMiddleware(logger))
			r.Use(deps.Push.RequireKey)
			r.Post("/notifications", deps.Push.Notification)
			r.Post("/unread-count", deps.Push.UnreadCount)
		})
	}

	// --- ブラウザ向けのルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Middleware)
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(NewScopeMiddleware(deps.API, logger))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		mountBrowserRoutes(r, deps, status, logger)
	})

	return r
}

func mountBrowserRoutes(r chi.Router, deps *RouterDeps, status *StatusHandler, logger *slog.Logger) {
	view := deps.Renderer
	san := deps.Sanitizer

	home := NewHomeHandler(view, logger)
	goals := NewGoalHandler(view, san, deps.Location, logger)
	steps := NewGoalStepHandler(san)
	reviews := NewReviewHandler(view, san, logger)
	respondent := NewRespondentReviewHandler(view, san, logger)
	users := NewUserHandler(view, logger)
	notifications := NewNotificationHandler(view)
	templates := NewQuestionTemplateHandler(san)
	analytics := NewAnalyticsHandler(view)

	if deps.Hub != nil {
		r.Handle("/notificationHub", deps.Hub)
	}
	r.Get("/auth/status", status.AuthStatus)
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

	// ホーム・認証
	r.Get("/", home.Index)
	r.Get("/login", home.LoginPage)
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", home.Login)
	r.Get("/register", home.RegisterPage)
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", home.Register)
	r.Get("/logout", home.Logout)
	r.With(requirePageAuth).Get("/dashboard", home.Dashboard)
	r.With(requirePageAuth).Get("/profile", home.Profile)

	// 未読件数は未認証でも {count:0} を返す
	r.Get("/notifications/unread-count", notifications.UnreadCount)

	// 画面
	page := r.With(requirePageAuth)
	page.Get("/goals", goals.Index)
	page.Get("/goals/create", goals.CreatePage)
	page.Post("/goals/create", goals.Create)
	page.Get("/goals/respondent", goals.RespondentGoals)
	page.Get("/goals/respondent/{goalId}", goals.RespondentGoalDetails)
	page.Get("/goals/{id}", goals.Details)

	page.Get("/reviews/create/{goalId}/{reviewType}", reviews.CreatePage)
	page.Post("/reviews/create", reviews.Create)
	page.Get("/reviews/completed", reviews.Completed)
	page.Get("/reviews/self-assessments", reviews.SelfAssessments)
	page.Get("/reviews/{id}", reviews.Details)

	managerPage := page.With(requireManager)
	managerPage.Get("/reviews/pending-manager", reviews.PendingManager)
	managerPage.Get("/reviews/complete-manager/{id}", reviews.CompleteManagerPage)
	managerPage.Post("/reviews/complete-manager/{id}", reviews.CompleteManager)
	managerPage.Get("/users/subordinates", users.Subordinates)

	page.Get("/respondent-reviews/create/{goalId}", respondent.CreatePage)
	page.Post("/respondent-reviews/create", respondent.Create)
	page.Get("/respondent-reviews/{id}", respondent.Details)

	page.Get("/users/profile", users.Profile)
	page.Get("/users/profile/{id}", users.ProfileByID)
	page.Get("/users/managers", users.Managers)
	page.Get("/users/{id}", users.Details)

	page.Get("/notifications", notifications.Index)
	page.Get("/analytics", analytics.Index)
	page.Get("/analytics/goal/{goalId}", analytics.Goal)

	// AJAX
	ajax := r.With(requireAjaxAuth)
	ajax.Post("/goals/{goalId}/complete", goals.Complete)
	ajax.Post("/goals/{goalId}/cancel", goals.Cancel)
	ajax.Post("/goal-steps/create/{goalId}", steps.Create)
	ajax.Post("/goal-steps/update/{stepId}", steps.Update)
	ajax.Post("/goal-steps/delete/{stepId}", steps.Delete)
	ajax.Post("/goal-steps/complete/{stepId}", steps.Complete)
	ajax.Post("/goal-steps/incomplete/{stepId}", steps.Incomplete)
	ajax.Post("/notifications/mark-read/{id}", notifications.MarkAsRead)
	ajax.Post("/notifications/mark-all-read", notifications.MarkAllAsRead)

	managerAjax := ajax.With(requireAjaxManager)
	managerAjax.Post("/reviews/{id}/final", reviews.Finalize)
	managerAjax.Get("/reviews/{id}/pending-manager-scores", reviews.PendingScores)
	managerAjax.Post("/reviews/{id}/score-manager-questions", reviews.ScoreManagerQuestions)
	managerAjax.Post("/users/check-user", users.CheckUser)
	managerAjax.Post("/users/assign-manager", users.AssignManager)

	// マネージャー向けJSON API
	api := r.With(requireAPIAuth, requireManager)
	api.Get("/question-templates", templates.List)
	api.Post("/question-templates", templates.Create)
	api.Get("/question-templates/{id}", templates.Get)
	api.Put("/question-templates/{id}", templates.Update)
	api.Delete("/question-templates/{id}", templates.Delete)

	// 診断
	api.Get("/diagnostics/api-logs", status.APILogs)
	api.Post("/diagnostics/api-logs/clear", status.ClearAPILogs)
}
