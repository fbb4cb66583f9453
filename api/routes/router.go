package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freightlinkhq/freightlink-backend/api/controllers"
	"github.com/freightlinkhq/freightlink-backend/api/middleware"
	"github.com/freightlinkhq/freightlink-backend/internal/auth"
	"github.com/freightlinkhq/freightlink-backend/internal/bids"
	"github.com/freightlinkhq/freightlink-backend/internal/cmr"
	"github.com/freightlinkhq/freightlink-backend/internal/cmrdocs"
	"github.com/freightlinkhq/freightlink-backend/internal/notifications"
	"github.com/freightlinkhq/freightlink-backend/internal/orders"
	"github.com/freightlinkhq/freightlink-backend/pkg/auth/session"
	"github.com/freightlinkhq/freightlink-backend/pkg/config"
	"github.com/freightlinkhq/freightlink-backend/pkg/enums"
	"github.com/freightlinkhq/freightlink-backend/pkg/logger"
	"github.com/freightlinkhq/freightlink-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger
	Redis  *redis.Client

	Sessions session.AccessSessionChecker

	AuthService          auth.Service
	RegisterService      auth.RegisterService
	AdminRegisterService auth.AdminRegisterService

	OrdersRepo    orders.Repository
	OrdersService orders.Service

	BidsService bids.Service

	CMRService  cmr.Service
	CMRRepo     cmr.Repository
	DocsService cmrdocs.Service

	NotificationsService notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.RegisterService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.Post("/register", controllers.AdminAuthRegister(p.AdminRegisterService, logg))
		}
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(string(enums.UserRoleCustomer), logg)).Post("/", controllers.CreateOrder(p.OrdersService, logg))
			r.Get("/", controllers.ListOrders(p.OrdersRepo, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.OrdersService, logg))
			r.Post("/{orderId}/transition", controllers.TransitionOrder(p.OrdersService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(p.OrdersService, logg))
			r.Get("/{orderId}/cmrs", controllers.GetCMRGroupForOrder(p.CMRService, p.OrdersService, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleContractor), logg)).Post("/{orderId}/bids", controllers.SubmitBid(p.BidsService, logg))
			r.Get("/{orderId}/bids", controllers.ListBidsForOrder(p.BidsService, logg))
		})

		r.Route("/v1/bids", func(r chi.Router) {
			r.Post("/{bidId}/accept", controllers.AcceptBid(p.BidsService, logg))
			r.Post("/{bidId}/reject", controllers.RejectBid(p.BidsService, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleContractor), logg)).Post("/{bidId}/withdraw", controllers.WithdrawBid(p.BidsService, logg))
		})

		r.Route("/v1/cmr-groups", func(r chi.Router) {
			r.Get("/{groupId}", controllers.GetCMRGroup(p.CMRService, p.OrdersService, logg))
			r.Post("/{groupId}/pickup-signatures", controllers.RecordPickupSignatures(p.CMRService, p.OrdersService, logg))
			r.Get("/{groupId}/document", controllers.DownloadCMRDocument(p.DocsService, p.OrdersService, p.CMRService, logg))
		})

		r.Route("/v1/cmrs", func(r chi.Router) {
			r.Post("/{cmrId}/complete-stop", controllers.CompleteStop(p.CMRService, p.CMRRepo, p.OrdersService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.NotificationsService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(p.NotificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.NotificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(p.Redis, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/{orderId}/override", controllers.AdminOverrideOrder(p.OrdersService, logg))
		})
		r.Route("/v1/bids", func(r chi.Router) {
			r.Post("/{bidId}/amend", controllers.AmendBid(p.BidsService, logg))
		})
	})

	return r
}
