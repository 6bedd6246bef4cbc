// Package server assembles the gin engine: global middleware, the versioned
// route table and the capability gates in front of each group.
package server

import (
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/isagip/barangay-dashboard-api/internal/handler"
	"github.com/isagip/barangay-dashboard-api/internal/middleware"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/service"
	"github.com/isagip/barangay-dashboard-api/pkg/config"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/logger"
	corsmiddleware "github.com/isagip/barangay-dashboard-api/pkg/middleware/cors"
	reqidmiddleware "github.com/isagip/barangay-dashboard-api/pkg/middleware/requestid"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Access        *handler.AccessHandler
	Reports       *handler.ReportHandler
	Ambulances    *handler.AmbulanceHandler
	Registrations *handler.RegistrationHandler
	Accounts      *handler.AccountHandler
	Residents     *handler.ResidentHandler
	Preferences   *handler.PreferenceHandler
	Exports       *handler.ExportHandler
	Dashboard     *handler.DashboardHandler
	Uploads       *handler.UploadHandler
	Streams       *handler.StreamHandler
	Metrics       *handler.MetricsHandler
}

// Dependencies are the cross-cutting collaborators of the middleware chain.
type Dependencies struct {
	Tokens       middleware.TokenValidator
	Access       middleware.CapabilityChecker
	Availability middleware.Availability
	Metrics      *service.MetricsService
	LoginLimiter *middleware.IPRateLimiter
}

// NewRouter builds the engine.
func NewRouter(cfg *config.Config, logr *zap.Logger, deps Dependencies, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		prefix + "/stream",
		prefix + "/ws",
		prefix + "/files",
		"/metrics",
	})))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	authn := middleware.JWT(deps.Tokens)
	gate := func(caps ...rbac.Capability) gin.HandlerFunc {
		return middleware.RequireCapability(deps.Access, caps...)
	}

	auth := api.Group("/auth")
	{
		auth.POST("/login", middleware.RateLimit(deps.LoginLimiter), h.Auth.Login)
		auth.POST("/viewer", middleware.RateLimit(deps.LoginLimiter), h.Auth.Viewer)
		auth.POST("/logout", authn, h.Auth.Logout)
		auth.GET("/session", authn, h.Auth.Session)
		auth.POST("/change-password", authn, middleware.RequireFullTier(), middleware.ReadOnly(deps.Availability), h.Auth.ChangePassword)
	}

	api.GET("/access/registry", h.Access.Registry)
	api.GET("/access/menu", authn, h.Access.Menu)
	api.GET("/access/destination", authn, h.Access.Destination)

	api.GET("/files/:token", h.Uploads.Download)
	api.GET("/registrations/feedback/:identity", h.Registrations.Feedback)

	open := api.Group("", middleware.ReadOnly(deps.Availability))
	{
		open.POST("/uploads", middleware.OptionalJWT(deps.Tokens), h.Uploads.Upload)
		open.POST("/registrations/updates", h.Registrations.SubmitUpdate)
		open.POST("/registrations/residents", h.Registrations.SubmitRegistration)
	}

	secured := api.Group("", authn, middleware.ReadOnly(deps.Availability))

	reports := secured.Group("/reports")
	{
		reports.GET("", gate(rbac.CapReports, rbac.CapReportsViewing, rbac.CapDashboard), h.Reports.List)
		reports.GET("/:id", gate(rbac.CapReports, rbac.CapReportsViewing), h.Reports.Get)
		reports.GET("/:id/history", gate(rbac.CapReports, rbac.CapReportsViewing), h.Reports.History)

		write := reports.Group("", gate(rbac.CapReports))
		write.POST("", h.Reports.Create)
		write.POST("/:id/relay", h.Reports.Relay)
		write.POST("/:id/dispatch", h.Reports.Dispatch)
		write.POST("/:id/respond", h.Reports.ToggleResponded)
		write.POST("/:id/severity", h.Reports.SetSeverity)
		write.POST("/:id/responder", h.Reports.AssignResponder)
		write.POST("/:id/ambulance", h.Reports.AssignAmbulance)
		write.POST("/:id/resolve", h.Reports.Resolve)
		write.POST("/:id/notes", h.Reports.AddNote)
		write.POST("/:id/photo", h.Reports.AttachPhoto)
	}

	ambulances := secured.Group("/ambulances", gate(rbac.CapAmbulance, rbac.CapDashboard))
	{
		ambulances.GET("", h.Ambulances.List)
		ambulances.GET("/:id", h.Ambulances.Get)
		ambulances.POST("", gate(rbac.CapAmbulance), h.Ambulances.Create)
		ambulances.POST("/:id/assign", gate(rbac.CapAmbulance), h.Ambulances.Assign)
		ambulances.POST("/:id/release", gate(rbac.CapAmbulance), h.Ambulances.Release)
		ambulances.POST("/:id/maintenance", gate(rbac.CapAmbulance), h.Ambulances.Maintenance)
		ambulances.POST("/:id/status", gate(rbac.CapAmbulance), h.Ambulances.SetStatus)
	}

	registrations := secured.Group("/registrations", gate(rbac.CapRegistration, rbac.CapResidentManagement))
	{
		registrations.GET("", h.Registrations.List)
		registrations.POST("/:id/approve", h.Registrations.Approve)
		registrations.POST("/:id/reject", h.Registrations.Reject)
	}

	accounts := secured.Group("/accounts", gate(rbac.CapRegistration))
	{
		accounts.GET("/staff", h.Accounts.List)
		accounts.POST("/staff", h.Accounts.RegisterStaff)
	}

	residents := secured.Group("/residents", gate(rbac.CapResidentManagement, rbac.CapRegistration))
	{
		residents.GET("", h.Residents.List)
		residents.POST("", h.Residents.Create)
		residents.GET("/:id", h.Residents.Get)
		residents.PUT("/:id", gate(rbac.CapResidentManagement), h.Residents.Update)
		residents.DELETE("/:id", gate(rbac.CapResidentManagement), h.Residents.Delete)
		residents.POST("/:id/reset-password", gate(rbac.CapResidentManagement), h.Residents.ResetPassword)
	}

	prefs := secured.Group("/preferences", gate(rbac.CapSettings))
	{
		prefs.GET("", h.Preferences.Get)
		prefs.PUT("", middleware.RequireFullTier(), h.Preferences.Update)
	}

	exports := secured.Group("/exports", gate(rbac.CapDashboard, rbac.CapReports))
	{
		exports.GET("/reports/dashboard.csv", h.Exports.DashboardCSV)
		exports.GET("/reports/received.csv", h.Exports.ReceivedCSV)
		exports.GET("/dashboard.pdf", h.Exports.DashboardPDF)
	}

	secured.GET("/dashboard/summary", gate(rbac.CapDashboard), h.Dashboard.Summary)
	secured.GET("/notifications", gate(rbac.CapDashboard, rbac.CapReports), h.Dashboard.Notifications)

	// Per-collection checks happen in the stream handler.
	api.GET("/stream/:collection", authn, h.Streams.SSE)
	api.GET("/ws/:collection", authn, h.Streams.WebSocket)

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})
	return r
}
