// Package server is the console host: a gin router that exposes the routing
// surface as JSON view descriptors and commands, the console event stream,
// and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/auth"
	"github.com/fentro/cms-console/internal/content"
	"github.com/fentro/cms-console/internal/guard"
	"github.com/fentro/cms-console/internal/leads"
	"github.com/fentro/cms-console/internal/media"
	"github.com/fentro/cms-console/internal/notifications"
	"github.com/fentro/cms-console/internal/shell"
	"github.com/fentro/cms-console/internal/toast"
)

const (
	viewportHintHeader       = "Sec-CH-Viewport-Width"
	defaultMaxSelectionBytes = 1 << 30
)

var (
	errMissingSession  = errors.New("session dependency required")
	errMissingShell    = errors.New("shell dependency required")
	errMissingToasts   = errors.New("toast host dependency required")
	errMissingCenter   = errors.New("notification center dependency required")
	errMissingLeads    = errors.New("lead board dependency required")
	errMissingLibrary  = errors.New("media library dependency required")
	errMissingUploads  = errors.New("upload session factory required")
	errMissingContent  = errors.New("content service dependency required")
	errMissingEvents   = errors.New("event dispatcher dependency required")
	errInvalidViewport = apperr.Validation("viewport_invalid", "Viewport width must be a positive number")
)

// UploadFactory opens a fresh upload session.
type UploadFactory func() (*media.Session, error)

type Dependencies struct {
	Session        *auth.Session
	Shell          *shell.Shell
	Toasts         *toast.Host
	Center         *notifications.Center
	Leads          *leads.Board
	Library        *media.Library
	Uploads        UploadFactory
	Content        *content.Service
	Events         *EventDispatcher
	Logger         *zap.Logger
	AllowedOrigins []string
	// MaxSelectionBytes bounds the whole multipart body of one upload
	// selection. Per-file size is only flagged, never refused.
	MaxSelectionBytes int64
	Heartbeat         time.Duration
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Session == nil:
		return nil, errMissingSession
	case deps.Shell == nil:
		return nil, errMissingShell
	case deps.Toasts == nil:
		return nil, errMissingToasts
	case deps.Center == nil:
		return nil, errMissingCenter
	case deps.Leads == nil:
		return nil, errMissingLeads
	case deps.Library == nil:
		return nil, errMissingLibrary
	case deps.Uploads == nil:
		return nil, errMissingUploads
	case deps.Content == nil:
		return nil, errMissingContent
	case deps.Events == nil:
		return nil, errMissingEvents
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	maxSelection := deps.MaxSelectionBytes
	if maxSelection <= 0 {
		maxSelection = defaultMaxSelectionBytes
	}

	handler := &httpHandler{
		session:      deps.Session,
		shell:        deps.Shell,
		toasts:       deps.Toasts,
		center:       deps.Center,
		leads:        deps.Leads,
		library:      deps.Library,
		uploads:      newUploadRegistry(deps.Uploads),
		content:      deps.Content,
		events:       deps.Events,
		logger:       logger,
		heartbeat:    heartbeat,
		maxSelection: maxSelection,
	}
	handler.bridgeEvents()

	router := gin.New()
	router.Use(handler.recoveryBoundary())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/session", handler.handleSession)
	api.PUT("/viewport", handler.handleViewport)
	authRoutes := api.Group("/auth")
	authRoutes.POST("/login", handler.handleLogin)
	authRoutes.POST("/logout", handler.handleLogout)
	authRoutes.POST("/register", handler.handleRegister)
	authRoutes.POST("/forgot-password", handler.handleForgotPassword)
	authRoutes.POST("/reset-password", handler.handleResetPassword)
	authRoutes.POST("/set-password/:token", handler.handleSetPassword)

	for _, route := range guard.PublicRoutes {
		router.GET(route.Pattern, handler.handlePublicView(route.Pattern))
	}

	private := router.Group(guard.DashboardPath, guard.Middleware(handler.session, guard.AccessPrivate))
	private.GET("/events", handler.handleEvents)

	gated := private.Group("", handler.viewportGate)
	gated.GET("", handler.handleDashboard)
	gated.GET("/menu", handler.handleMenu)
	gated.POST("/drawer", handler.handleDrawer)

	notificationRoutes := gated.Group("/notifications")
	notificationRoutes.GET("", handler.handleListNotifications)
	notificationRoutes.POST("/refresh", handler.handleRefreshNotifications)
	notificationRoutes.POST("/read-all", handler.handleMarkAllNotifications)
	notificationRoutes.POST("/:id/read", handler.handleMarkNotification)
	notificationRoutes.DELETE("/:id", handler.handleDeleteNotification)

	admin := gated.Group("", guard.Middleware(handler.session, guard.AccessAdmin))
	handler.registerLeadRoutes(admin.Group("/leads"))
	handler.registerMediaRoutes(admin.Group("/media"))
	handler.registerContentRoutes(admin.Group("/content/:collection"))

	return router, nil
}

type httpHandler struct {
	session      *auth.Session
	shell        *shell.Shell
	toasts       *toast.Host
	center       *notifications.Center
	leads        *leads.Board
	library      *media.Library
	uploads      *uploadRegistry
	content      *content.Service
	events       *EventDispatcher
	logger       *zap.Logger
	heartbeat    time.Duration
	maxSelection int64
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", viewportHintHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

// recoveryBoundary turns a panic anywhere below it into the generic error
// panel, rendered inside the shell chrome.
func (h *httpHandler) recoveryBoundary() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("request panicked",
			zap.String("path", c.Request.URL.Path),
			zap.String("reason", fmt.Sprint(recovered)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, h.shell.ErrorPanel(h.session.Snapshot(), c.Request.URL.Path))
	})
}

// viewportGate replaces every gated route with the splash when the viewport
// is too narrow.
func (h *httpHandler) viewportGate(c *gin.Context) {
	frame := h.shell.Frame(h.session.Snapshot(), c.Request.URL.Path, viewportHint(c))
	if frame.Blocked() {
		c.AbortWithStatusJSON(http.StatusOK, frame.Splash)
		return
	}
	c.Set(frameContextKey, frame)
	c.Next()
}

const frameContextKey = "fentro_frame"

func (h *httpHandler) frame(c *gin.Context) shell.Frame {
	if value, ok := c.Get(frameContextKey); ok {
		if frame, ok := value.(shell.Frame); ok {
			return frame
		}
	}
	return h.shell.Frame(h.session.Snapshot(), c.Request.URL.Path, viewportHint(c))
}

func viewportHint(c *gin.Context) int {
	width, err := strconv.Atoi(strings.TrimSpace(c.GetHeader(viewportHintHeader)))
	if err != nil || width < 0 {
		return 0
	}
	return width
}

// bridgeEvents forwards every state change worth streaming to the event
// dispatcher.
func (h *httpHandler) bridgeEvents() {
	h.toasts.Subscribe(func(item toast.Toast) {
		h.events.Publish(EventToast, item)
	})
	h.center.Subscribe(func(snapshot notifications.Snapshot) {
		h.events.Publish(EventNotifications, badgeOf(snapshot))
	})
	h.shell.Gate().Subscribe(func(state shell.GateState) {
		h.events.Publish(EventViewport, state)
	})
	h.session.Subscribe(func(snapshot auth.Snapshot) {
		h.events.Publish(EventSession, snapshot)
	})
}

// respondError writes err using the status its kind maps to.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	body := gin.H{"error": errorCode(err), "message": apperr.MessageOf(err)}
	var fields leads.FieldErrors
	if errors.As(err, &fields) {
		body["fields"] = fields
	}
	c.AbortWithStatusJSON(statusFor(err), body)
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCancelled:
		return http.StatusRequestTimeout
	case apperr.KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return string(apperr.KindOf(err))
}

func bindOptionalJSON(c *gin.Context, target any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(target); err != nil {
		return apperr.Validation("invalid_request", "The request body is not valid JSON")
	}
	return nil
}

func confirmed(c *gin.Context) bool {
	value, err := strconv.ParseBool(c.Query("confirm"))
	return err == nil && value
}

// detached keeps an upload running after the caller disconnects.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
