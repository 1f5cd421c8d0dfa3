package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/auth"
	"github.com/fentro/cms-console/internal/content"
	"github.com/fentro/cms-console/internal/guard"
	"github.com/fentro/cms-console/internal/shell"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailPayload struct {
	Email string `json:"email"`
}

type passwordPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type viewportPayload struct {
	Width int `json:"width"`
}

type sessionResponse struct {
	auth.Snapshot
	IsAdmin bool `json:"isAdmin"`
}

func sessionView(snapshot auth.Snapshot) sessionResponse {
	return sessionResponse{Snapshot: snapshot, IsAdmin: snapshot.IsAdmin()}
}

// writeResult renders an Ok/Err variant.
func writeResult[T any](c *gin.Context, result apperr.Result[T], field string) {
	if !result.Success() {
		c.JSON(statusFor(apperr.New(result.Kind, "", "")), gin.H{
			"success": false,
			"kind":    result.Kind,
			"message": result.Message,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, field: result.Value})
}

func (h *httpHandler) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(h.session.Snapshot()))
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Enter a valid email and password."))
		return
	}
	result := h.session.SignIn(c.Request.Context(), request.Email, request.Password)
	writeResult(c, result, "user")
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(h.session.SignOut(c.Request.Context())))
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Name, email, and password are required."))
		return
	}
	writeResult(c, h.session.Register(c.Request.Context(), request.Name, request.Email, request.Password), "message")
}

func (h *httpHandler) handleForgotPassword(c *gin.Context) {
	var request emailPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Enter a valid email address."))
		return
	}
	writeResult(c, h.session.ForgotPassword(c.Request.Context(), request.Email), "message")
}

func (h *httpHandler) handleResetPassword(c *gin.Context) {
	var request passwordPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "A reset token and a new password are required."))
		return
	}
	writeResult(c, h.session.ResetPassword(c.Request.Context(), request.Token, request.Password), "message")
}

func (h *httpHandler) handleSetPassword(c *gin.Context) {
	var request passwordPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "A new password is required."))
		return
	}
	writeResult(c, h.session.SetPassword(c.Request.Context(), c.Param("token"), request.Password), "message")
}

func (h *httpHandler) handleViewport(c *gin.Context) {
	var request viewportPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.Width <= 0 {
		h.respondError(c, errInvalidViewport)
		return
	}
	h.shell.Gate().Resize(request.Width)
	c.JSON(http.StatusOK, h.shell.Gate().State())
}

// handlePublicView describes a public route. Slug routes resolve the
// published page or post they name.
func (h *httpHandler) handlePublicView(pattern string) gin.HandlerFunc {
	view := viewName(pattern)
	return func(c *gin.Context) {
		if splash := h.splashFor(c); splash != nil {
			c.JSON(http.StatusOK, splash)
			return
		}
		body := gin.H{"view": view, "session": sessionView(h.session.Snapshot())}
		if token := c.Param("token"); token != "" {
			body["token"] = token
		}
		if slug := c.Param("slug"); slug != "" {
			collection := string(content.Pages)
			if strings.HasPrefix(pattern, "/blog/") {
				collection = string(content.Blogs)
			}
			document, err := h.content.Published(c.Request.Context(), collection, slug)
			if err != nil {
				h.respondError(c, err)
				return
			}
			body["document"] = document
		}
		c.JSON(http.StatusOK, body)
	}
}

func (h *httpHandler) splashFor(c *gin.Context) *shell.Splash {
	width := h.shell.Gate().Effective(viewportHint(c))
	if !shell.Blocks(width) {
		return nil
	}
	splash := shell.NewSplash(width)
	return &splash
}

func viewName(pattern string) string {
	trimmed := strings.Trim(pattern, "/")
	if head, _, found := strings.Cut(trimmed, "/:"); found {
		trimmed = head
	}
	return strings.ReplaceAll(trimmed, "/", "_")
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"view":          "dashboard",
		"frame":         h.frame(c),
		"notifications": badgeOf(h.center.Snapshot()),
	})
}

func (h *httpHandler) handleMenu(c *gin.Context) {
	current := c.Query("path")
	if current == "" {
		current = guard.DashboardPath
	}
	c.JSON(http.StatusOK, gin.H{"sections": shell.Menu(h.session.IsAdmin(), current)})
}

type drawerPayload struct {
	Action string `json:"action"`
	Key    string `json:"key,omitempty"`
}

func (h *httpHandler) handleDrawer(c *gin.Context) {
	var request drawerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Drawer action is required"))
		return
	}
	drawer := h.shell.Drawer()
	switch request.Action {
	case "open":
		drawer.Open()
	case "close":
		drawer.Close()
	case "toggle":
		drawer.Toggle()
	case "key":
		drawer.HandleKey(request.Key)
	default:
		h.respondError(c, apperr.Validation("drawer_action", "Drawer action must be open, close, toggle, or key"))
		return
	}
	c.JSON(http.StatusOK, drawer.State())
}
