package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fentro/cms-console/internal/notifications"
)

type badge struct {
	Unread  int  `json:"unreadCount"`
	Total   int  `json:"total"`
	Loading bool `json:"loading"`
}

func badgeOf(snapshot notifications.Snapshot) badge {
	return badge{Unread: snapshot.Unread, Total: len(snapshot.Items), Loading: snapshot.Loading}
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	snapshot := h.center.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"unreadCount": snapshot.Unread,
		"total":       len(snapshot.Items),
		"loading":     snapshot.Loading,
		"rows":        snapshot.Rows,
		"items":       snapshot.Items,
	})
}

func (h *httpHandler) handleRefreshNotifications(c *gin.Context) {
	h.center.Refresh()
	c.JSON(http.StatusAccepted, badgeOf(h.center.Snapshot()))
}

func (h *httpHandler) handleMarkNotification(c *gin.Context) {
	if err := h.center.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, badgeOf(h.center.Snapshot()))
}

func (h *httpHandler) handleMarkAllNotifications(c *gin.Context) {
	if err := h.center.MarkAllAsRead(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, badgeOf(h.center.Snapshot()))
}

func (h *httpHandler) handleDeleteNotification(c *gin.Context) {
	if err := h.center.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, badgeOf(h.center.Snapshot()))
}

// handleEvents streams console events until the client goes away. The
// first event carries the current badge and viewport so a fresh stream
// needs no extra request.
func (h *httpHandler) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.events.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(EventNotifications, badgeOf(h.center.Snapshot()))
	c.SSEvent(EventViewport, h.shell.Gate().State())
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message := <-stream:
			c.SSEvent(message.Type, message.Payload)
			return true
		case tick := <-ticker.C:
			c.SSEvent(eventHeartbeat, gin.H{"source": eventSource, "at": tick.UTC()})
			return true
		}
	})
	h.logger.Debug("event stream closed", zap.String("remote", c.ClientIP()))
}
