package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/leads"
)

type transitionPayload struct {
	Status   leads.Status `json:"status"`
	Feedback string       `json:"feedback"`
}

type searchPayload struct {
	Term string `json:"term"`
}

func (h *httpHandler) registerLeadRoutes(group *gin.RouterGroup) {
	group.GET("", h.handleListLeads)
	group.PUT("/search", h.handleSearchLeads)
	group.GET("/:id", h.handleGetLead)
	group.DELETE("/:id", h.handleDeleteLead)
	group.GET("/:id/targets", h.handleLeadTargets)
	group.POST("/:id/status", h.handleLeadTransition)
	group.POST("/:id/meetings", h.handleScheduleMeeting)
	group.GET("/:id/history", h.handleLeadHistory)
	group.POST("/:id/history/:entry/toggle", h.handleToggleLeadHistory)
}

// handleListLeads applies sort and page from the query, then returns the
// board. Without either it simply reloads.
func (h *httpHandler) handleListLeads(c *gin.Context) {
	ctx := c.Request.Context()
	sortField, sortGiven := c.GetQuery("sort")
	pageValue, pageGiven := c.GetQuery("page")

	if sortGiven {
		if err := h.leads.SetSort(ctx, leads.SortField(sortField), leads.SortOrder(c.Query("order"))); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if pageGiven {
		page, err := strconv.Atoi(pageValue)
		if err != nil {
			h.respondError(c, leads.ErrInvalidPage)
			return
		}
		if err := h.leads.SetPage(ctx, page); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if !sortGiven && !pageGiven {
		if err := h.leads.Load(ctx); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.leads.Snapshot())
}

func (h *httpHandler) handleSearchLeads(c *gin.Context) {
	var request searchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Search term is required"))
		return
	}
	h.leads.SetSearch(detached(c), request.Term)
	c.JSON(http.StatusAccepted, h.leads.Snapshot())
}

func (h *httpHandler) handleGetLead(c *gin.Context) {
	lead, err := h.leads.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead, "targets": leads.AvailableTargets(lead)})
}

func (h *httpHandler) handleLeadTargets(c *gin.Context) {
	lead, ok := h.leads.Lead(c.Param("id"))
	if !ok {
		var err error
		if lead, err = h.leads.Detail(c.Request.Context(), c.Param("id")); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"targets": leads.AvailableTargets(lead)})
}

func (h *httpHandler) handleLeadTransition(c *gin.Context) {
	var request transitionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, leads.ErrTargetRequired)
		return
	}
	lead, err := h.leads.Transition(c.Request.Context(), c.Param("id"), request.Status, request.Feedback)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lead": lead, "targets": leads.AvailableTargets(lead)})
}

func (h *httpHandler) handleDeleteLead(c *gin.Context) {
	if err := h.leads.Delete(c.Request.Context(), c.Param("id"), confirmed(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleScheduleMeeting(c *gin.Context) {
	var request leads.MeetingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "The meeting form is not valid JSON"))
		return
	}
	request.LeadID = c.Param("id")
	receipt, err := h.leads.ScheduleMeeting(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *httpHandler) handleLeadHistory(c *gin.Context) {
	timeline, err := h.leads.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}

func (h *httpHandler) handleToggleLeadHistory(c *gin.Context) {
	timeline, err := h.leads.ToggleHistory(c.Request.Context(), c.Param("id"), c.Param("entry"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}
