package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/content"
)

func (h *httpHandler) registerContentRoutes(group *gin.RouterGroup) {
	group.Use(h.resolveCollection)
	group.GET("", h.handleListDocuments)
	group.POST("", h.handleCreateDocument)
	group.PUT("/search", h.handleSearchDocuments)
	group.GET("/:id", h.handleGetDocument)
	group.PATCH("/:id", h.handleUpdateDocument)
	group.DELETE("/:id", h.handleDeleteDocument)
	group.POST("/:id/publish", h.handlePublish(true))
	group.POST("/:id/unpublish", h.handlePublish(false))
}

const editorContextKey = "fentro_editor"

func (h *httpHandler) resolveCollection(c *gin.Context) {
	editor, err := h.content.Editor(c.Param("collection"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set(editorContextKey, editor)
	c.Next()
}

func editorOf(c *gin.Context) *content.Editor {
	return c.MustGet(editorContextKey).(*content.Editor)
}

func (h *httpHandler) handleListDocuments(c *gin.Context) {
	editor := editorOf(c)
	var err error
	if pageValue, ok := c.GetQuery("page"); ok {
		page, convErr := strconv.Atoi(pageValue)
		if convErr != nil {
			h.respondError(c, content.ErrInvalidPage)
			return
		}
		err = editor.SetPage(c.Request.Context(), page)
	} else {
		err = editor.Load(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, editor.Snapshot())
}

func (h *httpHandler) handleSearchDocuments(c *gin.Context) {
	var request searchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Search term is required"))
		return
	}
	editor := editorOf(c)
	editor.SetSearch(detached(c), request.Term)
	c.JSON(http.StatusAccepted, editor.Snapshot())
}

func (h *httpHandler) handleGetDocument(c *gin.Context) {
	document, err := editorOf(c).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, document)
}

func (h *httpHandler) handleCreateDocument(c *gin.Context) {
	var document content.Document
	if err := bindOptionalJSON(c, &document); err != nil {
		h.respondError(c, err)
		return
	}
	created, err := editorOf(c).Create(c.Request.Context(), document)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateDocument(c *gin.Context) {
	var changes content.Document
	if err := bindOptionalJSON(c, &changes); err != nil {
		h.respondError(c, err)
		return
	}
	updated, err := editorOf(c).Update(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	if err := editorOf(c).Delete(c.Request.Context(), c.Param("id"), confirmed(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handlePublish(published bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		document, err := editorOf(c).SetPublished(c.Request.Context(), c.Param("id"), published)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, document)
	}
}
