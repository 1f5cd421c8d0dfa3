package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fentro/cms-console/internal/apperr"
	"github.com/fentro/cms-console/internal/media"
)

const uploadFilesField = "files"

type commitPayload struct {
	Folder      string `json:"folder"`
	Description string `json:"description"`
}

func (h *httpHandler) registerMediaRoutes(group *gin.RouterGroup) {
	group.GET("/folders", h.handleListFolders)
	group.POST("/folders", h.handleCreateFolder)
	group.GET("/files", h.handleListFiles)
	group.PUT("/files/search", h.handleSearchFiles)
	group.DELETE("/files/:id", h.handleDeleteFile)
	group.POST("/uploads", h.handleSelectUpload)
	group.GET("/uploads/:id", h.handleGetUpload)
	group.POST("/uploads/:id/commit", h.handleCommitUpload)
	group.DELETE("/uploads/:id", h.handleCancelUpload)
}

func (h *httpHandler) handleListFolders(c *gin.Context) {
	folders, err := h.library.LoadFolders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h *httpHandler) handleCreateFolder(c *gin.Context) {
	var input media.FolderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.respondError(c, media.ErrInvalidFolder)
		return
	}
	folder, err := h.library.CreateFolder(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, folder)
}

// handleListFiles opens the folder named by the query, or refreshes the
// current one.
func (h *httpHandler) handleListFiles(c *gin.Context) {
	var err error
	if folder, ok := c.GetQuery("folder"); ok {
		_, err = h.library.OpenFolder(c.Request.Context(), folder)
	} else {
		_, err = h.library.Refresh(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.library.Snapshot())
}

func (h *httpHandler) handleSearchFiles(c *gin.Context) {
	var request searchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, apperr.Validation("invalid_request", "Search term is required"))
		return
	}
	h.library.SetSearch(detached(c), request.Term)
	c.JSON(http.StatusAccepted, h.library.Snapshot())
}

func (h *httpHandler) handleDeleteFile(c *gin.Context) {
	if err := h.library.DeleteFile(c.Request.Context(), c.Param("id"), confirmed(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSelectUpload opens an upload session from a multipart form and runs
// SELECT and PROCESS on its files.
func (h *httpHandler) handleSelectUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSelection)
	form, err := c.MultipartForm()
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindValidation, "invalid_upload", "The selection could not be read", err))
		return
	}
	sources, err := sourcesFromForm(form, uploadFilesField)
	if err != nil {
		h.respondError(c, err)
		return
	}
	session, err := h.uploads.create()
	if err != nil {
		h.respondError(c, err)
		return
	}
	session.Subscribe(func(snapshot media.SessionSnapshot) {
		h.events.Publish(EventUpload, snapshot)
	})
	snapshot, err := session.Select(c.Request.Context(), sources)
	if err != nil {
		_, _ = h.uploads.remove(session.ID())
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (h *httpHandler) handleGetUpload(c *gin.Context) {
	session, err := h.uploads.get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

// handleCommitUpload runs COMMIT and FINALIZE. Uploads keep going if the
// caller disconnects; progress is streamed as upload events.
func (h *httpHandler) handleCommitUpload(c *gin.Context) {
	session, err := h.uploads.get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request commitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondError(c, media.ErrFolderRequired)
		return
	}
	files, err := session.Commit(detached(c), request.Folder, request.Description)
	h.library.Append(files)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "session": session.Snapshot()})
}

func (h *httpHandler) handleCancelUpload(c *gin.Context) {
	session, err := h.uploads.remove(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	session.Cancel()
	c.JSON(http.StatusOK, session.Snapshot())
}
