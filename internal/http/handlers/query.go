package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/http/response"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/queries"
)

type queryRequest struct {
	Query     string `json:"query" binding:"required"`
	MediaType string `json:"media_type"`
	UserID    string `json:"user_id"`
	Context   string `json:"context"`
}

// QueryHandler serves the text query surface: the synchronous stub, the
// async crew endpoints, classification and the upload shortcut.
type QueryHandler struct {
	crew   *crew.Crew
	store  *queries.Store
	runner *queries.Runner
	media  *MediaHandler
	log    *logger.Logger
}

func NewQueryHandler(c *crew.Crew, store *queries.Store, runner *queries.Runner, media *MediaHandler, baseLog *logger.Logger) *QueryHandler {
	return &QueryHandler{
		crew:   c,
		store:  store,
		runner: runner,
		media:  media,
		log:    baseLog.With("handler", "QueryHandler"),
	}
}

// Query is the synchronous text endpoint. It echoes rather than running the
// crew; callers wanting real processing use the async /api/query path.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":  true,
		"response": fmt.Sprintf("Query received: %s", req.Query),
	})
}

func (h *QueryHandler) SubmitAsync(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	id := h.runner.Submit(crew.QueryInput{
		Query:     req.Query,
		MediaType: req.MediaType,
		UserID:    req.UserID,
		Context:   req.Context,
	})
	response.RespondOK(c, gin.H{
		"query_id": id,
		"status":   queries.StatusProcessing,
	})
}

func (h *QueryHandler) AsyncStatus(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.store.Get(id)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "query_not_found", fmt.Errorf("query %s not found", id))
		return
	}
	response.RespondOK(c, gin.H{
		"query_id": entry.ID,
		"status":   entry.Status,
	})
}

func (h *QueryHandler) AsyncResult(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.store.Get(id)
	if !ok {
		response.RespondError(c, http.StatusNotFound, "query_not_found", fmt.Errorf("query %s not found", id))
		return
	}
	response.RespondOK(c, entry)
}

func (h *QueryHandler) DeleteAsync(c *gin.Context) {
	id := c.Param("id")
	if !h.store.Delete(id) {
		response.RespondError(c, http.StatusNotFound, "query_not_found", fmt.Errorf("query %s not found", id))
		return
	}
	response.RespondOK(c, gin.H{"query_id": id, "deleted": true})
}

// Classify runs the router role synchronously.
func (h *QueryHandler) Classify(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result := h.crew.QuickClassify(c.Request.Context(), crew.QueryInput{
		Query:     req.Query,
		MediaType: req.MediaType,
		UserID:    req.UserID,
		Context:   req.Context,
	})
	response.RespondOK(c, result)
}

// Upload sniffs the media type from the filename and runs the matching
// pipeline in the background, reusing the async query store for polling.
func (h *QueryHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("file field required: %w", err))
		return
	}

	mediaType := sniffMediaType(fileHeader.Filename)
	if mediaType == "" {
		response.RespondError(c, http.StatusBadRequest, "unsupported_extension",
			fmt.Errorf("cannot infer media type for %q", fileHeader.Filename))
		return
	}

	var pipeline MediaPipeline
	switch mediaType {
	case "image":
		pipeline = h.media.image
	case "document":
		pipeline = h.media.document
	case "audio":
		pipeline = h.media.audio
	case "video":
		pipeline = h.media.video
	}

	query := c.PostForm("query")
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		userID = "anonymous"
	}

	tempDir, tempPath, err := stageUpload(fileHeader)
	if err != nil {
		h.log.Error("Failed to stage upload", "filename", fileHeader.Filename, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "upload_stage_failed", err)
		return
	}

	cleanup := func() { _ = os.RemoveAll(tempDir) }
	id := h.runner.SubmitPipeline(fileHeader.Filename, cleanup, func(ctx context.Context) (any, bool, string) {
		result := pipeline.Process(ctx, tempPath, query, userID)
		return result, result.Success, result.Error
	})

	response.RespondOK(c, gin.H{
		"query_id":   id,
		"status":     queries.StatusProcessing,
		"media_type": mediaType,
		"filename":   fileHeader.Filename,
	})
}

func (h *QueryHandler) Stats(c *gin.Context) {
	stats := h.store.Stats()
	uptime := time.Since(processStart).Seconds()
	response.RespondOK(c, gin.H{
		"queries":        stats,
		"uptime_seconds": uptime,
	})
}

var processStart = time.Now()

func sniffMediaType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for mediaType, exts := range allowedExtensions {
		if exts[ext] {
			return mediaType
		}
	}
	return ""
}
