package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/http/response"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/repos"
)

// RecordsHandler exposes the persisted analysis rows and the token usage
// summary computed from the tracking table.
type RecordsHandler struct {
	images    repos.ImageRecordRepo
	documents repos.DocumentRecordRepo
	videos    repos.VideoRecordRepo
	audios    repos.AudioRecordRepo
	tracking  repos.TrackingRecordRepo
	log       *logger.Logger
}

func NewRecordsHandler(
	images repos.ImageRecordRepo,
	documents repos.DocumentRecordRepo,
	videos repos.VideoRecordRepo,
	audios repos.AudioRecordRepo,
	tracking repos.TrackingRecordRepo,
	baseLog *logger.Logger,
) *RecordsHandler {
	return &RecordsHandler{
		images:    images,
		documents: documents,
		videos:    videos,
		audios:    audios,
		tracking:  tracking,
		log:       baseLog.With("handler", "RecordsHandler"),
	}
}

// Records returns the most recent rows for a user, optionally narrowed to
// one agent type.
func (h *RecordsHandler) Records(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_user_id", fmt.Errorf("user_id query parameter required"))
		return
	}
	agentType := strings.ToLower(strings.TrimSpace(c.Query("agent_type")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx := c.Request.Context()
	out := gin.H{"user_id": userID}

	var err error
	switch agentType {
	case "image":
		out["images"], err = h.images.ListByUser(ctx, nil, userID, limit)
	case "document":
		out["documents"], err = h.documents.ListByUser(ctx, nil, userID, limit)
	case "video":
		out["videos"], err = h.videos.ListByUser(ctx, nil, userID, limit)
	case "audio":
		out["audios"], err = h.audios.ListByUser(ctx, nil, userID, limit)
	case "":
		if out["images"], err = h.images.ListByUser(ctx, nil, userID, limit); err != nil {
			break
		}
		if out["documents"], err = h.documents.ListByUser(ctx, nil, userID, limit); err != nil {
			break
		}
		if out["videos"], err = h.videos.ListByUser(ctx, nil, userID, limit); err != nil {
			break
		}
		out["audios"], err = h.audios.ListByUser(ctx, nil, userID, limit)
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_agent_type",
			fmt.Errorf("agent_type %q not recognized", agentType))
		return
	}
	if err != nil {
		h.log.Error("Record listing failed", "user_id", userID, "agent_type", agentType, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "records_failed", err)
		return
	}
	response.RespondOK(c, out)
}

// Usage returns the aggregated token usage summary, optionally per user.
func (h *RecordsHandler) Usage(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))

	summary, err := h.tracking.Summarize(c.Request.Context(), nil, userID)
	if err != nil {
		h.log.Error("Usage summary failed", "user_id", userID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "usage_failed", err)
		return
	}
	response.RespondOK(c, summary)
}
