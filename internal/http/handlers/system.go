package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/http/response"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/supervisor"
)

type SystemHandler struct {
	crew *crew.Crew
	mcp  *supervisor.Supervisor
	log  *logger.Logger
}

func NewSystemHandler(c *crew.Crew, mcp *supervisor.Supervisor, baseLog *logger.Logger) *SystemHandler {
	return &SystemHandler{
		crew: c,
		mcp:  mcp,
		log:  baseLog.With("handler", "SystemHandler"),
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	response.RespondOK(c, gin.H{
		"status": "ok",
		"crew":   h.crew.Health(),
		"agents": gin.H{
			"image":    true,
			"document": true,
			"audio":    true,
			"video":    true,
		},
	})
}

func (h *SystemHandler) Capabilities(c *gin.Context) {
	formats := gin.H{}
	for mediaType, exts := range allowedExtensions {
		list := make([]string, 0, len(exts))
		for ext := range exts {
			list = append(list, ext)
		}
		sort.Strings(list)
		formats[mediaType] = list
	}
	response.RespondOK(c, gin.H{
		"modes":             []string{"full", "quick"},
		"supported_formats": formats,
		"endpoints": []string{
			"/process-image", "/process-document", "/process-audio", "/process-video",
			"/query", "/api/query", "/api/classify", "/api/upload",
			"/api/records", "/api/usage", "/api/stats",
			"/health", "/capabilities", "/mcp/status", "/mcp/restart", "/metrics",
		},
	})
}

func (h *SystemHandler) MCPStatus(c *gin.Context) {
	response.RespondOK(c, gin.H{"servers": h.mcp.Status()})
}

func (h *SystemHandler) MCPRestart(c *gin.Context) {
	if err := h.mcp.Restart(c.Request.Context()); err != nil {
		h.log.Error("MCP restart failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "mcp_restart_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"restarted": true, "servers": h.mcp.Status()})
}
