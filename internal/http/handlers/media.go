package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/agents"
	"github.com/omniquery/omniquery-backend/internal/http/response"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// MediaPipeline is what each modality agent exposes to the HTTP layer.
type MediaPipeline interface {
	QuickAnalyze(ctx context.Context, sourcePath, query, userID string) agents.ProcessingResult
	Process(ctx context.Context, sourcePath, query, userID string) agents.ProcessingResult
}

var allowedExtensions = map[string]map[string]bool{
	"image":    {".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true},
	"document": {".pdf": true, ".docx": true, ".doc": true, ".txt": true},
	"audio":    {".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".flac": true},
	"video":    {".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true},
}

type MediaHandler struct {
	image    MediaPipeline
	document MediaPipeline
	audio    MediaPipeline
	video    MediaPipeline
	log      *logger.Logger
}

func NewMediaHandler(image, document, audio, video MediaPipeline, baseLog *logger.Logger) *MediaHandler {
	return &MediaHandler{
		image:    image,
		document: document,
		audio:    audio,
		video:    video,
		log:      baseLog.With("handler", "MediaHandler"),
	}
}

func (h *MediaHandler) ProcessImage(c *gin.Context)    { h.process(c, "image", h.image) }
func (h *MediaHandler) ProcessDocument(c *gin.Context) { h.process(c, "document", h.document) }
func (h *MediaHandler) ProcessAudio(c *gin.Context)    { h.process(c, "audio", h.audio) }
func (h *MediaHandler) ProcessVideo(c *gin.Context)    { h.process(c, "video", h.video) }

// process stages the multipart upload to a temp file and runs the pipeline.
// Pipeline failures still answer 200 with success=false; only malformed
// input earns a 4xx.
func (h *MediaHandler) process(c *gin.Context, mediaType string, pipeline MediaPipeline) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("file field required: %w", err))
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[mediaType][ext] {
		response.RespondError(c, http.StatusBadRequest, "unsupported_extension",
			fmt.Errorf("extension %q not supported for %s processing", ext, mediaType))
		return
	}

	query := c.PostForm("query")
	userID := strings.TrimSpace(c.PostForm("user_id"))
	if userID == "" {
		userID = "anonymous"
	}
	mode := strings.ToLower(strings.TrimSpace(c.DefaultPostForm("mode", agents.ModeFull)))
	if mode != agents.ModeFull && mode != agents.ModeQuick {
		response.RespondError(c, http.StatusBadRequest, "invalid_mode",
			fmt.Errorf("mode must be %q or %q", agents.ModeFull, agents.ModeQuick))
		return
	}

	tempDir, tempPath, err := stageUpload(fileHeader)
	if err != nil {
		h.log.Error("Failed to stage upload", "filename", fileHeader.Filename, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "upload_stage_failed", err)
		return
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			h.log.Warn("Failed to remove staging dir", "dir", tempDir, "error", rmErr)
		}
	}()

	start := time.Now()
	var result agents.ProcessingResult
	if mode == agents.ModeQuick {
		result = pipeline.QuickAnalyze(c.Request.Context(), tempPath, query, userID)
	} else {
		result = pipeline.Process(c.Request.Context(), tempPath, query, userID)
	}

	payload := gin.H{
		"success":         result.Success,
		"result":          wrapResult(result),
		"query":           query,
		"file_processed":  true,
		"processing_time": time.Since(start).Seconds(),
	}
	if !result.Success {
		payload["error"] = result.Error
	}
	response.RespondOK(c, payload)
}

// wrapResult guarantees the result field is always a JSON object.
func wrapResult(r agents.ProcessingResult) map[string]any {
	if r.Result != nil {
		return r.Result
	}
	if r.Error != "" {
		return map[string]any{"error": r.Error}
	}
	return map[string]any{}
}

// stageUpload writes the upload into a fresh temp dir under its original
// base name so the durable copy keeps a recognizable filename.
func stageUpload(fh *multipart.FileHeader) (dir string, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dir, err = os.MkdirTemp("", "upload")
	if err != nil {
		return "", "", fmt.Errorf("create staging dir: %w", err)
	}

	path = filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.RemoveAll(dir)
		return "", "", fmt.Errorf("write staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}
