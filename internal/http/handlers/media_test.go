package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/agents"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

type fakePipeline struct {
	result    agents.ProcessingResult
	lastMode  string
	lastQuery string
	lastUser  string
}

func (p *fakePipeline) QuickAnalyze(ctx context.Context, sourcePath, query, userID string) agents.ProcessingResult {
	p.lastMode, p.lastQuery, p.lastUser = agents.ModeQuick, query, userID
	return p.result
}

func (p *fakePipeline) Process(ctx context.Context, sourcePath, query, userID string) agents.ProcessingResult {
	p.lastMode, p.lastQuery, p.lastUser = agents.ModeFull, query, userID
	return p.result
}

func handlerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newMediaTestRouter(t *testing.T, image MediaPipeline) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewMediaHandler(image, &fakePipeline{}, &fakePipeline{}, &fakePipeline{}, handlerLogger(t))
	r := gin.New()
	r.POST("/process-image", h.ProcessImage)
	return r
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(fw, "filebytes"); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, filename string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, fields)
	req := httptest.NewRequest(http.MethodPost, "/process-image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, rec.Body.String())
	}
	return out
}

func TestProcessImageSuccess(t *testing.T) {
	pipe := &fakePipeline{result: agents.ProcessingResult{
		Success: true,
		Tokens:  42,
		Result:  map[string]any{"analysis": "a cat", "status": "completed"},
	}}
	r := newMediaTestRouter(t, pipe)

	rec := doUpload(t, r, "cat.jpg", map[string]string{"query": "what is this", "user_id": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	if body["file_processed"] != true {
		t.Fatalf("file_processed = %v (%T), want boolean true", body["file_processed"], body["file_processed"])
	}
	result, ok := body["result"].(map[string]any)
	if !ok || result["analysis"] != "a cat" {
		t.Fatalf("result = %v", body["result"])
	}
	if pipe.lastUser != "alice" || pipe.lastQuery != "what is this" {
		t.Fatalf("pipeline saw user=%q query=%q", pipe.lastUser, pipe.lastQuery)
	}
	if pipe.lastMode != agents.ModeFull {
		t.Fatalf("default mode must be full, got %q", pipe.lastMode)
	}
}

func TestProcessImagePipelineFailureStillAnswers200(t *testing.T) {
	pipe := &fakePipeline{result: agents.ProcessingResult{
		Success: false,
		Error:   "analysis failed",
	}}
	r := newMediaTestRouter(t, pipe)

	rec := doUpload(t, r, "cat.jpg", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pipeline failures must not become HTTP errors, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
	if body["error"] != "analysis failed" {
		t.Fatalf("error = %v", body["error"])
	}
	if body["file_processed"] != true {
		t.Fatalf("file_processed = %v, want boolean true on every path", body["file_processed"])
	}
	if _, ok := body["result"].(map[string]any); !ok {
		t.Fatalf("result must always be an object, got %v", body["result"])
	}
}

func TestProcessImageQuickMode(t *testing.T) {
	pipe := &fakePipeline{result: agents.ProcessingResult{Success: true, Result: map[string]any{}}}
	r := newMediaTestRouter(t, pipe)

	rec := doUpload(t, r, "cat.png", map[string]string{"mode": "quick"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if pipe.lastMode != agents.ModeQuick {
		t.Fatalf("mode = %q, want quick", pipe.lastMode)
	}
	if pipe.lastUser != "anonymous" {
		t.Fatalf("user_id should default to anonymous, got %q", pipe.lastUser)
	}
}

func TestProcessImageRejectsBadInput(t *testing.T) {
	pipe := &fakePipeline{result: agents.ProcessingResult{Success: true, Result: map[string]any{}}}
	r := newMediaTestRouter(t, pipe)

	cases := []struct {
		name     string
		filename string
		fields   map[string]string
		wantCode string
	}{
		{"missing file", "", nil, "missing_file"},
		{"wrong extension", "report.pdf", nil, "unsupported_extension"},
		{"invalid mode", "cat.jpg", map[string]string{"mode": "turbo"}, "invalid_mode"},
	}
	for _, tc := range cases {
		rec := doUpload(t, r, tc.filename, tc.fields)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
		body := decodeBody(t, rec)
		errObj, ok := body["error"].(map[string]any)
		if !ok || errObj["code"] != tc.wantCode {
			t.Fatalf("%s: error = %v, want code %q", tc.name, body["error"], tc.wantCode)
		}
	}
}
