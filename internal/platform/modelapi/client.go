package modelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/pkg/httpx"
	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// ContentPart is one element of a multimodal user message. Exactly one of
// Text or ImageURL is set.
type ContentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *contentImagePart `json:"image_url,omitempty"`
}

type contentImagePart struct {
	URL string `json:"url"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart wraps an https:// or data:image/...;base64 URL.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &contentImagePart{URL: url}}
}

// ChatMessage is a single chat-completions message. Content is either a
// string or a []ContentPart for multimodal turns.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ChatOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

type ChatResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Transcription struct {
	Text     string
	Language string
	Duration float64
	Segments int
}

// Client is the hosted-model API client used by the agents and the crew.
type Client interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatResult, error)
	Transcribe(ctx context.Context, audioPath string) (Transcription, error)
	Model() string
	Backend() string
	Healthy() bool
}

type client struct {
	log             *logger.Logger
	baseURL         string
	apiKey          string
	backend         string
	model           string
	transcribeModel string
	temperature     float64
	httpClient      *http.Client
	maxRetries      int
}

// NewClient reads its configuration from the environment. LLM_BACKEND=ollama
// flips the base URL and model to the Ollama-compatible endpoint, which
// speaks the same chat-completions wire format and needs no API key.
func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	backend := strings.ToLower(envutil.String("LLM_BACKEND", "openai"))

	var baseURL, apiKey, model string
	switch backend {
	case "ollama":
		baseURL = envutil.String("OLLAMA_BASE_URL", "http://localhost:11434")
		model = envutil.String("OLLAMA_MODEL", "llama3.2")
		apiKey = "ollama"
	default:
		backend = "openai"
		baseURL = envutil.String("OPENAI_BASE_URL", "https://api.openai.com")
		model = envutil.String("OPENAI_MODEL", "gpt-4o-mini")
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)

	return &client{
		log:             log.With("service", "ModelClient"),
		baseURL:         baseURL,
		apiKey:          apiKey,
		backend:         backend,
		model:           model,
		transcribeModel: envutil.String("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		temperature:     envutil.Float("LLM_TEMPERATURE", 0.3),
		httpClient:      &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:      envutil.Int("OPENAI_MAX_RETRIES", 3),
	}, nil
}

func (c *client) Model() string   { return c.model }
func (c *client) Backend() string { return c.backend }

func (c *client) Healthy() bool {
	return c.baseURL != "" && c.model != "" && (c.backend == "ollama" || c.apiKey != "")
}

type apiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *apiHTTPError) Error() string {
	return fmt.Sprintf("model api http %d: %s", e.StatusCode, e.Body)
}

func (e *apiHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *client) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatResult, error) {
	var out ChatResult
	if len(messages) == 0 {
		return out, errors.New("messages required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.model
	}
	temp := opts.Temperature
	if temp == nil {
		t := c.temperature
		temp = &t
	}

	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temp,
		MaxTokens:   opts.MaxTokens,
	}

	var resp chatResponse
	if err := c.do(ctx, "POST", "/v1/chat/completions", req, &resp); err != nil {
		return out, err
	}
	if resp.Error != nil && strings.TrimSpace(resp.Error.Message) != "" {
		return out, fmt.Errorf("model api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return out, errors.New("model api returned no choices")
	}

	out.Text = resp.Choices[0].Message.Content
	out.Model = strings.TrimSpace(resp.Model)
	if out.Model == "" {
		out.Model = model
	}
	out.PromptTokens = resp.Usage.PromptTokens
	out.CompletionTokens = resp.Usage.CompletionTokens
	out.TotalTokens = resp.Usage.TotalTokens
	if out.TotalTokens == 0 {
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
	}
	return out, nil
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID int `json:"id"`
	} `json:"segments"`
}

func (c *client) Transcribe(ctx context.Context, audioPath string) (Transcription, error) {
	var out Transcription

	f, err := os.Open(audioPath)
	if err != nil {
		return out, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return out, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return out, fmt.Errorf("read audio file: %w", err)
	}
	_ = writer.WriteField("model", c.transcribeModel)
	_ = writer.WriteField("response_format", "verbose_json")
	if err := writer.Close(); err != nil {
		return out, err
	}

	var resp transcriptionResponse
	if err := c.doMultipart(ctx, "/v1/audio/transcriptions", buf.Bytes(), writer.FormDataContentType(), &resp); err != nil {
		return out, err
	}

	out.Text = strings.TrimSpace(resp.Text)
	out.Language = resp.Language
	out.Duration = resp.Duration
	out.Segments = len(resp.Segments)
	return out, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &apiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	start := time.Now()
	model := modelFromRequest(body)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if m := observability.Current(); m != nil {
				m.ObserveModelRequest(model, path, statusFromResp(resp), time.Since(start), tokensFromRaw(raw))
			}
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("model api decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			if m := observability.Current(); m != nil {
				m.ObserveModelRequest(model, path, statusFromRespErr(resp, err), time.Since(start), 0)
			}
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("model request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doMultipart(ctx context.Context, path string, payload []byte, contentType string, out any) error {
	backoff := 1 * time.Second
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				time.Sleep(httpx.JitterSleep(backoff))
				backoff *= 2
				continue
			}
			return err
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &apiHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
			if httpx.IsRetryableHTTPStatus(resp.StatusCode) && attempt < c.maxRetries {
				time.Sleep(httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second)))
				backoff *= 2
				continue
			}
			if m := observability.Current(); m != nil {
				m.ObserveModelRequest(c.transcribeModel, path, statusFromResp(resp), time.Since(start), 0)
			}
			return httpErr
		}
		if m := observability.Current(); m != nil {
			m.ObserveModelRequest(c.transcribeModel, path, statusFromResp(resp), time.Since(start), 0)
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	}
	return errors.New("model multipart request failed")
}

func modelFromRequest(body any) string {
	switch v := body.(type) {
	case chatRequest:
		return strings.TrimSpace(v.Model)
	case *chatRequest:
		if v != nil {
			return strings.TrimSpace(v.Model)
		}
	}
	return ""
}

func tokensFromRaw(raw []byte) int {
	if len(raw) == 0 {
		return 0
	}
	var payload struct {
		Usage struct {
			TotalTokens      int `json:"total_tokens"`
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0
	}
	if payload.Usage.TotalTokens > 0 {
		return payload.Usage.TotalTokens
	}
	return payload.Usage.PromptTokens + payload.Usage.CompletionTokens
}

func statusFromResp(resp *http.Response) string {
	if resp == nil {
		return "unknown"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	var httpErr *apiHTTPError
	if err != nil && errors.As(err, &httpErr) {
		return strconv.Itoa(httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
