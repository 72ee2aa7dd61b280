package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/omniquery/omniquery-backend/internal/crew"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/localmedia"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/platform/modelapi"
	"github.com/omniquery/omniquery-backend/internal/store"
)

// Document text handed to the model is capped at this many characters.
const documentTextBudget = 12000

type DocumentAgent struct {
	log      *logger.Logger
	model    modelapi.Client
	tools    localmedia.Tools
	files    *fileStore
	recorder store.Recorder
	enhancer Enhancer
}

func NewDocumentAgent(d Deps) *DocumentAgent {
	log := d.Log.With("agent", "document")
	return &DocumentAgent{
		log:      log,
		model:    d.Model,
		tools:    d.Tools,
		files:    newFileStore(d.DataDir, log),
		recorder: d.Recorder,
		enhancer: d.Enhancer,
	}
}

func (a *DocumentAgent) QuickAnalyze(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeQuick)
}

func (a *DocumentAgent) Process(ctx context.Context, sourcePath, query, userID string) ProcessingResult {
	return a.run(ctx, sourcePath, query, userID, ModeFull)
}

type documentExtraction struct {
	Text      string
	WordCount int
	CharCount int
	PageCount int
	DocType   string
}

func (a *DocumentAgent) run(ctx context.Context, sourcePath, query, userID, mode string) ProcessingResult {
	start := time.Now()
	durablePath := ""

	fail := func(err error) ProcessingResult {
		a.log.Error("Document pipeline failed", "user_id", userID, "mode", mode, "error", err)
		a.recorder.Track(ctx, store.TrackEvent{
			UserID:         userID,
			AgentType:      "document",
			Table:          store.TableDocument,
			Query:          query,
			ProcessingTime: time.Since(start).Seconds(),
			Success:        false,
			ErrorMessage:   err.Error(),
		})
		a.files.Cleanup(sourcePath, durablePath)
		observability.Current().ObservePipelineRun("document", mode, false, time.Since(start))
		return failureResult(query, mode, start, err)
	}

	path, err := a.files.Save("documents", sourcePath, userID)
	if err != nil {
		return fail(err)
	}
	durablePath = path

	extraction, err := a.extract(ctx, durablePath)
	if err != nil {
		return fail(err)
	}

	prompt := strings.TrimSpace(query)
	if prompt == "" {
		prompt = "Summarize this document."
	}
	text := clipText(extraction.Text, documentTextBudget)

	temp := 0.2
	res, err := a.model.Chat(ctx, []modelapi.ChatMessage{
		{Role: "system", Content: "You are an expert document analyst. Answer from the document content only."},
		{Role: "user", Content: fmt.Sprintf("Document content:\n%s\n\nQuestion: %s", text, prompt)},
	}, modelapi.ChatOptions{MaxTokens: analysisMaxTokens, Temperature: &temp})
	if err != nil {
		return fail(stageErr(StageAnalyze, err))
	}

	tokens := res.TotalTokens
	enhanced := ""
	enhanceTokens := 0
	if mode == ModeFull {
		var enhErr error
		enhanced, enhanceTokens, enhErr = a.enhancer.EnhanceAnalysis(ctx, crew.MediaDocument, query, res.Text)
		if enhErr != nil {
			a.log.Warn("Document enhancement failed, keeping base analysis", "error", enhErr)
			enhanced, enhanceTokens = "", 0
		}
		tokens += enhanceTokens
	}

	docInfo := map[string]any{
		"document_type": extraction.DocType,
		"word_count":    extraction.WordCount,
		"char_count":    extraction.CharCount,
		"page_count":    extraction.PageCount,
	}

	recordID := a.recorder.SaveDocument(ctx, store.MediaPersist{
		UserID:   userID,
		FilePath: durablePath,
		Query:    query,
		Metadata: docInfo,
		Analysis: map[string]any{
			"analysis":          res.Text,
			"enhanced_response": enhanced,
		},
		Tokens:       tokens,
		DocumentType: extraction.DocType,
		PageCount:    extraction.PageCount,
	})
	a.recorder.Track(ctx, store.TrackEvent{
		UserID:         userID,
		AgentType:      "document",
		Table:          store.TableDocument,
		RecordID:       recordID,
		Query:          query,
		Tokens:         tokens,
		ProcessingTime: time.Since(start).Seconds(),
		Success:        true,
	})

	a.files.Cleanup(sourcePath, durablePath)
	observability.Current().ObservePipelineRun("document", mode, true, time.Since(start))

	result := map[string]any{
		"analysis": res.Text,
		"technical_details": map[string]any{
			"model_used":      res.Model,
			"tokens_used":     tokens,
			"processing_time": time.Since(start).Seconds(),
		},
		"document_info": docInfo,
		"file_paths": map[string]any{
			"original": sourcePath,
			"stored":   durablePath,
		},
		"processing_mode": mode,
		"status":          "completed",
	}
	if mode == ModeFull {
		result["enhanced_response"] = enhanced
		result["technical_details"].(map[string]any)["token_breakdown"] = map[string]any{
			"analysis":    res.TotalTokens,
			"enhancement": enhanceTokens,
		}
	}

	return ProcessingResult{
		Success:          true,
		Tokens:           tokens,
		Result:           result,
		Query:            query,
		ProcessingMethod: mode,
		ProcessingTime:   time.Since(start).Seconds(),
	}
}

// extract pulls plain text out of the document by extension. Unsupported
// extensions and empty extractions are fatal.
func (a *DocumentAgent) extract(ctx context.Context, path string) (documentExtraction, error) {
	var out documentExtraction
	ext := strings.ToLower(filepath.Ext(path))
	out.DocType = strings.TrimPrefix(ext, ".")

	var text string
	switch ext {
	case ".pdf":
		pdfText, err := a.tools.PDFText(ctx, path)
		if err != nil {
			return out, stageErr(StageExtract, err)
		}
		text = pdfText
		// pdftotext separates pages with form feeds.
		out.PageCount = strings.Count(pdfText, "\f") + 1
	case ".docx", ".doc":
		tmpDir, err := os.MkdirTemp("", "officeconv")
		if err != nil {
			return out, stageErrf(StageExtract, "temp dir: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		pdfPath, err := a.tools.ConvertOfficeToPDF(ctx, path, tmpDir)
		if err != nil {
			return out, stageErr(StageExtract, err)
		}
		pdfText, err := a.tools.PDFText(ctx, pdfPath)
		if err != nil {
			return out, stageErr(StageExtract, err)
		}
		text = pdfText
		out.PageCount = strings.Count(pdfText, "\f") + 1
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return out, stageErrf(StageExtract, "read text file: %w", err)
		}
		text = decodeText(raw)
		out.PageCount = 1
	default:
		return out, stageErrf(StageExtract, "unsupported document extension %q", ext)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return out, stageErrf(StageExtract, "no text extracted from %s", filepath.Base(path))
	}

	out.Text = text
	out.WordCount = len(strings.Fields(text))
	out.CharCount = utf8.RuneCountInString(text)
	return out, nil
}

// clipText caps s at max bytes without splitting a multi-byte rune.
func clipText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// decodeText takes the bytes as UTF-8 when valid, otherwise falls back to a
// latin-1 interpretation so legacy exports still extract.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes)
}
