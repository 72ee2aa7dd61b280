package agents

import (
	"context"
	"time"

	"github.com/omniquery/omniquery-backend/internal/crew"
)

const (
	ModeQuick = "quick"
	ModeFull  = "full"
)

// ProcessingResult is the envelope every pipeline returns. Failed attempts
// always carry Tokens == 0 and a non-empty Error.
type ProcessingResult struct {
	Success          bool           `json:"success"`
	Tokens           int            `json:"tokens"`
	Result           map[string]any `json:"result,omitempty"`
	Query            string         `json:"query"`
	ProcessingMethod string         `json:"processing_method"`
	ProcessingTime   float64        `json:"processing_time"`
	Error            string         `json:"error,omitempty"`
}

func failureResult(query, mode string, start time.Time, err error) ProcessingResult {
	return ProcessingResult{
		Success:          false,
		Tokens:           0,
		Query:            query,
		ProcessingMethod: mode,
		ProcessingTime:   time.Since(start).Seconds(),
		Error:            err.Error(),
	}
}

// Enhancer is the crew surface the full-mode pipelines call. Enhancement
// failures never fail the pipeline.
type Enhancer interface {
	EnhanceAnalysis(ctx context.Context, mediaType crew.MediaType, query, analysis string) (string, int, error)
}
