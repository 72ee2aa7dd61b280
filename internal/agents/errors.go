package agents

import "fmt"

// Stage identifies where in the pipeline a fatal error occurred.
type Stage string

const (
	StageSave    Stage = "save"
	StageExtract Stage = "extract"
	StageAnalyze Stage = "analyze"
	StageEnhance Stage = "enhance"
	StagePersist Stage = "persist"
	StageCleanup Stage = "cleanup"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

func stageErrf(stage Stage, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
