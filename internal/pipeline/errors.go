package pipeline

import "fmt"

// Stage names the pipeline step an error surfaced from.
type Stage string

const (
	StageRetrieve   Stage = "retrieve"
	StageAnalyze    Stage = "analyze"
	StageClean      Stage = "clean"
	StageSynthesize Stage = "synthesize"
	StagePackage    Stage = "package"
	StageRecord     Stage = "record"
)

// StageError is the single terminal error shape surfaced to the caller. Only
// retrieval and packaging failures abort a run; every other class degrades
// into counters and log lines inside a success result.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
