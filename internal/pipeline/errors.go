package pipeline

import "fmt"

// Stage names one step of a pass.
type Stage string

const (
	StageCalibration Stage = "calibration"
	StageCapture     Stage = "capture"
	StageSelect      Stage = "select"
	StageGeometry    Stage = "geometry"
	StageWarp        Stage = "warp"
	StageCompare     Stage = "compare"
	StageArtifacts   Stage = "artifacts"
)

// StageError records which stage of a pass failed. errors.Is and errors.As
// see through it to the underlying cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: s, Err: err}
}
