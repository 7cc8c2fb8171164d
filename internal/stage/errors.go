package stage

import "fmt"

// UnknownStageError reports a name that resolves to no registered stage.
type UnknownStageError struct {
	Name string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Name)
}

// DuplicateStageError reports a registration collision on a stage, branch,
// or pipeline name.
type DuplicateStageError struct {
	Name string
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("stage name %q already registered", e.Name)
}

// InvalidParameterSuffixError reports a parameter suffix that does not decode
// against the stage's declared specs.
type InvalidParameterSuffixError struct {
	Stage  string
	Suffix string
	Reason string
}

func (e *InvalidParameterSuffixError) Error() string {
	return fmt.Sprintf("stage %s: invalid parameter suffix %q: %s", e.Stage, e.Suffix, e.Reason)
}
