package resolve

import "fmt"

// NoPreviousStageError reports a {prev} reference at the first stage.
type NoPreviousStageError struct {
	Path string
}

func (e *NoPreviousStageError) Error() string {
	return fmt.Sprintf("no previous stage before %q", e.Path)
}

// NotABranchingStageError reports a {that} reference on a single-branch
// stage.
type NotABranchingStageError struct {
	Stage string
}

func (e *NotABranchingStageError) Error() string {
	return fmt.Sprintf("stage %q has no alternate branch", e.Stage)
}

// UnresolvedTokenError reports a token that is declared by the rule but
// resolves to nothing.
type UnresolvedTokenError struct {
	Token string
}

func (e *UnresolvedTokenError) Error() string {
	return fmt.Sprintf("cannot resolve token %q", e.Token)
}

// UnknownAttributeError reports a dotted attribute the configuration does
// not define. Attribute providers return it from Attribute.
type UnknownAttributeError struct {
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q", e.Attribute)
}
