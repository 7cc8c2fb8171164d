// Package resolve expands symbolic reference tokens found in declared
// input/output templates into concrete path strings, given a stage stack and
// a position within it.
//
// Token semantics:
//
//	{this}     directory of the stage at the given position
//	{prev}     directory one position back
//	{that}     sibling directory of the other branch of a splitting stage
//	{target}   target identifier(s) of the stack's root, one path per target
//	{targets}  same enumeration, used by fan-in rules
//	{a.b.c}    dotted attribute, routed to the configuration provider
//
// Any other identifier passes through untouched (an engine-side wildcard)
// unless the rule declares it, in which case resolution fails.
package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stagepath/stagepath/internal/stack"
)

// AttributeProvider resolves dotted attribute tokens such as "dir.tmp" or
// "ref.x.dir". Unknown attributes fail with UnknownAttributeError.
type AttributeProvider interface {
	Attribute(path string) (string, error)
}

// TargetProvider enumerates the target identifiers belonging to a root.
// The resolver treats it as a pure function for one build invocation.
type TargetProvider interface {
	Targets(root string) ([]string, error)
}

// tokenRe matches {token} occurrences in templates.
var tokenRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.]*)\}`)

// Resolver expands tokens against a stack. It holds no mutable state.
type Resolver struct {
	attrs   AttributeProvider
	targets TargetProvider
}

// New creates a resolver delegating attribute and target lookups to the
// given providers.
func New(attrs AttributeProvider, targets TargetProvider) *Resolver {
	return &Resolver{attrs: attrs, targets: targets}
}

// Resolve expands a single token against the stage at position pos of st.
// Scalar tokens yield one string; {target} and {targets} yield one entry per
// target of the root.
func (r *Resolver) Resolve(token string, st *stack.Stack, pos int) ([]string, error) {
	return r.resolve(token, st, pos, nil)
}

func (r *Resolver) resolve(token string, st *stack.Stack, pos int, declared map[string]bool) ([]string, error) {
	switch token {
	case "this":
		if err := checkPos(st, pos); err != nil {
			return nil, err
		}
		return []string{st.Prefix(pos + 1).Path()}, nil

	case "prev":
		if err := checkPos(st, pos); err != nil {
			return nil, err
		}
		if pos == 0 {
			return nil, &NoPreviousStageError{Path: st.Prefix(1).Path()}
		}
		return []string{st.Prefix(pos).Path()}, nil

	case "that":
		if err := checkPos(st, pos); err != nil {
			return nil, err
		}
		inst := st.At(pos)
		if inst.Stage.Branches() < 2 {
			return nil, &NotABranchingStageError{Stage: inst.Name}
		}
		seg := inst.EncodeAs(inst.AltName())
		if pos == 0 {
			return []string{st.Root() + stack.Sep + seg}, nil
		}
		return []string{st.Prefix(pos).Path() + stack.Sep + seg}, nil

	case "target", "targets":
		ids, err := r.targets.Targets(st.Root())
		if err != nil {
			return nil, err
		}
		return ids, nil
	}

	if strings.Contains(token, ".") {
		val, err := r.attrs.Attribute(token)
		if err != nil {
			return nil, err
		}
		return []string{val}, nil
	}

	if declared[token] {
		return nil, &UnresolvedTokenError{Token: token}
	}
	// Engine-side wildcard: pass through untouched.
	return []string{"{" + token + "}"}, nil
}

// ExpandTemplate replaces every {token} in template. A template containing
// {target} or {targets} expands to one string per target of the root; all
// other templates expand to exactly one string. declared lists the rule's
// registered parameter/wildcard names.
func (r *Resolver) ExpandTemplate(template string, st *stack.Stack, pos int, declared []string) ([]string, error) {
	declaredSet := make(map[string]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}

	fan := false
	var firstErr error
	expanded := tokenRe.ReplaceAllStringFunc(template, func(m string) string {
		if firstErr != nil {
			return m
		}
		token := m[1 : len(m)-1]
		if token == "target" || token == "targets" {
			fan = true
			return m
		}
		vals, err := r.resolve(token, st, pos, declaredSet)
		if err != nil {
			firstErr = err
			return m
		}
		return vals[0]
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if !fan {
		return []string{expanded}, nil
	}

	ids, err := r.targets.Targets(st.Root())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		s := strings.ReplaceAll(expanded, "{target}", id)
		s = strings.ReplaceAll(s, "{targets}", id)
		out = append(out, s)
	}
	return out, nil
}

// checkPos validates that pos addresses a stage of st.
func checkPos(st *stack.Stack, pos int) error {
	if st.Len() == 0 {
		return &stack.EmptyStackError{Path: st.Source()}
	}
	if pos < 0 || pos >= st.Len() {
		return fmt.Errorf("position %d out of range for stack %q (depth %d)", pos, st.Path(), st.Len())
	}
	return nil
}
