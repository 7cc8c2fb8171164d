// Package stack decodes pipeline paths like "proj.trimQ10.assemble" into
// ordered, immutable stage stacks and re-encodes them canonically.
package stack

import (
	"strings"

	"github.com/stagepath/stagepath/internal/stage"
)

// Sep is the reserved path separator. It may not appear inside stage names
// or parameter suffixes.
const Sep = "."

// Instance is one stage occurrence within a stack.
type Instance struct {
	// Stage is the definition this instance binds.
	Stage *stage.Stage
	// Name is the stage name as parsed, i.e. the primary name or, for the
	// alternate branch of a splitting stage, the branch name.
	Name string
	// Binding holds a value for every declared parameter.
	Binding stage.Binding
	// Depth is the instance's position within its stack.
	Depth int

	// pipeline is the pipeline reference this instance was spliced from,
	// empty when the path named the stage directly.
	pipeline string
	hidden   bool
}

// Encode returns the canonical path segment: name plus encoded parameters.
func (i *Instance) Encode() string {
	return i.EncodeAs(i.Name)
}

// EncodeAs encodes the segment under a different branch name. Used by the
// resolver to produce the sibling branch path.
func (i *Instance) EncodeAs(name string) string {
	// Encoding a binding produced by DecodeParams cannot fail: every value
	// was checked on the way in.
	suffix, err := i.Stage.EncodeParams(i.Binding)
	if err != nil {
		panic("stack: invalid binding in instance: " + err.Error())
	}
	return name + suffix
}

// AltName returns the name of the other branch of a splitting stage, or ""
// for single-branch stages.
func (i *Instance) AltName() string {
	switch {
	case i.Stage.AltName == "":
		return ""
	case i.Name == i.Stage.Name:
		return i.Stage.AltName
	default:
		return i.Stage.Name
	}
}

// Equal reports whether both instances bind the same stage, branch, values,
// and depth.
func (i *Instance) Equal(o *Instance) bool {
	return i.Stage == o.Stage &&
		i.Name == o.Name &&
		i.Depth == o.Depth &&
		i.Binding.Equal(o.Binding)
}

// Stack is an immutable, ordered sequence of stage instances rooted at a
// project identifier.
type Stack struct {
	root   string
	source string
	stages []*Instance
}

// Root returns the project identifier the stack is rooted at.
func (s *Stack) Root() string { return s.root }

// Source returns the literal path string the stack was parsed from.
func (s *Stack) Source() string { return s.source }

// Len returns the number of stage instances.
func (s *Stack) Len() int { return len(s.stages) }

// At returns the instance at depth i.
func (s *Stack) At(i int) *Instance { return s.stages[i] }

// Top returns the last instance, or nil for a bare-root stack.
func (s *Stack) Top() *Instance {
	if len(s.stages) == 0 {
		return nil
	}
	return s.stages[len(s.stages)-1]
}

// Path returns the canonical encoding: root plus each instance's canonical
// segment. Parsing the result yields an equal stack.
func (s *Stack) Path() string {
	parts := make([]string, 0, len(s.stages)+1)
	parts = append(parts, s.root)
	for _, inst := range s.stages {
		parts = append(parts, inst.Encode())
	}
	return strings.Join(parts, Sep)
}

// String returns the canonical path.
func (s *Stack) String() string { return s.Path() }

// Display returns the human form: a run of instances spliced from the same
// pipeline reference collapses to the pipeline name when all of its members
// are hidden; everything else shows its canonical segment.
func (s *Stack) Display() string {
	parts := []string{s.root}
	for i := 0; i < len(s.stages); {
		inst := s.stages[i]
		if inst.pipeline == "" {
			parts = append(parts, inst.Encode())
			i++
			continue
		}
		j := i
		allHidden := true
		for j < len(s.stages) && s.stages[j].pipeline == inst.pipeline {
			allHidden = allHidden && s.stages[j].hidden
			j++
		}
		if allHidden {
			parts = append(parts, inst.pipeline)
		} else {
			for k := i; k < j; k++ {
				parts = append(parts, s.stages[k].Encode())
			}
		}
		i = j
	}
	return strings.Join(parts, Sep)
}

// Prefix returns the stack truncated to its first n stages. The result's
// source is its own canonical path.
func (s *Stack) Prefix(n int) *Stack {
	sub := &Stack{root: s.root, stages: s.stages[:n]}
	sub.source = sub.Path()
	return sub
}

// Equal reports whether both stacks have the same root and equal instances.
// The literal source strings may differ (aliases canonicalize to the same
// stack).
func (s *Stack) Equal(o *Stack) bool {
	if s.root != o.root || len(s.stages) != len(o.stages) {
		return false
	}
	for i := range s.stages {
		if !s.stages[i].Equal(o.stages[i]) {
			return false
		}
	}
	return true
}
