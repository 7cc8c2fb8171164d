// Package pipeline implements named macro-pipelines: ordered lists of stage
// references that a single path segment expands into. Pipelines may nest;
// expansion is acyclic by construction and checked up front.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dominikbraun/graph"

	"github.com/stagepath/stagepath/internal/stage"
)

// MemberRef is one entry in a pipeline definition: a stage name with an
// optional literal parameter suffix, or the name of another pipeline.
type MemberRef struct {
	Ref string
	// Hide overrides the pipeline-level hide flag for this member.
	Hide *bool
}

// Def is a named pipeline definition.
type Def struct {
	Name string
	// Hide collapses member stages to the pipeline name in display form.
	// Members still expand to real stages and real directories.
	Hide    bool
	Members []MemberRef
	Doc     string
}

// Member is one stage of an expanded pipeline.
type Member struct {
	Stage  *stage.Stage
	Name   string        // name as referenced (primary or branch name)
	Suffix string        // literal parameter suffix from the definition
	Hidden bool
}

// CyclicPipelineError reports a pipeline that transitively contains itself.
type CyclicPipelineError struct {
	Cycle []string
}

func (e *CyclicPipelineError) Error() string {
	return fmt.Sprintf("cyclic pipeline definition: %s", strings.Join(e.Cycle, " -> "))
}

// Expander resolves pipeline names to flat stage sequences. Definitions are
// added at startup and checked once; expansion afterwards is memoized and
// read-only.
type Expander struct {
	reg *stage.Registry

	mu     sync.RWMutex
	frozen bool
	defs   map[string]*Def
	order  []*Def
	memo   map[string][]Member
}

// NewExpander creates an expander resolving stage references against reg.
func NewExpander(reg *stage.Registry) *Expander {
	return &Expander{
		reg:  reg,
		defs: make(map[string]*Def),
		memo: make(map[string][]Member),
	}
}

// Add registers a pipeline definition. The name must not collide with a
// previously added pipeline or a registered stage.
func (e *Expander) Add(def *Def) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		panic("pipeline: Add after Check")
	}
	if _, ok := e.defs[def.Name]; ok {
		return &stage.DuplicateStageError{Name: def.Name}
	}
	if e.reg.Has(def.Name) {
		return &stage.DuplicateStageError{Name: def.Name}
	}
	if len(def.Members) == 0 {
		return fmt.Errorf("pipeline %q has no stages", def.Name)
	}
	e.defs[def.Name] = def
	e.order = append(e.order, def)
	return nil
}

// Has reports whether name is a defined pipeline.
func (e *Expander) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.defs[name]
	return ok
}

// All returns the definitions in declaration order.
func (e *Expander) All() []*Def {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Def, len(e.order))
	copy(out, e.order)
	return out
}

// Check validates the whole catalogue: every member resolves to a stage or a
// pipeline, literal suffixes decode, and the reference graph is acyclic.
// Catalogue problems found here are fatal configuration errors; Check also
// freezes the expander so later expansions can memoize safely.
func (e *Expander) Check() error {
	e.mu.Lock()
	e.frozen = true
	defs := e.order
	e.mu.Unlock()

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, def := range defs {
		// AddVertex only fails on duplicates, which Add already rejects.
		_ = g.AddVertex(def.Name)
	}
	for _, def := range defs {
		for _, m := range def.Members {
			if _, ok := e.defs[m.Ref]; ok {
				if err := g.AddEdge(def.Name, m.Ref); err != nil {
					if errors.Is(err, graph.ErrEdgeCreatesCycle) {
						return e.cycleError(def.Name, m.Ref)
					}
					if !errors.Is(err, graph.ErrEdgeAlreadyExists) {
						return fmt.Errorf("pipeline %s: %w", def.Name, err)
					}
				}
				continue
			}
			st, _, suffix, ok := e.reg.Match(m.Ref)
			if !ok {
				return fmt.Errorf("pipeline %s: %w", def.Name, &stage.UnknownStageError{Name: m.Ref})
			}
			if _, err := st.DecodeParams(suffix); err != nil {
				return fmt.Errorf("pipeline %s: %w", def.Name, err)
			}
		}
	}
	// The edge-by-edge cycle guard above catches cycles as they close; run
	// every expansion once so self-references and memoization are settled.
	for _, def := range defs {
		if _, err := e.Expand(def.Name); err != nil {
			return err
		}
	}
	return nil
}

// cycleError recovers the actual reference chain behind a cycle the edge
// guard detected. The guard only knows the closing edge; expansion walks the
// chain and names every pipeline on it.
func (e *Expander) cycleError(name, ref string) error {
	if _, err := e.expand(name, nil, false); err != nil {
		var cerr *CyclicPipelineError
		if errors.As(err, &cerr) {
			return cerr
		}
	}
	return &CyclicPipelineError{Cycle: []string{name, ref, name}}
}

// Expand resolves name to its flat stage sequence. A stage name that is not
// a pipeline expands to a one-element sequence.
func (e *Expander) Expand(name string) ([]Member, error) {
	e.mu.RLock()
	cached, ok := e.memo[name]
	frozen := e.frozen
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	members, err := e.expand(name, nil, false)
	if err != nil {
		return nil, err
	}
	if frozen {
		e.mu.Lock()
		e.memo[name] = members
		e.mu.Unlock()
	}
	return members, nil
}

// expand resolves one reference. path is the chain of pipeline names on the
// current expansion, used to detect re-entry.
func (e *Expander) expand(ref string, path []string, hidden bool) ([]Member, error) {
	e.mu.RLock()
	def, isPipe := e.defs[ref]
	e.mu.RUnlock()

	if !isPipe {
		st, nameUsed, suffix, ok := e.reg.Match(ref)
		if !ok {
			return nil, &stage.UnknownStageError{Name: ref}
		}
		if _, err := st.DecodeParams(suffix); err != nil {
			return nil, err
		}
		return []Member{{Stage: st, Name: nameUsed, Suffix: suffix, Hidden: hidden}}, nil
	}

	for i, seen := range path {
		if seen == ref {
			cycle := append(append([]string{}, path[i:]...), ref)
			return nil, &CyclicPipelineError{Cycle: cycle}
		}
	}
	path = append(path, ref)

	var out []Member
	for _, m := range def.Members {
		hide := def.Hide
		if m.Hide != nil {
			hide = *m.Hide
		}
		members, err := e.expand(m.Ref, path, hide || hidden)
		if err != nil {
			if _, ok := err.(*CyclicPipelineError); ok {
				return nil, err
			}
			return nil, fmt.Errorf("pipeline %s: %w", ref, err)
		}
		out = append(out, members...)
	}
	return out, nil
}
