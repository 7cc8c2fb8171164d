// Package stage defines processing stages, their parameter specs, and the
// closed registry the stack parser matches path segments against.
//
// A stage is a named processing step with one output directory, or two when
// it splits its input (AltName names the second branch, e.g. filter/remove).
// Stages are registered once at startup; Freeze closes registration before
// any parsing starts.
package stage

import (
	"fmt"
	"sync"
)

// Stage describes a single processing step.
type Stage struct {
	// Name is the unique stage name as it appears in paths.
	Name string

	// AltName, when non-empty, names the alternate output branch of a
	// splitting stage. The parser accepts both names; {that} swaps between
	// them.
	AltName string

	// Params are the stage's parameter specs in declared order. Declared
	// order is the canonical encoding order.
	Params []*ParamSpec

	// Inputs and Outputs are the declared input/output templates, consumed
	// by the symbolic reference resolver. The execution semantics behind
	// them belong to the task engine, not to us.
	Inputs  []string
	Outputs []string

	// Doc is a one-line description for listings.
	Doc string
}

// Branches reports the number of logical output branches (1 or 2).
func (s *Stage) Branches() int {
	if s.AltName != "" {
		return 2
	}
	return 1
}

// String returns the stage name, or "name|altname" for splitting stages.
func (s *Stage) String() string {
	if s.AltName != "" {
		return s.Name + "|" + s.AltName
	}
	return s.Name
}

// validate checks the definition invariants that registration relies on.
func (s *Stage) validate() error {
	if !validStageName(s.Name) {
		return fmt.Errorf("invalid stage name %q", s.Name)
	}
	if s.AltName != "" && !validStageName(s.AltName) {
		return fmt.Errorf("stage %s: invalid alternate name %q", s.Name, s.AltName)
	}
	if s.Name == s.AltName {
		return fmt.Errorf("stage %s: alternate name equals primary name", s.Name)
	}
	seenKey := make(map[string]bool)
	seenName := make(map[string]bool)
	positional := 0
	for i, p := range s.Params {
		if err := p.validate(); err != nil {
			return fmt.Errorf("stage %s: %w", s.Name, err)
		}
		if p.Key == "" {
			positional++
			if positional > 1 {
				return fmt.Errorf("stage %s: more than one positional parameter", s.Name)
			}
			// The positional value has no key to delimit it, so it must
			// lead the suffix; after a keyed value it would merge with
			// that value's token run and break re-decoding.
			if i > 0 {
				return fmt.Errorf("stage %s: positional parameter %s must be declared first", s.Name, p.Name)
			}
		} else if seenKey[p.Key] {
			return fmt.Errorf("stage %s: duplicate parameter key %q", s.Name, p.Key)
		}
		if seenName[p.Name] {
			return fmt.Errorf("stage %s: duplicate parameter name %q", s.Name, p.Name)
		}
		seenKey[p.Key] = true
		seenName[p.Name] = true
	}
	return nil
}

// validStageName reports whether name matches [A-Za-z][A-Za-z0-9_]*.
func validStageName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c == '_' || c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return true
}

// Registry maps stage names (primary and alternate) to definitions.
// Registration must complete before parsing starts; Freeze enforces that.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	byName map[string]*Stage // primary and alternate names
	order  []*Stage          // declaration order, one entry per stage
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Stage)}
}

// Register adds a stage. Name collisions (against primary or alternate names
// already present) fail with DuplicateStageError. Registering on a frozen
// registry is a programming error and panics.
func (r *Registry) Register(s *Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("stage: Register after Freeze")
	}
	if err := s.validate(); err != nil {
		return err
	}
	names := []string{s.Name}
	if s.AltName != "" {
		names = append(names, s.AltName)
	}
	for _, name := range names {
		if _, ok := r.byName[name]; ok {
			return &DuplicateStageError{Name: name}
		}
	}
	for _, name := range names {
		r.byName[name] = s
	}
	r.order = append(r.order, s)
	return nil
}

// Freeze closes registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the stage registered under name, which may be a primary or
// an alternate branch name.
func (r *Registry) Lookup(name string) (*Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, &UnknownStageError{Name: name}
	}
	return s, nil
}

// Has reports whether name is registered (primary or alternate).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// All returns the registered stages in declaration order.
func (r *Registry) All() []*Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Stage, len(r.order))
	copy(out, r.order)
	return out
}

// Match finds the stage whose name (primary or alternate) is the longest
// prefix of segment such that the remainder decodes as a parameter suffix.
// Ties on prefix length go to the earlier-registered stage. It returns the
// stage, the name that matched, and the remaining suffix text.
func (r *Registry) Match(segment string) (st *Stage, nameUsed, suffix string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bestLen := -1
	for _, s := range r.order {
		for _, name := range []string{s.Name, s.AltName} {
			if name == "" || len(name) <= bestLen {
				continue
			}
			if len(name) > len(segment) || segment[:len(name)] != name {
				continue
			}
			if _, err := s.DecodeParams(segment[len(name):]); err != nil {
				continue
			}
			st, nameUsed, bestLen = s, name, len(name)
		}
	}
	if st == nil {
		return nil, "", "", false
	}
	return st, nameUsed, segment[bestLen:], true
}
