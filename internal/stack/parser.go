package stack

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/stage"
)

// EmptyStackError reports a path with no project segment.
type EmptyStackError struct {
	Path string
}

func (e *EmptyStackError) Error() string {
	return fmt.Sprintf("path %q contains no stages", e.Path)
}

// ProjectSource tells the parser which root identifiers are valid. The
// project catalogue implements it.
type ProjectSource interface {
	HasProject(name string) bool
}

// Parser decodes paths into stage stacks. Parsing is pure; results are
// memoized per path for the lifetime of the parser (one build invocation).
type Parser struct {
	reg      *stage.Registry
	pipes    *pipeline.Expander
	projects ProjectSource
	cache    *cache
	log      *zap.Logger
}

// NewParser creates a parser. The registry and expander must be frozen and
// checked before the first Parse call.
func NewParser(reg *stage.Registry, pipes *pipeline.Expander, projects ProjectSource, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{
		reg:      reg,
		pipes:    pipes,
		projects: projects,
		cache:    newCache(),
		log:      log,
	}
}

// Parse decodes path into a stack. Results are cached per path string with
// at-most-once computation; failed parses are not cached.
func (p *Parser) Parse(path string) (*Stack, error) {
	st, err, fresh := p.cache.get(path, p.parse)
	if err != nil {
		return nil, err
	}
	if fresh {
		p.log.Info("stage stack built",
			zap.String("path", path),
			zap.String("canonical", st.Path()),
			zap.Int("depth", st.Len()))
	}
	return st, nil
}

// parse is the uncached decode. It never mutates shared state.
func (p *Parser) parse(path string) (*Stack, error) {
	if path == "" {
		return nil, &EmptyStackError{Path: path}
	}
	segments := strings.Split(path, Sep)
	root := segments[0]
	if root == "" {
		return nil, &EmptyStackError{Path: path}
	}
	if !p.projects.HasProject(root) {
		return nil, &stage.UnknownStageError{Name: root}
	}

	st := &Stack{root: root, source: path}
	for _, seg := range segments[1:] {
		if seg == "" {
			return nil, fmt.Errorf("path %q: empty segment", path)
		}
		if p.pipes != nil && p.pipes.Has(seg) {
			if err := p.splice(st, seg); err != nil {
				return nil, err
			}
			continue
		}
		def, nameUsed, suffix, ok := p.reg.Match(seg)
		if !ok {
			return nil, p.segmentError(seg)
		}
		binding, err := def.DecodeParams(suffix)
		if err != nil {
			return nil, err
		}
		st.stages = append(st.stages, &Instance{
			Stage:   def,
			Name:    nameUsed,
			Binding: binding,
			Depth:   len(st.stages),
		})
	}
	return st, nil
}

// splice expands a pipeline reference and appends its member stages.
func (p *Parser) splice(st *Stack, ref string) error {
	members, err := p.pipes.Expand(ref)
	if err != nil {
		return err
	}
	for _, m := range members {
		binding, err := m.Stage.DecodeParams(m.Suffix)
		if err != nil {
			return err
		}
		st.stages = append(st.stages, &Instance{
			Stage:    m.Stage,
			Name:     m.Name,
			Binding:  binding,
			Depth:    len(st.stages),
			pipeline: ref,
			hidden:   m.Hidden,
		})
	}
	return nil
}

// segmentError distinguishes a wholly unknown segment from a known stage
// with a bad suffix, so the caller sees the more specific error.
func (p *Parser) segmentError(seg string) error {
	var best *stage.Stage
	bestLen := -1
	var bestName string
	for _, s := range p.reg.All() {
		for _, name := range []string{s.Name, s.AltName} {
			if name == "" || len(name) <= bestLen {
				continue
			}
			if strings.HasPrefix(seg, name) {
				best, bestName, bestLen = s, name, len(name)
			}
		}
	}
	if best != nil {
		if _, err := best.DecodeParams(seg[len(bestName):]); err != nil {
			return err
		}
	}
	return &stage.UnknownStageError{Name: seg}
}
