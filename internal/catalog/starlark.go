package catalog

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/stage"
)

// LoadStages executes a Starlark stage definition file, registering every
// stage() and pipeline() it declares. A file looks like:
//
//	stage(
//	    "trim",
//	    params = [param("Q", "int", "minqual", default = "20")],
//	    inputs = ["{prev}/{target}.fq.gz"],
//	    outputs = ["{this}/{target}.fq.gz"],
//	)
//	pipeline("qc", stages = ["trim", "dedup"], hide = True)
//
// Declaration errors abort the load; they are startup configuration errors.
func LoadStages(path string, reg *stage.Registry, exp *pipeline.Expander) error {
	loader := &starlarkLoader{reg: reg, exp: exp}
	predeclared := starlark.StringDict{
		"stage":    starlark.NewBuiltin("stage", loader.stageFn),
		"param":    starlark.NewBuiltin("param", paramFn),
		"pipeline": starlark.NewBuiltin("pipeline", loader.pipelineFn),
	}
	thread := &starlark.Thread{Name: "catalog:" + path}
	if _, err := starlark.ExecFile(thread, path, nil, predeclared); err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return fmt.Errorf("load stages: %s", evalErr.Backtrace())
		}
		return fmt.Errorf("load stages: %w", err)
	}
	return nil
}

type starlarkLoader struct {
	reg *stage.Registry
	exp *pipeline.Expander
}

// paramValue wraps a ParamSpec so param() results can travel through
// Starlark lists into stage().
type paramValue struct {
	spec *stage.ParamSpec
}

func (p *paramValue) String() string {
	return fmt.Sprintf("param(%q, %s, %q)", p.spec.Key, p.spec.Type, p.spec.Name)
}
func (p *paramValue) Type() string          { return "param" }
func (p *paramValue) Freeze()               {}
func (p *paramValue) Truth() starlark.Bool  { return starlark.True }
func (p *paramValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: param") }

func paramFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key, typ, name string
		def, on        string
		choices        *starlark.List
	)
	err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"key", &key, "type", &typ, "name", &name,
		"default?", &def, "on?", &on, "choices?", &choices)
	if err != nil {
		return nil, err
	}
	pt, err := stage.ParseParamType(typ)
	if err != nil {
		return nil, err
	}
	spec := &stage.ParamSpec{Key: key, Name: name, Type: pt, Default: def, On: on}
	if choices != nil {
		spec.Choices, err = stringList(choices, "choices")
		if err != nil {
			return nil, err
		}
	}
	return &paramValue{spec: spec}, nil
}

func (l *starlarkLoader) stageFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name, alt, doc          string
		params, inputs, outputs *starlark.List
	)
	err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "alt?", &alt, "params?", &params,
		"inputs?", &inputs, "outputs?", &outputs, "doc?", &doc)
	if err != nil {
		return nil, err
	}

	s := &stage.Stage{Name: name, AltName: alt, Doc: doc}
	if params != nil {
		it := params.Iterate()
		defer it.Done()
		var v starlark.Value
		for it.Next(&v) {
			pv, ok := v.(*paramValue)
			if !ok {
				return nil, fmt.Errorf("stage %s: params must be param() values, got %s", name, v.Type())
			}
			s.Params = append(s.Params, pv.spec)
		}
	}
	if s.Inputs, err = stringList(inputs, "inputs"); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	if s.Outputs, err = stringList(outputs, "outputs"); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	if err := l.reg.Register(s); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (l *starlarkLoader) pipelineFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name, doc string
		stages    *starlark.List
		hide      bool
	)
	err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "stages", &stages, "hide?", &hide, "doc?", &doc)
	if err != nil {
		return nil, err
	}
	refs, err := stringList(stages, "stages")
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", name, err)
	}
	def := &pipeline.Def{Name: name, Hide: hide, Doc: doc}
	for _, ref := range refs {
		def.Members = append(def.Members, pipeline.MemberRef{Ref: ref})
	}
	if err := l.exp.Add(def); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

// stringList converts a Starlark list of strings. A nil list is empty.
func stringList(list *starlark.List, what string) ([]string, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]string, 0, list.Len())
	it := list.Iterate()
	defer it.Done()
	var v starlark.Value
	for it.Next(&v) {
		s, ok := starlark.AsString(v)
		if !ok {
			return nil, fmt.Errorf("%s must be strings, got %s", what, v.Type())
		}
		out = append(out, s)
	}
	return out, nil
}
