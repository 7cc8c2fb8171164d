package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stagepath/stagepath/internal/catalog"
	"github.com/stagepath/stagepath/internal/ipc"
	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/resolve"
	"github.com/stagepath/stagepath/internal/stack"
	"github.com/stagepath/stagepath/internal/stage"
	"github.com/stagepath/stagepath/internal/stage/builtin"
	"github.com/stagepath/stagepath/internal/trace"
)

const envCatalog = `
projects:
  toy:
    targets: [s1, s2]
references:
  phix:
    dir: refs/phix
dirs:
  tmp: .tmp
pipelines:
  qc:
    stages: [trimQ10, dedup]
`

// testEnv wires a full Env over the built-in stages and a small catalogue.
func testEnv(t *testing.T, tracePath string) *Env {
	t.Helper()
	cat, err := catalog.Parse([]byte(envCatalog))
	if err != nil {
		t.Fatal(err)
	}
	reg := stage.NewRegistry()
	if err := builtin.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	exp := pipeline.NewExpander(reg)
	if err := cat.Apply(reg, exp); err != nil {
		t.Fatal(err)
	}
	reg.Freeze()
	if err := exp.Check(); err != nil {
		t.Fatal(err)
	}

	var tracer *trace.Logger
	if tracePath != "" {
		tracer, err = trace.NewLogger(tracePath)
		if err != nil {
			t.Fatal(err)
		}
	}
	return &Env{
		Registry: reg,
		Catalog:  cat,
		Parser:   stack.NewParser(reg, exp, cat, nil),
		Resolver: resolve.New(cat, cat),
		Trace:    tracer,
	}
}

func TestHandleParse(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpParse, Path: "toy.qc.assemble"})
	if resp.Error != "" {
		t.Fatalf("error: %s (%s)", resp.Error, resp.ErrorKind)
	}
	if resp.Canonical != "toy.trimQ10.dedup.assemble" {
		t.Errorf("canonical = %q", resp.Canonical)
	}
	if resp.Display != "toy.trimQ10.dedup.assemble" {
		t.Errorf("display = %q", resp.Display)
	}
}

func TestHandleParseError(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpParse, Path: "toy.bogusstage"})
	if resp.Error == "" || resp.ErrorKind != "unknown-stage" {
		t.Fatalf("got %q kind %q", resp.Error, resp.ErrorKind)
	}
}

func TestHandleResolve(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpResolve, Path: "toy.trim.assemble", Token: "prev"})
	if resp.Error != "" {
		t.Fatalf("error: %s", resp.Error)
	}
	if len(resp.Paths) != 1 || resp.Paths[0] != "toy.trim" {
		t.Errorf("paths = %v", resp.Paths)
	}

	// Explicit position addresses an inner stage.
	pos := 0
	resp = env.Handle(ipc.Request{Op: ipc.OpResolve, Path: "toy.trim.assemble", Token: "this", Position: &pos})
	if resp.Error != "" || resp.Paths[0] != "toy.trim" {
		t.Errorf("got %v / %s", resp.Paths, resp.Error)
	}
}

func TestHandleExpand(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpExpand, Path: "toy.trim.assemble", Template: "{prev}/{target}.fq.gz"})
	if resp.Error != "" {
		t.Fatalf("error: %s", resp.Error)
	}
	want := []string{"toy.trim/s1.fq.gz", "toy.trim/s2.fq.gz"}
	if len(resp.Paths) != len(want) {
		t.Fatalf("paths = %v", resp.Paths)
	}
	for i := range want {
		if resp.Paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, resp.Paths[i], want[i])
		}
	}
}

func TestHandleTargets(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpTargets, Path: "toy"})
	if resp.Error != "" || len(resp.Paths) != 2 {
		t.Fatalf("got %v / %s", resp.Paths, resp.Error)
	}
}

func TestHandleBareRootNeedsStage(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: ipc.OpResolve, Path: "toy", Token: "this"})
	if resp.ErrorKind != "empty-stack" {
		t.Fatalf("kind = %q (%s)", resp.ErrorKind, resp.Error)
	}
}

func TestHandleUnknownOp(t *testing.T) {
	env := testEnv(t, "")
	resp := env.Handle(ipc.Request{Op: "launch"})
	if resp.ErrorKind != "bad-request" {
		t.Fatalf("kind = %q", resp.ErrorKind)
	}
}

func TestHandleWritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	env := testEnv(t, path)

	env.Handle(ipc.Request{Op: ipc.OpParse, Path: "toy.trim"})
	env.Handle(ipc.Request{Op: ipc.OpParse, Path: "toy.bogusstage"})

	entries, err := trace.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("trace holds %d entries, want 2", len(entries))
	}
	if entries[0].Op != "parse" || entries[0].Canonical != "toy.trim" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Error == "" {
		t.Error("failed request not recorded in trace")
	}
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&stage.UnknownStageError{Name: "x"}, "unknown-stage"},
		{&stage.DuplicateStageError{Name: "x"}, "duplicate-stage"},
		{&stage.InvalidParameterSuffixError{Stage: "x"}, "invalid-parameter-suffix"},
		{&pipeline.CyclicPipelineError{}, "cyclic-pipeline"},
		{&stack.EmptyStackError{}, "empty-stack"},
		{&resolve.NoPreviousStageError{}, "no-previous-stage"},
		{&resolve.NotABranchingStageError{}, "not-a-branching-stage"},
		{&resolve.UnresolvedTokenError{}, "unresolved-token"},
		{&resolve.UnknownAttributeError{}, "unknown-attribute"},
		{errors.New("boom"), "internal"},
	}
	for _, c := range cases {
		if got := ErrorKind(c.err); got != c.want {
			t.Errorf("ErrorKind(%T) = %q, want %q", c.err, got, c.want)
		}
	}
}
