package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/stack"
	"github.com/stagepath/stagepath/internal/stage"
	"github.com/stagepath/stagepath/internal/stage/builtin"
)

type stubAttrs map[string]string

func (a stubAttrs) Attribute(path string) (string, error) {
	if v, ok := a[path]; ok {
		return v, nil
	}
	return "", &UnknownAttributeError{Attribute: path}
}

type stubTargets map[string][]string

func (s stubTargets) Targets(root string) ([]string, error) {
	ids := s[root]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

type projectSet map[string]bool

func (p projectSet) HasProject(name string) bool { return p[name] }

func testResolver(t *testing.T) (*Resolver, *stack.Parser) {
	t.Helper()
	reg := stage.NewRegistry()
	require.NoError(t, builtin.RegisterAll(reg))
	require.NoError(t, reg.Register(&stage.Stage{
		Name:    "ref_x",
		Outputs: []string{"{this}/sequences.fasta"},
	}))
	exp := pipeline.NewExpander(reg)
	reg.Freeze()
	require.NoError(t, exp.Check())

	r := New(
		stubAttrs{"dir.tmp": ".tmp", "ref.x.dir": "refs/x"},
		stubTargets{"sample": {"s1", "s2"}},
	)
	return r, stack.NewParser(reg, exp, projectSet{"sample": true}, nil)
}

func mustParse(t *testing.T, p *stack.Parser, path string) *stack.Stack {
	t.Helper()
	st, err := p.Parse(path)
	require.NoError(t, err)
	return st
}

func TestResolveThisAndPrev(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trimQ10.dedup.assemble")

	// {this} at position k is the canonical path truncated after stage k;
	// {prev} is {this} of position k-1.
	for k := 0; k < st.Len(); k++ {
		this, err := r.Resolve("this", st, k)
		require.NoError(t, err)
		assert.Equal(t, []string{st.Prefix(k + 1).Path()}, this)

		if k == 0 {
			continue
		}
		prev, err := r.Resolve("prev", st, k)
		require.NoError(t, err)
		prior, err := r.Resolve("this", st, k-1)
		require.NoError(t, err)
		assert.Equal(t, prior, prev)
	}

	this, err := r.Resolve("this", st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.trimQ10.dedup"}, this)
}

func TestResolvePrevAtFirstStage(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	_, err := r.Resolve("prev", st, 0)
	var perr *NoPreviousStageError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "sample.trim", perr.Path)
}

func TestResolveThat(t *testing.T) {
	r, p := testResolver(t)

	keep := mustParse(t, p, "sample.ref_x.filter")
	that, err := r.Resolve("that", keep, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.ref_x.remove"}, that)

	// Symmetric from the other branch.
	drop := mustParse(t, p, "sample.ref_x.remove")
	that, err = r.Resolve("that", drop, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.ref_x.filter"}, that)

	// Parameters carry over to the sibling segment.
	st := mustParse(t, p, "sample.ref_x.filterEbowtie")
	that, err = r.Resolve("that", st, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.ref_x.removeEbowtie"}, that)

	// Works at the first stage too.
	st = mustParse(t, p, "sample.filter")
	that, err = r.Resolve("that", st, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.remove"}, that)
}

func TestResolveThatOnSingleBranch(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	_, err := r.Resolve("that", st, 0)
	var berr *NotABranchingStageError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "trim", berr.Stage)
}

func TestResolveTargets(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	for _, token := range []string{"target", "targets"} {
		ids, err := r.Resolve(token, st, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"s1", "s2"}, ids)
	}
}

func TestResolveAttributes(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	val, err := r.Resolve("dir.tmp", st, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{".tmp"}, val)

	val, err = r.Resolve("ref.x.dir", st, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"refs/x"}, val)

	_, err = r.Resolve("dir.nope", st, 0)
	var aerr *UnknownAttributeError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "dir.nope", aerr.Attribute)
}

func TestResolveWildcardPassThrough(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	val, err := r.Resolve("pairsuffix", st, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"{pairsuffix}"}, val)
}

func TestResolvePositionErrors(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	_, err := r.Resolve("this", st, 5)
	require.Error(t, err)
	_, err = r.Resolve("this", st, -1)
	require.Error(t, err)

	bare := mustParse(t, p, "sample")
	_, err = r.Resolve("this", bare, 0)
	var eerr *stack.EmptyStackError
	require.ErrorAs(t, err, &eerr)
}

func TestExpandTemplateScalar(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim.assemble")

	out, err := r.ExpandTemplate("{prev}/reads.fq.gz", st, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.trim/reads.fq.gz"}, out)

	out, err = r.ExpandTemplate("{dir.tmp}/scratch", st, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".tmp/scratch"}, out)
}

func TestExpandTemplateFanOut(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim.assemble")

	out, err := r.ExpandTemplate("{prev}/{target}.fq.gz", st, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sample.trim/s1.fq.gz",
		"sample.trim/s2.fq.gz",
	}, out)

	out, err = r.ExpandTemplate("{this}/{targets}.bam", st, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"sample.trim.assemble/s1.bam",
		"sample.trim.assemble/s2.bam",
	}, out)
}

func TestExpandTemplateDeclaredToken(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	// Undeclared identifiers pass through for the engine to fill in.
	out, err := r.ExpandTemplate("{this}/{pair}.fq.gz", st, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sample.trim/{pair}.fq.gz"}, out)

	// The same identifier fails once the rule declares it.
	_, err = r.ExpandTemplate("{this}/{pair}.fq.gz", st, 0, []string{"pair"})
	var uerr *UnresolvedTokenError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "pair", uerr.Token)
}

func TestExpandTemplateErrorPropagates(t *testing.T) {
	r, p := testResolver(t)
	st := mustParse(t, p, "sample.trim")

	_, err := r.ExpandTemplate("{prev}/{target}.fq.gz", st, 0, nil)
	var perr *NoPreviousStageError
	require.ErrorAs(t, err, &perr)
}
