// Package cli implements the stagepath subcommands and the request handler
// shared by the CLI and the daemon.
package cli

import (
	"errors"
	"time"

	"github.com/stagepath/stagepath/internal/catalog"
	"github.com/stagepath/stagepath/internal/ipc"
	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/resolve"
	"github.com/stagepath/stagepath/internal/stack"
	"github.com/stagepath/stagepath/internal/stage"
	"github.com/stagepath/stagepath/internal/trace"
)

// Handler answers protocol requests. Env handles them in-process; the
// client package provides a daemon-backed implementation.
type Handler interface {
	Handle(req ipc.Request) ipc.Response
}

// Env bundles the frozen catalogue and the resolution core. One Env serves
// all requests of a build invocation, in-process or through the daemon.
type Env struct {
	Registry *stage.Registry
	Catalog  *catalog.Catalog
	Parser   *stack.Parser
	Resolver *resolve.Resolver
	Trace    *trace.Logger
}

// Handle answers one protocol request. All resolution errors are reported
// in the response, typed by kind; Handle itself never fails.
func (e *Env) Handle(req ipc.Request) ipc.Response {
	start := time.Now()
	resp := e.handle(req)
	e.logTrace(req, resp, time.Since(start))
	return resp
}

func (e *Env) handle(req ipc.Request) ipc.Response {
	switch req.Op {
	case ipc.OpParse:
		st, err := e.Parser.Parse(req.Path)
		if err != nil {
			return errResponse(err)
		}
		return ipc.Response{Canonical: st.Path(), Display: st.Display()}

	case ipc.OpResolve:
		st, pos, err := e.parseAt(req)
		if err != nil {
			return errResponse(err)
		}
		paths, err := e.Resolver.Resolve(req.Token, st, pos)
		if err != nil {
			return errResponse(err)
		}
		return ipc.Response{Paths: paths, Canonical: st.Path()}

	case ipc.OpExpand:
		st, pos, err := e.parseAt(req)
		if err != nil {
			return errResponse(err)
		}
		paths, err := e.Resolver.ExpandTemplate(req.Template, st, pos, req.Wildcards)
		if err != nil {
			return errResponse(err)
		}
		return ipc.Response{Paths: paths, Canonical: st.Path()}

	case ipc.OpTargets:
		ids, err := e.Catalog.Targets(req.Path)
		if err != nil {
			return errResponse(err)
		}
		return ipc.Response{Paths: ids}

	default:
		return ipc.Response{Error: "unknown op " + req.Op, ErrorKind: "bad-request"}
	}
}

// parseAt parses the request path and picks the addressed position,
// defaulting to the last stage.
func (e *Env) parseAt(req ipc.Request) (*stack.Stack, int, error) {
	st, err := e.Parser.Parse(req.Path)
	if err != nil {
		return nil, 0, err
	}
	if req.Position != nil {
		return st, *req.Position, nil
	}
	if st.Len() == 0 {
		return nil, 0, &stack.EmptyStackError{Path: req.Path}
	}
	return st, st.Len() - 1, nil
}

func (e *Env) logTrace(req ipc.Request, resp ipc.Response, d time.Duration) {
	if e.Trace == nil {
		return
	}
	token := req.Token
	if token == "" {
		token = req.Template
	}
	// Best-effort: a trace failure never fails the request.
	_ = e.Trace.Log(req.Op, req.Path, resp.Canonical, token, resp.Paths, resp.Error, d)
}

func errResponse(err error) ipc.Response {
	return ipc.Response{Error: err.Error(), ErrorKind: ErrorKind(err)}
}

// ErrorKind maps resolution errors to their stable protocol names.
func ErrorKind(err error) string {
	var (
		unknownStage  *stage.UnknownStageError
		duplicate     *stage.DuplicateStageError
		invalidSuffix *stage.InvalidParameterSuffixError
		cyclic        *pipeline.CyclicPipelineError
		emptyStack    *stack.EmptyStackError
		noPrev        *resolve.NoPreviousStageError
		notBranching  *resolve.NotABranchingStageError
		unresolved    *resolve.UnresolvedTokenError
		unknownAttr   *resolve.UnknownAttributeError
	)
	switch {
	case errors.As(err, &unknownStage):
		return "unknown-stage"
	case errors.As(err, &duplicate):
		return "duplicate-stage"
	case errors.As(err, &invalidSuffix):
		return "invalid-parameter-suffix"
	case errors.As(err, &cyclic):
		return "cyclic-pipeline"
	case errors.As(err, &emptyStack):
		return "empty-stack"
	case errors.As(err, &noPrev):
		return "no-previous-stage"
	case errors.As(err, &notBranching):
		return "not-a-branching-stage"
	case errors.As(err, &unresolved):
		return "unresolved-token"
	case errors.As(err, &unknownAttr):
		return "unknown-attribute"
	default:
		return "internal"
	}
}
