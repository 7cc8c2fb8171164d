package daemon

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stagepath/stagepath/internal/cli"
	"github.com/stagepath/stagepath/internal/ipc"
)

// ServeMCP exposes the resolver as MCP tools over stdio: parse, resolve,
// expand, stages, and targets. Engine-side agents use it to query the
// catalogue without linking against us.
func ServeMCP(env *cli.Env, version string) error {
	s := server.NewMCPServer("stagepath", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("parse",
		mcp.WithDescription("Decode a stage path into its canonical form"),
		mcp.WithString("path", mcp.Required(), mcp.Description("stage path, e.g. proj.trimQ10.assemble")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp := env.Handle(ipc.Request{Op: ipc.OpParse, Path: path})
		if resp.Error != "" {
			return mcp.NewToolResultError(resp.ErrorKind + ": " + resp.Error), nil
		}
		return mcp.NewToolResultText(resp.Canonical), nil
	})

	s.AddTool(mcp.NewTool("resolve",
		mcp.WithDescription("Resolve a symbolic token (this/prev/that/target/targets/dir.*) against a stage path"),
		mcp.WithString("path", mcp.Required(), mcp.Description("stage path")),
		mcp.WithString("token", mcp.Required(), mcp.Description("symbolic token")),
		mcp.WithNumber("position", mcp.Description("stage position, defaults to the last stage")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		token, err := req.RequireString("token")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		r := ipc.Request{Op: ipc.OpResolve, Path: path, Token: token}
		if pos := req.GetInt("position", -1); pos >= 0 {
			r.Position = &pos
		}
		resp := env.Handle(r)
		if resp.Error != "" {
			return mcp.NewToolResultError(resp.ErrorKind + ": " + resp.Error), nil
		}
		return mcp.NewToolResultText(strings.Join(resp.Paths, "\n")), nil
	})

	s.AddTool(mcp.NewTool("expand",
		mcp.WithDescription("Expand a declared input/output template against a stage path"),
		mcp.WithString("path", mcp.Required(), mcp.Description("stage path")),
		mcp.WithString("template", mcp.Required(), mcp.Description("template, e.g. {prev}/{target}.fq.gz")),
		mcp.WithNumber("position", mcp.Description("stage position, defaults to the last stage")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		template, err := req.RequireString("template")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		r := ipc.Request{Op: ipc.OpExpand, Path: path, Template: template}
		if pos := req.GetInt("position", -1); pos >= 0 {
			r.Position = &pos
		}
		resp := env.Handle(r)
		if resp.Error != "" {
			return mcp.NewToolResultError(resp.ErrorKind + ": " + resp.Error), nil
		}
		return mcp.NewToolResultText(strings.Join(resp.Paths, "\n")), nil
	})

	s.AddTool(mcp.NewTool("stages",
		mcp.WithDescription("List registered stages with parameters"),
	), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder
		cli.RunStages(env, &sb)
		return mcp.NewToolResultText(sb.String()), nil
	})

	s.AddTool(mcp.NewTool("targets",
		mcp.WithDescription("List the targets of a project root"),
		mcp.WithString("project", mcp.Required(), mcp.Description("project name")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp := env.Handle(ipc.Request{Op: ipc.OpTargets, Path: project})
		if resp.Error != "" {
			return mcp.NewToolResultError(resp.ErrorKind + ": " + resp.Error), nil
		}
		return mcp.NewToolResultText(strings.Join(resp.Paths, "\n")), nil
	})

	return server.ServeStdio(s)
}
