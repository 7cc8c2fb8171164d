package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stagepath/stagepath/internal/ipc"
	"github.com/stagepath/stagepath/internal/trace"
)

// RunParse decodes a path and prints its canonical and display forms.
func RunParse(env Handler, w, ew io.Writer, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(ew, "stagepath parse: expected exactly one path")
		return 1
	}
	resp := env.Handle(ipc.Request{Op: ipc.OpParse, Path: args[0]})
	if resp.Error != "" {
		fmt.Fprintf(ew, "stagepath parse: %s\n", resp.Error)
		return 1
	}
	fmt.Fprintln(w, resp.Canonical)
	if resp.Display != resp.Canonical {
		fmt.Fprintf(w, "display: %s\n", resp.Display)
	}
	return 0
}

// RunResolve resolves a symbolic token against a path:
// stagepath resolve <path> <token> [--pos <n>]
func RunResolve(env Handler, w, ew io.Writer, args []string) int {
	req := ipc.Request{Op: ipc.OpResolve}
	rest, pos, err := splitPosFlag(args)
	if err != nil {
		fmt.Fprintf(ew, "stagepath resolve: %v\n", err)
		return 1
	}
	if len(rest) != 2 {
		fmt.Fprintln(ew, "stagepath resolve: expected <path> <token>")
		return 1
	}
	req.Path, req.Token, req.Position = rest[0], rest[1], pos
	resp := env.Handle(req)
	if resp.Error != "" {
		fmt.Fprintf(ew, "stagepath resolve: %s\n", resp.Error)
		return 1
	}
	for _, p := range resp.Paths {
		fmt.Fprintln(w, p)
	}
	return 0
}

// RunExpand expands a declared template against a path:
// stagepath expand <path> <template> [--pos <n>] [--wildcards a,b]
func RunExpand(env Handler, w, ew io.Writer, args []string) int {
	req := ipc.Request{Op: ipc.OpExpand}
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--pos":
			if i+1 >= len(args) {
				fmt.Fprintln(ew, "stagepath expand: --pos requires a value")
				return 1
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				fmt.Fprintf(ew, "stagepath expand: bad position %q\n", args[i])
				return 1
			}
			req.Position = &n
		case "--wildcards":
			if i+1 >= len(args) {
				fmt.Fprintln(ew, "stagepath expand: --wildcards requires a value")
				return 1
			}
			i++
			req.Wildcards = strings.Split(args[i], ",")
		default:
			rest = append(rest, args[i])
		}
	}
	if len(rest) != 2 {
		fmt.Fprintln(ew, "stagepath expand: expected <path> <template>")
		return 1
	}
	req.Path, req.Template = rest[0], rest[1]
	resp := env.Handle(req)
	if resp.Error != "" {
		fmt.Fprintf(ew, "stagepath expand: %s\n", resp.Error)
		return 1
	}
	for _, p := range resp.Paths {
		fmt.Fprintln(w, p)
	}
	return 0
}

// RunStages lists the registered stages and pipelines.
func RunStages(env *Env, w io.Writer) int {
	for _, s := range env.Registry.All() {
		var params []string
		for _, p := range s.Params {
			params = append(params, fmt.Sprintf("%s:%s=%s", p.Key, p.Type, p.Default))
		}
		name := s.String()
		fmt.Fprintf(w, "%-20s %-24s %s\n", name, strings.Join(params, " "), s.Doc)
	}
	return 0
}

// RunTargets prints the targets of a project root.
func RunTargets(env Handler, w, ew io.Writer, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(ew, "stagepath targets: expected exactly one project")
		return 1
	}
	resp := env.Handle(ipc.Request{Op: ipc.OpTargets, Path: args[0]})
	if resp.Error != "" {
		fmt.Fprintf(ew, "stagepath targets: %s\n", resp.Error)
		return 1
	}
	for _, id := range resp.Paths {
		fmt.Fprintln(w, id)
	}
	return 0
}

// RunTrace prints the tail of the resolution trace log.
func RunTrace(path string, w, ew io.Writer, args []string) int {
	n := 20
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(ew, "stagepath trace: bad count %q\n", args[0])
			return 1
		}
		n = v
	}
	entries, err := trace.Read(path)
	if err != nil {
		fmt.Fprintf(ew, "stagepath trace: %v\n", err)
		return 1
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = e.Error
		}
		fmt.Fprintf(w, "%s %-8s %-40s %6.1fms %s\n",
			e.Time.Format("2006-01-02T15:04:05Z"), e.Op, e.Path, e.Duration, status)
	}
	return 0
}

func splitPosFlag(args []string) (rest []string, pos *int, err error) {
	for i := 0; i < len(args); i++ {
		if args[i] == "--pos" {
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--pos requires a value")
			}
			i++
			n, convErr := strconv.Atoi(args[i])
			if convErr != nil {
				return nil, nil, fmt.Errorf("bad position %q", args[i])
			}
			pos = &n
			continue
		}
		rest = append(rest, args[i])
	}
	return rest, pos, nil
}
