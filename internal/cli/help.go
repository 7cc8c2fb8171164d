package cli

import (
	"fmt"
	"io"
)

// RunHelp shows help for a stage or general usage.
func RunHelp(env *Env, w io.Writer, args []string) int {
	if env == nil || len(args) == 0 {
		printGeneralHelp(w)
		return 0
	}

	name := args[0]
	s, err := env.Registry.Lookup(name)
	if err != nil {
		fmt.Fprintf(w, "stagepath help: %v\n", err)
		return 1
	}

	fmt.Fprintf(w, "%s — %s\n", s, s.Doc)
	fmt.Fprintf(w, "branches: %d\n", s.Branches())
	for _, p := range s.Params {
		fmt.Fprintf(w, "  %-8s %-7s %-12s default %q\n", p.Key, p.Type, p.Name, p.Default)
	}
	for _, in := range s.Inputs {
		fmt.Fprintf(w, "  input:  %s\n", in)
	}
	for _, out := range s.Outputs {
		fmt.Fprintf(w, "  output: %s\n", out)
	}
	return 0
}

func printGeneralHelp(w io.Writer) {
	fmt.Fprintln(w, "stagepath — stage stack decoding and reference resolution")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  stagepath parse <path>                         decode a path, print canonical form")
	fmt.Fprintln(w, "  stagepath resolve <path> <token> [--pos n]     resolve this/prev/that/target tokens")
	fmt.Fprintln(w, "  stagepath expand <path> <template> [--pos n]   expand a declared template")
	fmt.Fprintln(w, "  stagepath stages                               list registered stages and parameters")
	fmt.Fprintln(w, "  stagepath targets <project>                    list a project's targets")
	fmt.Fprintln(w, "  stagepath serve                                run the resolver daemon")
	fmt.Fprintln(w, "  stagepath mcp                                  serve resolver tools over MCP stdio")
	fmt.Fprintln(w, "  stagepath trace [n]                            show recent resolution trace entries")
	fmt.Fprintln(w, "  stagepath help [<stage>]                       show help")
	fmt.Fprintln(w, "  stagepath version                              show version")
}
