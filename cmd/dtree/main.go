// Command dtree is a thin command-line driver exercising the params/tree/
// irv/posterior/candidate packages end to end, in the manner of root
// main.go: a flat map of subcommands, each owning its own flag.FlagSet,
// dispatched by name.
//
// The library packages are usable standalone from any Go program; this
// binary exists only to give the module a runnable surface, the way the
// vegeta CLI exercises lib/.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

type command struct {
	fs *flag.FlagSet
	fn func(args []string) error
}

func main() {
	commands := map[string]command{
		"sample":    sampleCmd(),
		"posterior": posteriorCmd(),
		"irv":       irvCmd(),
	}

	flag.Usage = func() {
		fmt.Println("Usage: dtree <command> [options]")
		for name, cmd := range commands {
			fmt.Printf("\n%s command:\n", name)
			cmd.fs.PrintDefaults()
		}
		fmt.Print(examples)
	}

	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		log.Fatalf("unknown command: %s", args[0])
	}
	if err := cmd.fn(args[1:]); err != nil {
		log.Fatal(err)
	}
}

const examples = `
examples:
  dtree sample -n=4 -a0=1 -n-ballots=10 -seed=demo
  dtree posterior -candidates=Alice,Bob,Carol -observed=ballots.txt -n-elections=10000 -n-batches=8 -seed=audit-1
  dtree irv -candidates=Alice,Bob,Carol -ballots=ballots.txt -seed=audit-1
`
