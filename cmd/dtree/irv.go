package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/fleverest/DtreeElections/candidate"
	"github.com/fleverest/DtreeElections/internal/flagutil"
	"github.com/fleverest/DtreeElections/internal/seed"
)

func irvCmd() command {
	fs := flag.NewFlagSet("irv", flag.ExitOnError)
	var names []string
	fs.Var(&flagutil.StringList{List: &names}, "candidates", "Comma-separated candidate names")
	ballots := os.Stdin
	fs.Var(&flagutil.File{File: ballots, Flags: os.O_RDONLY}, "ballots", "Ballot file (\"stdin\" for standard input)")
	nWinners := fs.Int("n-winners", 1, "Number of winners to elect")
	seedStr := fs.String("seed", "dtree", "PRNG seed string for tie-breaking")

	return command{fs: fs, fn: func(args []string) error {
		if err := fs.Parse(args); err != nil {
			return err
		}

		adapter, err := candidate.NewAdapter(names)
		if err != nil {
			return err
		}
		defer ballots.Close()
		nc, err := readNamedCounts(ballots)
		if err != nil {
			return err
		}
		counts, err := adapter.ToCounts(nc)
		if err != nil {
			return err
		}

		rng := seed.New(*seedStr)
		result, err := adapter.RunIRV(counts, *nWinners, rng)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}}
}
