package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/fleverest/DtreeElections/params"
	"github.com/fleverest/DtreeElections/tree"
)

func sampleCmd() command {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	n := fs.Int("n", 3, "Number of candidates")
	a0 := fs.Float64("a0", 1, "Dirichlet concentration")
	minDepth := fs.Int("min-depth", 0, "Minimum ballot depth (halt branch available at and above this depth)")
	maxDepth := fs.Int("max-depth", -1, "Maximum ballot depth [default: n]")
	reducible := fs.Bool("reducible", false, "Enable reducible-to-Dirichlet mode")
	nBallots := fs.Int("n-ballots", 10, "Number of ballots to draw from the prior")
	seed := fs.String("seed", "dtree", "PRNG seed string")

	return command{fs: fs, fn: func(args []string) error {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *maxDepth < 0 {
			*maxDepth = *n
		}

		t, err := tree.New(*n, *seed,
			params.WithA0(*a0),
			params.WithMinDepth(*minDepth),
			params.WithMaxDepth(*maxDepth),
			params.WithReducible(*reducible))
		if err != nil {
			return err
		}

		counts, err := t.Sample(*nBallots)
		if err != nil {
			return err
		}
		for _, c := range counts {
			parts := make([]string, len(c.Ballot))
			for i, cand := range c.Ballot {
				parts[i] = strconv.Itoa(cand)
			}
			fmt.Printf("%d %s\n", c.N, strings.Join(parts, ","))
		}
		return nil
	}}
}
