package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/fleverest/DtreeElections/candidate"
	"github.com/fleverest/DtreeElections/internal/errs"
	"github.com/fleverest/DtreeElections/internal/flagutil"
	"github.com/fleverest/DtreeElections/params"
	"github.com/fleverest/DtreeElections/posterior"
	"github.com/fleverest/DtreeElections/tree"
)

func posteriorCmd() command {
	fs := flag.NewFlagSet("posterior", flag.ExitOnError)
	var names []string
	fs.Var(&flagutil.StringList{List: &names}, "candidates", "Comma-separated candidate names")
	observed := os.Stdin
	fs.Var(&flagutil.File{File: observed, Flags: os.O_RDONLY}, "observed", "Observed-ballots file (\"stdin\" for standard input)")
	var reportedNames []string
	fs.Var(&flagutil.StringList{List: &reportedNames}, "reported-winners", "Comma-separated certified winner names, to compute a match rate against")
	a0 := fs.Float64("a0", 1, "Dirichlet concentration")
	minDepth := fs.Int("min-depth", 0, "Minimum ballot depth")
	maxDepth := fs.Int("max-depth", -1, "Maximum ballot depth [default: n candidates]")
	reducible := fs.Bool("reducible", false, "Enable reducible-to-Dirichlet mode")
	nElections := fs.Int("n-elections", 10000, "Number of posterior elections to simulate")
	nBallots := fs.Int("n-ballots", 0, "Total ballot population size [default: number observed]")
	nWinners := fs.Int("n-winners", 1, "Number of winners per simulated election")
	nBatches := fs.Int("n-batches", 4, "Number of parallel batches")
	replace := fs.Bool("replace", true, "Sample unobserved ballots with replacement")
	seedStr := fs.String("seed", "dtree", "PRNG seed string")
	metricsAddr := fs.String("metrics-addr", "", "If set, serve Prometheus metrics at this address (e.g. http://localhost:8880)")

	return command{fs: fs, fn: func(args []string) error {
		if err := fs.Parse(args); err != nil {
			return err
		}

		adapter, err := candidate.NewAdapter(names)
		if err != nil {
			return err
		}
		if *maxDepth < 0 {
			*maxDepth = adapter.NCandidates()
		}

		defer observed.Close()
		nc, err := readNamedCounts(observed)
		if err != nil {
			return err
		}
		observedCounts, err := adapter.ToCounts(nc)
		if err != nil {
			return err
		}

		t, err := tree.New(adapter.NCandidates(), *seedStr,
			params.WithA0(*a0),
			params.WithMinDepth(*minDepth),
			params.WithMaxDepth(*maxDepth),
			params.WithReducible(*reducible),
			params.WithWarnFunc(func(w *errs.Warning) {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
			}))
		if err != nil {
			return err
		}
		if err := t.Update(observedCounts); err != nil {
			return err
		}

		if *nBallots == 0 {
			*nBallots = observedCounts.Total()
		}

		var reportedIdx []int
		for _, name := range reportedNames {
			if name == "" {
				continue
			}
			idx, ok := adapter.Index(name)
			if !ok {
				return fmt.Errorf("reported winner %q is not a known candidate", name)
			}
			reportedIdx = append(reportedIdx, idx)
		}

		var metrics *posterior.Metrics
		if *metricsAddr != "" {
			metrics = posterior.NewMetrics()
			if err := metrics.Listen(*metricsAddr); err != nil {
				return err
			}
			defer metrics.Close()
		}

		driver, err := posterior.NewDriver(t, posterior.Config{
			NWinners:        *nWinners,
			ReportedWinners: reportedIdx,
			Replace:         *replace,
			Metrics:         metrics,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			cancel()
		}()

		summary, err := driver.Run(ctx, *nElections, *nBallots, *nBatches, runtime.NumCPU())
		if err != nil {
			return err
		}

		probs := summary.WinProbabilities()
		for i, p := range probs {
			fmt.Printf("%s\t%.4f\n", adapter.Name(i), p)
		}
		if len(reportedIdx) > 0 && summary.NElections > 0 {
			fmt.Fprintf(os.Stderr, "match rate: %.4f (%d/%d)\n",
				float64(summary.Matches)/float64(summary.NElections), summary.Matches, summary.NElections)
		}
		return nil
	}}
}
