package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fleverest/DtreeElections/candidate"
)

// readNamedCounts parses one aggregated ballot per line, each of the form
// "<count> <candidate1>,<candidate2>,...", e.g. "3 Alice,Bob,Carol". Blank
// lines and lines starting with '#' are ignored, matching lib/targets.go's
// habit of treating targets files leniently.
func readNamedCounts(r io.Reader) ([]candidate.NamedCount, error) {
	var out []candidate.NamedCount
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("ballot file line %d: expected \"<count> <names>\", got %q", lineNo, line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("ballot file line %d: bad count: %w", lineNo, err)
		}
		names := strings.Split(strings.TrimSpace(fields[1]), ",")
		for i, name := range names {
			names[i] = strings.TrimSpace(name)
		}
		out = append(out, candidate.NamedCount{Ballot: candidate.NamedBallot(names), N: n})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
