// Package report renders a run's outcomes into the e-mailed log.
package report

import (
	"fmt"
	"strings"

	"uvabs/internal/batch"
)

const rule = "############################################################################"

// Render produces the human-readable run log: one header per batch, one line
// per file outcome or error, and a closing summary. Every outcome of the run
// appears; nothing is silent.
func Render(r batch.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "UV absorbance upload run started %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))

	if len(r.Batches) == 0 {
		b.WriteString("\nNo batch folders with pending files found.\n")
	}

	for _, res := range r.Batches {
		fmt.Fprintf(&b, "\n%s\n%s\n%s\n", rule, res.Dir, rule)

		for _, fe := range res.FileErrors {
			fmt.Fprintf(&b, "ERROR: %v\n", fe.Err)
		}
		if res.BatchErr != nil {
			fmt.Fprintf(&b, "ERROR: %v\n", res.BatchErr)
			continue
		}
		for _, o := range res.Outcomes {
			b.WriteString(o.LogLine())
			b.WriteString("\n")
		}
	}

	uploaded, skipped, failed := r.Counts()
	fmt.Fprintf(&b, "\nFinished %s: %d uploaded, %d skipped, %d failed.\n",
		r.FinishedAt.Format("2006-01-02 15:04:05 MST"), uploaded, skipped, failed)

	return b.String()
}
