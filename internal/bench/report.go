package bench

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"pricebench/internal/aggregate"
	"pricebench/internal/provider"
)

// PrintComparison writes one row per run, fastest first and failures last.
// The runs slice is not reordered.
func PrintComparison(out io.Writer, runs []Run) {
	sorted := append([]Run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if (sorted[i].Err == nil) != (sorted[j].Err == nil) {
			return sorted[i].Err == nil
		}
		return sorted[i].Elapsed < sorted[j].Elapsed
	})

	fmt.Fprintln(out, "\nComparison")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tQUOTES\tELAPSED\tSTATUS")
	for _, r := range sorted {
		status := "ok"
		if r.Err != nil {
			status = "failed: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d ms\t%s\n", r.Strategy, len(r.Quotes), r.Elapsed.Milliseconds(), status)
	}
	tw.Flush()
}

// PrintSummary writes the latest price per provider across all successful
// runs, followed by min/max/mean over those prices.
func PrintSummary(out io.Writer, runs []Run) {
	var all []provider.Quote
	for _, r := range runs {
		all = append(all, r.Quotes...)
	}
	if len(all) == 0 {
		return
	}

	rows := aggregate.LatestByProvider(all)
	fmt.Fprintln(out, "\nLatest prices")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tPRICE\tSAMPLES")
	latest := make([]provider.Quote, 0, len(rows))
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\n", row.Provider, row.Price, row.Samples)
		latest = append(latest, provider.Quote{Provider: row.Provider, Price: row.Price})
	}
	tw.Flush()

	s := aggregate.Summarize(latest)
	fmt.Fprintf(out, "min %.2f (%s), max %.2f (%s), mean %.2f\n", s.Min, s.Cheapest, s.Max, s.Dearest, s.Mean)
}
