package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmerrifield20/chainledger/internal/chain"
	"github.com/jmerrifield20/chainledger/pkg/client"
)

// recordView is the display form shared by local and remote records.
type recordView struct {
	Index      int
	Payload    string
	PrevDigest string
	Digest     string
	CreatedAt  time.Time
}

func viewOf(r chain.Record) recordView {
	return recordView{r.Index, r.Payload, r.PrevDigest, r.Digest, r.CreatedAt}
}

func viewOfRemote(r client.Record) recordView {
	return recordView{r.Index, r.Payload, r.PrevDigest, r.Digest, r.CreatedAt}
}

// reportView is the display form of an analysis.
type reportView struct {
	Records          int
	Distribution     map[string]int
	Intervals        int
	AverageGap       time.Duration
	ClockRegressions int
}

func reportOf(r chain.Report) reportView {
	return reportView{
		Records:          r.Count,
		Distribution:     r.Distribution,
		Intervals:        r.Intervals,
		AverageGap:       r.AverageGap,
		ClockRegressions: r.ClockRegressions,
	}
}

func reportOfRemote(a *client.Analysis) reportView {
	return reportView{
		Records:          a.Records,
		Distribution:     a.Distribution,
		Intervals:        a.Intervals,
		AverageGap:       time.Duration(a.AverageGapMillis * float64(time.Millisecond)),
		ClockRegressions: a.ClockRegressions,
	}
}

func printRecord(out io.Writer, r recordView) {
	fmt.Fprintf(out, "Index: %d\n", r.Index)
	fmt.Fprintf(out, "Payload: %s\n", r.Payload)
	fmt.Fprintf(out, "Previous Digest: %s\n", r.PrevDigest)
	fmt.Fprintf(out, "Digest: %s\n", r.Digest)
	fmt.Fprintf(out, "Created: %s\n\n", r.CreatedAt.Format(time.RFC3339Nano))
}

func printRecordTable(out io.Writer, records []recordView) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tPAYLOAD\tPREV\tDIGEST\tCREATED")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.Index, r.Payload, r.PrevDigest, r.Digest, humanize.Time(r.CreatedAt))
	}
	return w.Flush()
}

func printReport(out io.Writer, r reportView) {
	fmt.Fprintln(out, "Ledger Analysis:")
	fmt.Fprintf(out, "Total records: %s\n", humanize.Comma(int64(r.Records)))
	fmt.Fprintln(out, "Payload distribution:")

	payloads := make([]string, 0, len(r.Distribution))
	for p := range r.Distribution {
		payloads = append(payloads, p)
	}
	sort.Strings(payloads)
	for _, p := range payloads {
		fmt.Fprintf(out, "  Payload: %s - Count: %d\n", p, r.Distribution[p])
	}

	if r.Intervals == 0 {
		fmt.Fprintln(out, "Average time between records: n/a")
	} else {
		fmt.Fprintf(out, "Average time between records: %s\n", r.AverageGap)
	}
	if r.ClockRegressions > 0 {
		fmt.Fprintf(out, "Clock regressions: %d\n", r.ClockRegressions)
	}
}
