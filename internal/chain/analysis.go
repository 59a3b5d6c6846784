package chain

import "time"

// Report summarises a chain.
type Report struct {
	Count        int
	Distribution map[string]int
	Intervals    int
	TotalGap     time.Duration
	AverageGap   time.Duration

	// ClockRegressions counts consecutive pairs whose later record carries an
	// earlier timestamp. Such gaps contribute zero to TotalGap.
	ClockRegressions int
}

// Analyze counts records and payload occurrences and measures the time
// between consecutive records.
func (c *Chain) Analyze() Report {
	rep := Report{Distribution: make(map[string]int)}

	var prev *Record
	for i := range c.records {
		curr := &c.records[i]
		rep.Count++
		rep.Distribution[curr.Payload]++

		if prev != nil {
			gap := curr.CreatedAt.Sub(prev.CreatedAt)
			if gap < 0 {
				rep.ClockRegressions++
				gap = 0
			}
			rep.TotalGap += gap
			rep.Intervals++
		}
		prev = curr
	}

	if rep.Intervals > 0 {
		rep.AverageGap = rep.TotalGap / time.Duration(rep.Intervals)
	}
	return rep
}
