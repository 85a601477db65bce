package monitor

import (
	"fmt"
	"io"

	"dipwatch/internal/heightlog"
)

// Report prints the human progress report for one tick.
func Report(w io.Writer, res Result) {
	sum := res.Summary
	fmt.Fprintf(w, "[%s] %s\n", res.At.Format("2006-01-02 15:04:05Z"), sum.Player)

	switch {
	case res.FetchErr != nil:
		fmt.Fprintf(w, "  Fetch failed: %v\n", res.FetchErr)
	case res.Sample.LiveHeight == nil:
		fmt.Fprintln(w, "  Not currently playing")
	default:
		fmt.Fprintf(w, "  Live height: %s\n", heightlog.FloorLabel(*res.Sample.LiveHeight))
	}
	if res.Reading != nil && res.Reading.PB != nil {
		fmt.Fprintf(w, "  Personal best: %s\n", heightlog.FloorLabel(*res.Reading.PB))
	}
	if res.Sample.LiveHeight != nil {
		h := *res.Sample.LiveHeight
		if h >= sum.FloorTarget {
			fmt.Fprintf(w, "  Target %.0fm reached\n", sum.FloorTarget)
		} else {
			fmt.Fprintf(w, "  Target: %.0fm, %.1fm to go (%.1f%%)\n",
				sum.FloorTarget, sum.FloorTarget-h, heightlog.Progress(h, sum.FloorTarget))
		}
	}
	if res.Notified {
		fmt.Fprintln(w, "  Notification sent")
	}
	fmt.Fprintf(w, "  Checks: %d, sessions: %d\n", sum.Checks, sum.Sessions)
}
