package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"IndexTracker/internal/model"
	"IndexTracker/internal/tracker"
)

// FormatBatchReport formats a batch summary into a Telegram message.
func FormatBatchReport(sum *tracker.Summary) string {
	var b strings.Builder
	ok, skipped, failed := sum.Counts()

	b.WriteString(fmt.Sprintf("📊 <b>Index/ETF tracker</b> | %s\n\n", sum.FinishedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Charts: %d  Skipped: %d  Failed: %d  (%s)\n",
		ok, skipped, failed, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second)))
	b.WriteString(fmt.Sprintf("Window: last %d months\n", sum.WindowMonths))

	for _, r := range sum.Results {
		b.WriteString("\n")
		title := html.EscapeString(r.Title)
		switch {
		case r.Err != nil:
			b.WriteString(fmt.Sprintf("❌ <b>%s</b>: %s\n", title, html.EscapeString(r.Err.Error())))
			continue
		case r.Skipped:
			b.WriteString(fmt.Sprintf("⚠️ <b>%s</b>: no joined data, chart skipped\n", title))
			continue
		}
		st := r.Stats
		b.WriteString(fmt.Sprintf("✅ <b>%s</b> (%s ~ %s, %d days)\n", title,
			st.From.Format(model.DateLayout), st.To.Format(model.DateLayout), st.Rows))
		b.WriteString(fmt.Sprintf("   Index: %.2f (%+.2f%%)\n", st.LastIndex, st.IndexReturn*100))
		b.WriteString(fmt.Sprintf("   ETF: %.3f (%+.2f%%)\n", st.LastETF, st.ETFReturn*100))
		b.WriteString(fmt.Sprintf("   Tracking diff: %+.2f%%  Corr: %.3f\n", st.TrackingDiff*100, st.Correlation))
		if r.Stale() {
			b.WriteString("   (stale: update failed, last stored data used)\n")
		}
	}
	return b.String()
}
