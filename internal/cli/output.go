package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/engine"
	"github.com/KevinWangQQ/youtube-influencer-search/pkg/results"
)

var (
	headingColor = color.New(color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusColor(status models.TaskStatus) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen)
	case models.StatusFailed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

func printTaskView(w io.Writer, view *engine.TaskView) {
	fmt.Fprintf(w, "%s  %s  %3d%%  %s\n",
		view.ID,
		statusColor(view.Status).Sprintf("%-9s", view.Status),
		view.Progress,
		view.ProductName,
	)
	if view.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("error:"), view.Error)
	}
}

func printKeywords(w io.Writer, queries []string) {
	for i, q := range queries {
		fmt.Fprintf(w, " %d. %s\n", i+1, q)
	}
}

func printHistory(w io.Writer, views []engine.TaskView) {
	if len(views) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("No tasks yet"))
		return
	}
	for i := range views {
		fmt.Fprintf(w, "%s  ", dimColor.Sprint(views[i].CreatedAt.Local().Format(time.DateTime)))
		printTaskView(w, &views[i])
	}
}

func printReport(w io.Writer, report *results.Report) {
	s := report.Summary
	headingColor.Fprintf(w, "Results for %s\n", report.TaskID)
	fmt.Fprintf(w, " %-16s %d\n", "Influencers:", s.Count)
	fmt.Fprintf(w, " %-16s %d\n", "Channels:", s.UniqueChannels)
	fmt.Fprintf(w, " %-16s %s\n", "Max subscribers:", formatCount(s.MaxSubscribers))
	fmt.Fprintf(w, " %-16s %s\n", "Max views:", formatCount(s.MaxViews))
	fmt.Fprintf(w, " %-16s %s\n", "Avg subscribers:", formatCount(s.AvgSubscribers))
	fmt.Fprintf(w, " %-16s %s\n", "Avg views:", formatCount(s.AvgViews))

	if len(report.Influencers) == 0 {
		return
	}
	fmt.Fprintln(w)
	headingColor.Fprintf(w, " %-30s %12s %12s  %s\n", "CHANNEL", "SUBSCRIBERS", "VIEWS", "VIDEO")
	for _, r := range report.Influencers {
		fmt.Fprintf(w, " %-30s %12s %12s  %s\n",
			truncate(r.ChannelTitle, 30),
			formatCount(r.Subscribers),
			formatCount(r.Views),
			r.VideoURL,
		)
	}
}

// formatCount renders n with thousands separators
func formatCount(n int64) string {
	raw := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
