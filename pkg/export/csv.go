// Package export renders task results as CSV.
package export

import (
	"strconv"
	"strings"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/db/models"
)

// Header is the first line of every export
const Header = "channel_id,channel_title,channel_url,video_id,video_title,video_url,subscribers,views"

// ContentType is the MIME type of ToCSV output
const ContentType = "text/csv; charset=utf-8"

// Filename returns the download name for a task's export
func Filename(taskID string) string {
	return "results_" + taskID + ".csv"
}

// ToCSV renders rows in the given order. Every data field is quoted with
// embedded quotes doubled; lines are joined by "\n" with no trailing newline.
// An empty slice yields just the header.
func ToCSV(rows []models.Influencer) string {
	var b strings.Builder
	b.WriteString(Header)

	for _, r := range rows {
		fields := [...]string{
			r.ChannelID,
			r.ChannelTitle,
			r.ChannelURL,
			r.VideoID,
			r.VideoTitle,
			r.VideoURL,
			strconv.FormatInt(r.Subscribers, 10),
			strconv.FormatInt(r.Views, 10),
		}
		b.WriteByte('\n')
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		}
	}

	return b.String()
}
