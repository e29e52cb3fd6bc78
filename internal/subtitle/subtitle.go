// Package subtitle renders lecture caption tracks as SRT or plain text
// files next to the downloaded recording.
package subtitle

import (
	"fmt"
	"strings"
	"time"

	"lectern/internal/portal"
	"lectern/internal/services"
)

// Format names accepted by Render.
const (
	FormatSRT  = "srt"
	FormatText = "txt"
)

// Cue is one caption with resolved timestamps.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// FromSegments converts portal caption segments into cues, dropping blanks.
func FromSegments(segments []portal.SubtitleSegment) []Cue {
	cues := make([]Cue, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Content)
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			Start: time.Duration(seg.BeginMS) * time.Millisecond,
			End:   time.Duration(seg.EndMS) * time.Millisecond,
			Text:  text,
		})
	}
	return cues
}

// Render produces file content and the matching extension for a cue list.
// SRT output always carries timestamps; text output includes them only when
// withTimestamps is set.
func Render(cues []Cue, format string, withTimestamps bool) (string, string, error) {
	switch format {
	case FormatSRT:
		return FormatAsSRT(cues), ".srt", nil
	case FormatText:
		return FormatAsText(cues, withTimestamps), ".txt", nil
	default:
		return "", "", services.Wrap(services.ErrFormat, "render subtitles",
			fmt.Sprintf("unknown format %q", format), nil)
	}
}

// FormatAsSRT renders cues as a SubRip document.
func FormatAsSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, srtTimestamp(cue.Start), srtTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// FormatAsText renders cues as plain lines, optionally timestamp-prefixed.
func FormatAsText(cues []Cue, withTimestamps bool) string {
	var b strings.Builder
	for _, cue := range cues {
		if withTimestamps {
			fmt.Fprintf(&b, "[%s] ", srtTimestamp(cue.Start))
		}
		b.WriteString(cue.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Transcript joins cue texts into one block, for the summary pass.
func Transcript(cues []Cue) string {
	lines := make([]string, len(cues))
	for i, cue := range cues {
		lines[i] = cue.Text
	}
	return strings.Join(lines, "\n")
}

func srtTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	millis := (d - seconds*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
