// Package ics exports pending course deadlines as an iCalendar file.
package ics

import (
	"fmt"
	"strings"

	"lectern/internal/fileutil"
	"lectern/internal/portal"
)

const prodID = "-//Learning in ZJU//EN"

// Calendar renders the todo list as a VCALENDAR document. Entries without a
// deadline are skipped. Each event links back to the activity page of the
// course portal at baseURL.
func Calendar(todos []portal.Todo, baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:" + prodID + "\r\n")

	for _, todo := range todos {
		if strings.TrimSpace(todo.EndTime) == "" {
			continue
		}
		// "2026-03-01T23:59:00Z" -> "20260301T235900Z"
		stamp := strings.NewReplacer("-", "", ":", "").Replace(todo.EndTime)
		url := fmt.Sprintf("%s/course/%d/learning-activity#/%d?view=scores",
			baseURL, todo.CourseID, todo.ID)

		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "DTSTART:%s\r\n", stamp)
		fmt.Fprintf(&b, "DTEND:%s\r\n", stamp)
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(todo.Title))
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeText(todo.CourseName))
		fmt.Fprintf(&b, "URL:%s\r\n", url)
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// Write renders the calendar and stores it at path.
func Write(todos []portal.Todo, baseURL, path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(Calendar(todos, baseURL)), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

// escapeText escapes the characters RFC 5545 reserves in text values.
func escapeText(s string) string {
	return strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	).Replace(s)
}
