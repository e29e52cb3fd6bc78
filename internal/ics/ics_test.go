package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lectern/internal/portal"
)

func sampleTodos() []portal.Todo {
	return []portal.Todo{
		{
			ID:         9001,
			CourseID:   101,
			CourseName: "Operating Systems",
			Title:      "Lab 2 report",
			EndTime:    "2026-03-01T23:59:00Z",
		},
		{
			ID:         9002,
			CourseID:   102,
			CourseName: "Analysis",
			Title:      "No deadline yet",
		},
	}
}

func TestCalendarRendersEvents(t *testing.T) {
	got := Calendar(sampleTodos(), "https://courses.zju.edu.cn")

	wantFragments := []string{
		"BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Learning in ZJU//EN\r\n",
		"DTSTART:20260301T235900Z\r\n",
		"DTEND:20260301T235900Z\r\n",
		"SUMMARY:Lab 2 report\r\n",
		"DESCRIPTION:Operating Systems\r\n",
		"URL:https://courses.zju.edu.cn/course/101/learning-activity#/9001?view=scores\r\n",
		"END:VCALENDAR\r\n",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(got, fragment) {
			t.Fatalf("calendar missing %q:\n%s", fragment, got)
		}
	}
	if strings.Contains(got, "No deadline yet") {
		t.Fatal("todo without end time must be skipped")
	}
	if strings.Count(got, "BEGIN:VEVENT") != 1 {
		t.Fatalf("event count wrong:\n%s", got)
	}
}

func TestCalendarEscapesText(t *testing.T) {
	todos := []portal.Todo{{
		ID:         1,
		CourseID:   2,
		CourseName: "A; B",
		Title:      "Read ch. 1, 2",
		EndTime:    "2026-04-01T12:00:00Z",
	}}
	got := Calendar(todos, "https://courses.zju.edu.cn")
	if !strings.Contains(got, "SUMMARY:Read ch. 1\\, 2\r\n") {
		t.Fatalf("comma not escaped:\n%s", got)
	}
	if !strings.Contains(got, "DESCRIPTION:A\\; B\r\n") {
		t.Fatalf("semicolon not escaped:\n%s", got)
	}
}

func TestWriteStoresFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.ics")
	if err := Write(sampleTodos(), "https://courses.zju.edu.cn", path); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR\r\n") {
		t.Fatalf("file content = %q", data)
	}
}
