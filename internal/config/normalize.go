package config

import (
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() {
	c.Paths.SaveDir = expandHome(c.Paths.SaveDir)
	c.Paths.LogDir = expandHome(c.Paths.LogDir)

	c.Portal.CASBaseURL = trimBaseURL(c.Portal.CASBaseURL)
	c.Portal.CoursesBaseURL = trimBaseURL(c.Portal.CoursesBaseURL)
	c.Portal.ClassroomBaseURL = trimBaseURL(c.Portal.ClassroomBaseURL)
	c.Portal.MediaBaseURL = trimBaseURL(c.Portal.MediaBaseURL)
	c.Portal.SearchBaseURL = trimBaseURL(c.Portal.SearchBaseURL)
	c.Portal.RecordsBaseURL = trimBaseURL(c.Portal.RecordsBaseURL)

	if c.Download.MaxConcurrent <= 0 {
		c.Download.MaxConcurrent = defaultMaxConcurrent
	}
	if strings.TrimSpace(c.Subtitles.Format) == "" {
		c.Subtitles.Format = defaultSubtitleFormat
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func trimBaseURL(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
