package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.SaveDir) == "" {
		return errors.New("paths.save_dir must be set")
	}
	if err := c.validatePortal(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateSubtitles()
}

func (c *Config) validatePortal() error {
	bases := map[string]string{
		"portal.cas_base_url":       c.Portal.CASBaseURL,
		"portal.courses_base_url":   c.Portal.CoursesBaseURL,
		"portal.classroom_base_url": c.Portal.ClassroomBaseURL,
		"portal.media_base_url":     c.Portal.MediaBaseURL,
		"portal.search_base_url":    c.Portal.SearchBaseURL,
		"portal.records_base_url":   c.Portal.RecordsBaseURL,
		"portal.probe_url":          c.Portal.ProbeURL,
	}
	for key, value := range bases {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s is not a valid URL: %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.MaxConcurrent < 1 {
		return errors.New("download.max_concurrent must be at least 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.LLM.Enabled {
		return nil
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("llm.api_key must be set when llm.enabled is true")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model must be set when llm.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}

func (c *Config) validateSubtitles() error {
	switch strings.ToLower(strings.TrimSpace(c.Subtitles.Format)) {
	case "srt", "txt":
		return nil
	default:
		return fmt.Errorf("subtitles.format must be srt or txt, got %q", c.Subtitles.Format)
	}
}
