package portal

import (
	"context"
	"fmt"
	"net/url"

	"lectern/internal/services"
	"lectern/internal/transport"
)

// SubtitleSegment is one machine-transcribed caption of a lecture recording.
// Times are milliseconds from the start of the recording.
type SubtitleSegment struct {
	BeginMS int64  `json:"begin_time"`
	EndMS   int64  `json:"end_time"`
	Content string `json:"content"`
}

// SubtitleSegments fetches the caption track of a lecture session in the
// given language. Sessions without a track for the language yield ErrNotFound.
func (c *Client) SubtitleSegments(ctx context.Context, courseID, subID int64, language string) ([]SubtitleSegment, error) {
	if err := c.requireLogin("subtitles"); err != nil {
		return nil, err
	}
	trackURL := fmt.Sprintf(
		"%s/courseapi/v3/portal-home-setting/get-sub-subtitle?course_id=%d&sub_id=%d&language=%s",
		c.portal.ClassroomBaseURL, courseID, subID, url.QueryEscape(language))
	var payload struct {
		Code int               `json:"code"`
		Msg  string            `json:"msg"`
		List []SubtitleSegment `json:"list"`
	}
	if err := c.fetchJSON(ctx, transport.Get(trackURL), "subtitles", &payload); err != nil {
		return nil, err
	}
	if payload.Code != 0 {
		return nil, services.Wrap(services.ErrTransient, "subtitles", payload.Msg, nil)
	}
	if len(payload.List) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "subtitles",
			fmt.Sprintf("session %d has no %s caption track", subID, language), nil)
	}
	return payload.List, nil
}
