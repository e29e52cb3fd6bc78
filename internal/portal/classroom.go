package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lectern/internal/services"
	"lectern/internal/transport"
)

const (
	slidePageSize       = 100
	slidePageRetries    = 5
	slidePageRetryDelay = 200 * time.Millisecond

	searchPageSize = 16

	classroomDateLayout = "2006-01-02"
)

// classroomCourse is the wire form of a lecture session. The classroom API
// returns identifiers as strings.
type classroomCourse struct {
	ID       stringID `json:"id"`
	Title    string   `json:"title"`
	SubID    stringID `json:"sub_id"`
	SubTitle string   `json:"sub_title"`
	Realname string   `json:"realname"`
}

func (cc classroomCourse) toSubject() Subject {
	return Subject{
		CourseID:     int64(cc.ID),
		CourseName:   cc.Title,
		SubID:        int64(cc.SubID),
		SubName:      cc.SubTitle,
		LecturerName: cc.Realname,
	}
}

// MonthSubjects lists the lecture sessions of a month, given as "2006-01".
func (c *Client) MonthSubjects(ctx context.Context, month string) ([]Subject, error) {
	if err := c.requireLogin("list month subjects"); err != nil {
		return nil, err
	}
	req, err := c.bearerRequest(transport.Get(fmt.Sprintf(
		"%s/courseapi/v2/course-live/get-my-course-month?month=%s",
		c.portal.ClassroomBaseURL, url.QueryEscape(month))))
	if err != nil {
		return nil, err
	}
	var payload struct {
		List []struct {
			Course []classroomCourse `json:"course"`
		} `json:"list"`
	}
	if err := c.fetchJSON(ctx, req, "list month subjects", &payload); err != nil {
		return nil, err
	}
	var subjects []Subject
	for _, day := range payload.List {
		for _, course := range day.Course {
			subjects = append(subjects, course.toSubject())
		}
	}
	return subjects, nil
}

// RangeSubjects lists the lecture sessions between start and end inclusive,
// both given as "2006-01-02". The day endpoint keys its listing by time slot.
func (c *Client) RangeSubjects(ctx context.Context, start, end string) ([]Subject, error) {
	if err := c.requireLogin("list range subjects"); err != nil {
		return nil, err
	}
	startDate, err := time.Parse(classroomDateLayout, start)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "list range subjects", "parse start date", err)
	}
	endDate, err := time.Parse(classroomDateLayout, end)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "list range subjects", "parse end date", err)
	}

	var subjects []Subject
	for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		req, err := c.bearerRequest(transport.Get(fmt.Sprintf(
			"%s/courseapi/v2/course-live/get-my-course-day?day=%s",
			c.portal.ClassroomBaseURL, date.Format(classroomDateLayout))))
		if err != nil {
			return nil, err
		}
		var payload struct {
			List map[string]struct {
				Course []classroomCourse `json:"course"`
			} `json:"list"`
		}
		if err := c.fetchJSON(ctx, req, "list range subjects", &payload); err != nil {
			return nil, err
		}
		for _, slot := range payload.List {
			for _, course := range slot.Course {
				subjects = append(subjects, course.toSubject())
			}
		}
	}
	return subjects, nil
}

// CourseSubjects lists every recorded session of one classroom course.
func (c *Client) CourseSubjects(ctx context.Context, courseID int64) ([]Subject, error) {
	if err := c.requireLogin("list course subjects"); err != nil {
		return nil, err
	}
	user, err := c.classroomUser(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.bearerRequest(transport.Get(fmt.Sprintf(
		"%s/courseapi/v3/multi-search/get-course-detail?course_id=%d&student=%s",
		c.portal.SearchBaseURL, courseID, url.QueryEscape(user.Account))))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Title string `json:"title"`
			// Sessions are grouped year -> month -> week.
			SubList map[string]map[string]map[string][]struct {
				ID           stringID `json:"id"`
				SubTitle     string   `json:"sub_title"`
				LecturerName string   `json:"lecturer_name"`
			} `json:"sub_list"`
		} `json:"data"`
	}
	if err := c.fetchJSON(ctx, req, "list course subjects", &payload); err != nil {
		return nil, err
	}

	var subjects []Subject
	for _, months := range payload.Data.SubList {
		for _, weeks := range months {
			for _, sessions := range weeks {
				for _, sub := range sessions {
					subjects = append(subjects, Subject{
						CourseID:     courseID,
						CourseName:   payload.Data.Title,
						SubID:        int64(sub.ID),
						SubName:      sub.SubTitle,
						LecturerName: sub.LecturerName,
					})
				}
			}
		}
	}
	return subjects, nil
}

// SearchResult is one hit of the classroom course search.
type SearchResult struct {
	ID       stringID `json:"id"`
	Title    string   `json:"title"`
	Realname string   `json:"realname"`
}

// SearchCourses searches the classroom course catalog by course title and
// teacher name, walking all result pages.
func (c *Client) SearchCourses(ctx context.Context, courseName, teacherName string) ([]SearchResult, error) {
	if err := c.requireLogin("search courses"); err != nil {
		return nil, err
	}
	user, err := c.classroomUser(ctx)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	total := -1
	page := 1
	for total < 0 || len(results) < total {
		searchURL := fmt.Sprintf(
			"%s/pptnote/v1/searchlist?tenant_id=%s&user_id=%d&user_name=%s&page=%d&per_page=%d&title=%s&realname=%s&trans=&tenant_code=%s&randomKey=%v",
			c.portal.ClassroomBaseURL,
			c.portal.TenantCode,
			user.ID,
			url.QueryEscape(user.Account),
			page,
			searchPageSize,
			url.QueryEscape(courseName),
			url.QueryEscape(teacherName),
			c.portal.TenantCode,
			c.random())
		req, err := c.bearerRequest(transport.Get(searchURL))
		if err != nil {
			return nil, err
		}
		var payload struct {
			Code  int    `json:"code"`
			Msg   string `json:"msg"`
			Total struct {
				List  []SearchResult `json:"list"`
				Total int            `json:"total"`
			} `json:"total"`
		}
		if err := c.fetchJSON(ctx, req, "search courses", &payload); err != nil {
			return nil, err
		}
		if payload.Code != 0 {
			return nil, services.Wrap(services.ErrTransient, "search courses", payload.Msg, nil)
		}
		results = append(results, payload.Total.List...)
		total = payload.Total.Total
		if len(payload.Total.List) == 0 {
			break
		}
		page++
	}
	return results, nil
}

// SlideImageURLs collects the slide image URLs of one lecture session in
// presentation order. The listing endpoint is flaky about page sizes: every
// page after the first must contain exactly min(pageSize, remaining) entries,
// and a short page is re-fetched up to five times before the whole listing is
// declared incomplete.
func (c *Client) SlideImageURLs(ctx context.Context, courseID, subID int64) ([]string, error) {
	if err := c.requireLogin("slide urls"); err != nil {
		return nil, err
	}
	first, total, err := c.fetchSlidePage(ctx, courseID, subID, 1)
	if err != nil {
		return nil, err
	}
	urls := first

	retries := slidePageRetries
	page := 1
	for len(urls) < total {
		page++
		pageURLs, _, err := c.fetchSlidePage(ctx, courseID, subID, page)
		if err != nil {
			return nil, err
		}
		shouldHave := min(slidePageSize, total-len(urls))
		if len(pageURLs) != shouldHave {
			page--
			retries--
			if retries == 0 {
				return nil, services.Wrap(services.ErrIntegrity, "slide urls",
					fmt.Sprintf("course %d session %d keeps returning short pages, retry later", courseID, subID), nil)
			}
			if err := c.sleep(ctx, slidePageRetryDelay); err != nil {
				return nil, err
			}
			continue
		}
		urls = append(urls, pageURLs...)
	}
	return urls, nil
}

func (c *Client) fetchSlidePage(ctx context.Context, courseID, subID int64, page int) ([]string, int, error) {
	pageURL := fmt.Sprintf(
		"%s/pptnote/v1/schedule/search-ppt?course_id=%d&sub_id=%d&page=%d&per_page=%d",
		c.portal.ClassroomBaseURL, courseID, subID, page, slidePageSize)
	var payload struct {
		List []struct {
			Content string `json:"content"`
		} `json:"list"`
		Total int `json:"total"`
	}
	if err := c.fetchJSON(ctx, transport.Get(pageURL), "slide urls", &payload); err != nil {
		return nil, 0, err
	}

	urls := make([]string, 0, len(payload.List))
	for _, entry := range payload.List {
		// Each list entry wraps another JSON document as a string.
		var content struct {
			PPTImgURL string `json:"pptimgurl"`
		}
		if err := json.Unmarshal([]byte(entry.Content), &content); err != nil {
			return nil, 0, services.Wrap(services.ErrFormat, "slide urls", "parse slide entry", err)
		}
		urls = append(urls, content.PPTImgURL)
	}
	return urls, payload.Total, nil
}

const (
	slideImageRetries    = 5
	slideImageRetryDelay = 100 * time.Millisecond
)

// FetchSlideImage downloads one slide image. The image host occasionally
// serves empty bodies or error pages with a 200 status, so the payload is
// sniffed and bad responses are refetched with doubling delays.
func (c *Client) FetchSlideImage(ctx context.Context, imageURL string) ([]byte, error) {
	delay := slideImageRetryDelay
	var lastErr error
	for attempt := 0; attempt < slideImageRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}
		body, status, err := c.fetchBody(ctx, transport.Get(imageURL))
		if err != nil {
			lastErr = err
			continue
		}
		if status >= http.StatusBadRequest {
			lastErr = fmt.Errorf("status %d", status)
			continue
		}
		if len(body) == 0 || !strings.HasPrefix(http.DetectContentType(body), "image/") {
			lastErr = fmt.Errorf("payload is not an image")
			continue
		}
		return body, nil
	}
	return nil, services.Wrap(services.ErrTransient, "slide image", imageURL, lastErr)
}

// PlaybackURL resolves and signs the lecture recording URL of a session.
func (c *Client) PlaybackURL(ctx context.Context, courseID, subID int64) (string, error) {
	if err := c.requireLogin("playback url"); err != nil {
		return "", err
	}

	infoURL := fmt.Sprintf(
		"%s/courseapi/v3/portal-home-setting/get-sub-info?course_id=%d&sub_id=%d",
		c.portal.ClassroomBaseURL, courseID, subID)
	var payload struct {
		Data struct {
			Content struct {
				SavePlayback struct {
					Contents string `json:"contents"`
				} `json:"save_playback"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.fetchJSON(ctx, transport.Get(infoURL), "playback url", &payload); err != nil {
		return "", err
	}
	raw := payload.Data.Content.SavePlayback.Contents
	if raw == "" {
		return "", services.Wrap(services.ErrNotFound, "playback url", "session has no recording", nil)
	}

	user, err := c.classroomUser(ctx)
	if err != nil {
		return "", err
	}
	signed, err := signPlaybackURL(raw,
		fmt.Sprintf("%d", user.ID),
		fmt.Sprintf("%d", user.TenantID),
		user.Phone,
		c.now().Unix())
	if err != nil {
		return "", services.Wrap(services.ErrFormat, "playback url", "sign url", err)
	}
	return signed, nil
}

// OpenPlayback opens a streaming response for the lecture recording. The
// caller owns the response body.
func (c *Client) OpenPlayback(ctx context.Context, courseID, subID int64) (*http.Response, error) {
	signed, err := c.PlaybackURL(ctx, courseID, subID)
	if err != nil {
		return nil, err
	}
	resp, err := c.sess.Client().Do(ctx, transport.Get(signed))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "playback", "fetch recording", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "playback",
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	return resp, nil
}
