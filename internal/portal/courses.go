package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"lectern/internal/services"
	"lectern/internal/transport"
)

const (
	coursesPageSize  = 100
	homeworkPageSize = 20

	// The portal requires the filter conditions as a JSON blob in the query
	// string. This selects ongoing and not-yet-started courses, newest first.
	coursesConditions = `{"status":["ongoing","notStarted"],"keyword":"","classify_type":"recently_started","display_studio_list":false}`
	coursesFields     = "id,name,course_code,academic_year_id,semester_id,instructors(id,name)"
)

// Courses walks the full my-courses listing page by page, preserving the
// portal's ordering.
func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	if err := c.requireLogin("list courses"); err != nil {
		return nil, err
	}

	var courses []Course
	page := 1
	for {
		listURL := fmt.Sprintf("%s/api/my-courses?conditions=%s&fields=%s&page=%d&page_size=%d",
			c.portal.CoursesBaseURL,
			url.QueryEscape(coursesConditions),
			coursesFields,
			page,
			coursesPageSize)
		var payload struct {
			Courses []Course `json:"courses"`
			Pages   int      `json:"pages"`
		}
		if err := c.fetchJSON(ctx, transport.Get(listURL), "list courses", &payload); err != nil {
			return nil, err
		}
		courses = append(courses, payload.Courses...)
		if page >= payload.Pages {
			return courses, nil
		}
		page++
	}
}

// ActivityUploads flattens the attachments of every activity of a course.
func (c *Client) ActivityUploads(ctx context.Context, courseID int64) ([]Upload, error) {
	if err := c.requireLogin("list activity uploads"); err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/api/courses/%d/activities", c.portal.CoursesBaseURL, courseID)
	var payload struct {
		Activities []struct {
			Uploads []Upload `json:"uploads"`
		} `json:"activities"`
	}
	if err := c.fetchJSON(ctx, transport.Get(listURL), "list activity uploads", &payload); err != nil {
		return nil, err
	}
	var uploads []Upload
	for _, activity := range payload.Activities {
		uploads = append(uploads, activity.Uploads...)
	}
	return uploads, nil
}

// HomeworkUploads flattens the attachments of every homework activity of a
// course, walking all pages.
func (c *Client) HomeworkUploads(ctx context.Context, courseID int64) ([]Upload, error) {
	if err := c.requireLogin("list homework uploads"); err != nil {
		return nil, err
	}

	conditions := url.QueryEscape(`{"itemsSortBy":{"predicate":"module","reverse":false}}`)
	var uploads []Upload
	page := 1
	for {
		listURL := fmt.Sprintf("%s/api/courses/%d/homework-activities?conditions=%s&page=%d&page_size=%d&reloadPage=false",
			c.portal.CoursesBaseURL, courseID, conditions, page, homeworkPageSize)
		var payload struct {
			Homeworks []struct {
				Uploads []Upload `json:"uploads"`
			} `json:"homework_activities"`
			Pages int `json:"pages"`
		}
		if err := c.fetchJSON(ctx, transport.Get(listURL), "list homework uploads", &payload); err != nil {
			return nil, err
		}
		for _, homework := range payload.Homeworks {
			uploads = append(uploads, homework.Uploads...)
		}
		if page >= payload.Pages {
			return uploads, nil
		}
		page++
	}
}

// AcademicYears lists the academic years the account has courses in.
func (c *Client) AcademicYears(ctx context.Context) ([]AcademicYear, error) {
	if err := c.requireLogin("list academic years"); err != nil {
		return nil, err
	}
	var payload struct {
		AcademicYears []AcademicYear `json:"academic_years"`
	}
	listURL := c.portal.CoursesBaseURL + "/api/my-academic-years?fields=id,name,sort,is_active"
	if err := c.fetchJSON(ctx, transport.Get(listURL), "list academic years", &payload); err != nil {
		return nil, err
	}
	return payload.AcademicYears, nil
}

// Semesters lists the semesters the account has courses in.
func (c *Client) Semesters(ctx context.Context) ([]Semester, error) {
	if err := c.requireLogin("list semesters"); err != nil {
		return nil, err
	}
	var payload struct {
		Semesters []Semester `json:"semesters"`
	}
	if err := c.fetchJSON(ctx, transport.Get(c.portal.CoursesBaseURL+"/api/my-semesters?"), "list semesters", &payload); err != nil {
		return nil, err
	}
	return payload.Semesters, nil
}

// Todos lists the pending deadlines shown on the portal home page.
func (c *Client) Todos(ctx context.Context) ([]Todo, error) {
	if err := c.requireLogin("list todos"); err != nil {
		return nil, err
	}
	var payload struct {
		TodoList []Todo `json:"todo_list"`
	}
	listURL := c.portal.CoursesBaseURL + "/api/todos?no-intercept=true"
	if err := c.fetchJSON(ctx, transport.Get(listURL), "list todos", &payload); err != nil {
		return nil, err
	}
	return payload.TodoList, nil
}

// OpenUpload opens a streaming response for an upload blob. Some uploads are
// marked not downloadable; those are fetched through their preview URL
// instead, which may carry the real filename in a name= query parameter. The
// returned name is the (possibly corrected) filename; the caller owns the
// response body.
func (c *Client) OpenUpload(ctx context.Context, referenceID int64, name string) (*http.Response, string, error) {
	if err := c.requireLogin("open upload"); err != nil {
		return nil, "", err
	}

	blobURL := fmt.Sprintf("%s/api/uploads/reference/%d/blob", c.portal.CoursesBaseURL, referenceID)
	resp, err := c.sess.Client().Do(ctx, transport.Get(blobURL))
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "open upload", "fetch blob", err)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, name, nil
	}
	resp.Body.Close()

	previewURL := fmt.Sprintf("%s/api/uploads/reference/document/%d/url?preview=true",
		c.portal.CoursesBaseURL, referenceID)
	var payload struct {
		URL string `json:"url"`
	}
	if err := c.fetchJSON(ctx, transport.Get(previewURL), "open upload", &payload); err != nil {
		return nil, "", err
	}
	if payload.URL == "" {
		return nil, "", services.Wrap(services.ErrNotFound, "open upload", "no preview url", nil)
	}
	if extracted := filenameFromPreviewURL(payload.URL); extracted != "" {
		name = extracted
	}

	resp, err = c.sess.Client().Do(ctx, transport.Get(payload.URL))
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "open upload", "fetch preview", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, "", services.Wrap(services.ErrTransient, "open upload",
			fmt.Sprintf("preview status %d", resp.StatusCode), nil)
	}
	return resp, name, nil
}

// filenameFromPreviewURL extracts the percent-decoded name= parameter, if
// present. The preview URLs are not always well formed, so this scans the raw
// string the way the portal's own frontend does.
func filenameFromPreviewURL(raw string) string {
	idx := strings.Index(raw, "name=")
	if idx < 0 {
		return ""
	}
	value := raw[idx+len("name="):]
	if end := strings.Index(value, "&"); end >= 0 {
		value = value[:end]
	}
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
