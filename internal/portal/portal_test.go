package portal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"lectern/internal/config"
	"lectern/internal/portal"
	"lectern/internal/services"
	"lectern/internal/session"
	"lectern/internal/transport"
)

const fixtureToken = "tok1234567890abc"

// testEnv runs a fake identity server plus whatever portal routes a test
// registers, with a logged-in session in front of it.
type testEnv struct {
	mu         sync.Mutex
	mux        *http.ServeMux
	server     *httptest.Server
	loginPosts int
	requests   []string
	delays     []time.Duration

	sess   *session.Manager
	client *portal.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{mux: http.NewServeMux()}

	loginPage := `<html>统一身份认证平台<input type="hidden" name="execution" value="e1" /></html>`
	env.mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		if r.URL.Query().Get("service") == "" {
			env.mu.Lock()
			env.loginPosts++
			env.mu.Unlock()
		}
		fmt.Fprint(w, "ok")
	})
	env.mux.HandleFunc("/cas/v2/getPubKey", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"modulus":"d94b57a3","exponent":"10001"}`)
	})
	env.mux.HandleFunc("/user/courses", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>home</html>")
	})
	env.mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		blob := fmt.Sprintf(`a:2:{i:0;s:6:"_token";i:1;s:%d:%q;}`, len(fixtureToken), fixtureToken)
		http.SetCookie(w, &http.Cookie{Name: "classroom_session", Value: url.QueryEscape(blob), Path: "/"})
		fmt.Fprint(w, "ok")
	})

	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		env.requests = append(env.requests, r.URL.Path)
		env.mu.Unlock()
		env.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) start(t *testing.T) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Portal{
		CASBaseURL:       env.server.URL + "/cas",
		CoursesBaseURL:   env.server.URL,
		ClassroomBaseURL: env.server.URL,
		MediaBaseURL:     env.server.URL,
		SearchBaseURL:    env.server.URL,
		RecordsBaseURL:   env.server.URL,
		TenantCode:       "112",
	}
	noSleep := func(ctx context.Context, d time.Duration) error {
		env.mu.Lock()
		env.delays = append(env.delays, d)
		env.mu.Unlock()
		return nil
	}
	client := transport.New(jar, transport.WithSleeper(noSleep))
	env.sess = session.NewManager(client, cfg, nil)
	if err := env.sess.Login(context.Background(), "3190100000", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	env.client = portal.NewClient(env.sess, cfg,
		portal.WithSleeper(noSleep),
		portal.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
		portal.WithRandom(func() float64 { return 0.5 }))
}

func (env *testEnv) countRequests(path string) int {
	env.mu.Lock()
	defer env.mu.Unlock()
	n := 0
	for _, p := range env.requests {
		if p == path {
			n++
		}
	}
	return n
}

func TestCoursesWalksAllPages(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/api/my-courses", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{"courses":[{"id":%s00,"name":"course-page-%s"}],"pages":3}`, page, page)
	})
	env.start(t)

	courses, err := env.client.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses returned error: %v", err)
	}
	if len(courses) != 3 {
		t.Fatalf("got %d courses, want 3", len(courses))
	}
	for i, want := range []string{"course-page-1", "course-page-2", "course-page-3"} {
		if courses[i].Name != want {
			t.Fatalf("courses[%d].Name = %q, want %q", i, courses[i].Name, want)
		}
	}
	if n := env.countRequests("/api/my-courses"); n != 3 {
		t.Fatalf("listing hit %d times, want 3", n)
	}
}

func TestCoursesRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.sess.Logout()

	_, err := env.client.Courses(context.Background())
	if !errors.Is(err, services.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if n := env.countRequests("/api/my-courses"); n != 0 {
		t.Fatal("logged-out call must not reach the server")
	}
}

func TestSlideImageURLsRequiresLogin(t *testing.T) {
	env := newTestEnv(t)
	env.start(t)
	env.sess.Logout()

	_, err := env.client.SlideImageURLs(context.Background(), 7, 11)
	if !errors.Is(err, services.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if n := env.countRequests("/pptnote/v1/schedule/search-ppt"); n != 0 {
		t.Fatal("logged-out call must not reach the server")
	}
}

func TestHomeworkUploadsFlattensPages(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/api/courses/7/homework-activities", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{"homework_activities":[{"uploads":[{"id":%s1,"reference_id":%s2,"name":"hw%s.pdf","size":10}]},{"uploads":[]}],"pages":2}`,
			page, page, page)
	})
	env.start(t)

	uploads, err := env.client.HomeworkUploads(context.Background(), 7)
	if err != nil {
		t.Fatalf("HomeworkUploads returned error: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("got %d uploads, want 2", len(uploads))
	}
	if uploads[0].Name != "hw1.pdf" || uploads[1].Name != "hw2.pdf" {
		t.Fatalf("uploads out of order: %+v", uploads)
	}
}

func TestMonthSubjectsParsesStringIDs(t *testing.T) {
	env := newTestEnv(t)
	var gotAuth string
	env.mux.HandleFunc("/courseapi/v2/course-live/get-my-course-month", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"list":[{"course":[{"id":"101","title":"OS","sub_id":"5001","sub_title":"Week 1","realname":"Prof. Wang"}]}]}`)
	})
	env.start(t)

	subjects, err := env.client.MonthSubjects(context.Background(), "2026-03")
	if err != nil {
		t.Fatalf("MonthSubjects returned error: %v", err)
	}
	if len(subjects) != 1 {
		t.Fatalf("got %d subjects", len(subjects))
	}
	s := subjects[0]
	if s.CourseID != 101 || s.SubID != 5001 || s.CourseName != "OS" || s.LecturerName != "Prof. Wang" {
		t.Fatalf("subject = %+v", s)
	}
	if gotAuth != "Bearer "+fixtureToken {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func slidePage(urls []string, total int) string {
	type entry struct {
		Content string `json:"content"`
	}
	page := struct {
		Total int     `json:"total"`
		List  []entry `json:"list"`
	}{Total: total, List: []entry{}}
	for _, u := range urls {
		page.List = append(page.List, entry{Content: fmt.Sprintf(`{"pptimgurl":%q}`, u)})
	}
	data, err := json.Marshal(page)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func makeURLs(prefix string, n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://img.test/%s/%d.jpg", prefix, i)
	}
	return urls
}

func TestSlideImageURLsRecoversFromShortPage(t *testing.T) {
	env := newTestEnv(t)
	secondPageHits := 0
	env.mux.HandleFunc("/pptnote/v1/schedule/search-ppt", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, slidePage(makeURLs("p1", 100), 150))
		case "2":
			secondPageHits++
			if secondPageHits < 3 {
				fmt.Fprint(w, slidePage(makeURLs("short", 30), 150))
				return
			}
			fmt.Fprint(w, slidePage(makeURLs("p2", 50), 150))
		}
	})
	env.start(t)

	urls, err := env.client.SlideImageURLs(context.Background(), 101, 5001)
	if err != nil {
		t.Fatalf("SlideImageURLs returned error: %v", err)
	}
	if len(urls) != 150 {
		t.Fatalf("got %d urls, want 150", len(urls))
	}
	if urls[0] != "http://img.test/p1/0.jpg" || urls[149] != "http://img.test/p2/49.jpg" {
		t.Fatalf("urls out of order: first %q last %q", urls[0], urls[149])
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	short := 0
	for _, d := range env.delays {
		if d == 200*time.Millisecond {
			short++
		}
	}
	if short != 2 {
		t.Fatalf("expected 2 short-page waits, saw delays %v", env.delays)
	}
}

func TestSlideImageURLsGivesUpAfterRetries(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/pptnote/v1/schedule/search-ppt", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, slidePage(makeURLs("p1", 100), 150))
			return
		}
		fmt.Fprint(w, slidePage(makeURLs("short", 10), 150))
	})
	env.start(t)

	_, err := env.client.SlideImageURLs(context.Background(), 101, 5001)
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
	// First fetch plus four re-fetches; the fifth short page gives up.
	if n := env.countRequests("/pptnote/v1/schedule/search-ppt"); n != 6 {
		t.Fatalf("slide endpoint hit %d times, want 6", n)
	}
}

func TestScoresReloginsOnNonJSON(t *testing.T) {
	env := newTestEnv(t)
	scoreHits := 0
	env.mux.HandleFunc("/jwglxt/cxdy/xscjcx_cxXscjIndex.html", func(w http.ResponseWriter, r *http.Request) {
		scoreHits++
		if scoreHits == 1 {
			fmt.Fprint(w, "<html>login expired</html>")
			return
		}
		fmt.Fprint(w, `{"items":[{"xkkh":"(2025-2026-1)-CS101","kcmc":"Operating Systems","cj":"92","xf":"4","jd":"4.2"}]}`)
	})
	env.start(t)

	scores, err := env.client.Scores(context.Background())
	if err != nil {
		t.Fatalf("Scores returned error: %v", err)
	}
	if len(scores) != 1 || scores[0].CourseName != "Operating Systems" {
		t.Fatalf("scores = %+v", scores)
	}
	if scores[0].CreditValue() != 4 || scores[0].GradePointValue() != 4.2 {
		t.Fatalf("parsed values wrong: %+v", scores[0])
	}

	env.mu.Lock()
	posts := env.loginPosts
	env.mu.Unlock()
	if posts != 2 {
		t.Fatalf("expected transparent relogin, saw %d credential posts", posts)
	}
}

func TestOpenUploadFallsBackToPreview(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/api/uploads/reference/9/blob", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	env.mux.HandleFunc("/api/uploads/reference/document/9/url", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"url":%q}`, env.server.URL+"/preview/9?name=real%20name.pdf&sig=x")
	})
	env.mux.HandleFunc("/preview/9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pdf-bytes")
	})
	env.start(t)

	resp, name, err := env.client.OpenUpload(context.Background(), 9, "listed.pdf")
	if err != nil {
		t.Fatalf("OpenUpload returned error: %v", err)
	}
	defer resp.Body.Close()
	if name != "real name.pdf" {
		t.Fatalf("name = %q", name)
	}
}

func TestPlaybackURLIsSigned(t *testing.T) {
	env := newTestEnv(t)
	env.mux.HandleFunc("/courseapi/v3/portal-home-setting/get-sub-info", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"content":{"save_playback":{"contents":%q}}}}`, "http://media.test/rec.mp4")
	})
	env.mux.HandleFunc("/userapi/v1/infosimple", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"params":{"id":4242,"tenant_id":112,"account":"3190100000","phone":"13812345678"}}`)
	})
	env.start(t)

	signed, err := env.client.PlaybackURL(context.Background(), 101, 5001)
	if err != nil {
		t.Fatalf("PlaybackURL returned error: %v", err)
	}
	wantPrefix := "http://media.test/rec.mp4?t=4242-1700000000-"
	if len(signed) != len(wantPrefix)+32 || signed[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("signed = %q", signed)
	}
}
