package session_test

import (
	"context"
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
	"lectern/internal/rsahex"
	"lectern/internal/services"
	"lectern/internal/session"
	"lectern/internal/transport"
)

const (
	testModulus   = "b7d1f4c29a8e503d"
	testExponent  = "10001"
	testExecution = "e1s1-execution"
	testToken     = "a1b2c3d4e5f6"
	markerPage    = `<html>统一身份认证平台<form><input type="hidden" name="execution" value="` + testExecution + `" /></form></html>`
)

// fakePortal simulates the identity server, the courses portal, and the
// classroom media gateway on one httptest server.
type fakePortal struct {
	mu          sync.Mutex
	rejectLogin bool
	loginGets   int
	loginPosts  int
	warmups     map[string]int
	lastForm    url.Values

	server *httptest.Server
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	p := &fakePortal{warmups: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/cas/login", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		switch {
		case r.Method == http.MethodGet:
			p.loginGets++
			fmt.Fprint(w, markerPage)
		case r.URL.Query().Get("service") != "":
			p.warmups["records"]++
			fmt.Fprint(w, "ok")
		default:
			p.loginPosts++
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			p.lastForm = r.PostForm
			if p.rejectLogin {
				fmt.Fprint(w, markerPage)
				return
			}
			fmt.Fprint(w, "<html>welcome</html>")
		}
	})
	mux.HandleFunc("/cas/v2/getPubKey", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"modulus":%q,"exponent":%q}`, testModulus, testExponent)
	})
	mux.HandleFunc("/user/courses", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.warmups["courses"]++
		p.mu.Unlock()
		fmt.Fprint(w, "<html>my courses</html>")
	})
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.warmups["media"]++
		p.mu.Unlock()
		blob := fmt.Sprintf(`a:2:{i:0;s:6:"_token";i:1;s:%d:%q;}`, len(testToken), testToken)
		http.SetCookie(w, &http.Cookie{Name: "classroom_session", Value: url.QueryEscape(blob), Path: "/"})
		fmt.Fprint(w, "ok")
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) portalConfig() config.Portal {
	return config.Portal{
		CASBaseURL:       p.server.URL + "/cas",
		CoursesBaseURL:   p.server.URL,
		ClassroomBaseURL: p.server.URL,
		MediaBaseURL:     p.server.URL,
		RecordsBaseURL:   p.server.URL,
		ProbeURL:         p.server.URL + "/",
		TenantCode:       "112",
	}
}

func (p *fakePortal) setReject(reject bool) {
	p.mu.Lock()
	p.rejectLogin = reject
	p.mu.Unlock()
}

func (p *fakePortal) counts() (gets, posts int, warmups map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := map[string]int{}
	for k, v := range p.warmups {
		copied[k] = v
	}
	return p.loginGets, p.loginPosts, copied
}

func newManager(t *testing.T, p *fakePortal) *session.Manager {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := transport.New(jar, transport.WithSleeper(
		func(ctx context.Context, d time.Duration) error { return nil },
	))
	return session.NewManager(client, p.portalConfig(), nil)
}

func TestLoginEstablishesSession(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if err := mgr.Login(context.Background(), "3190100000", "hunter2"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !mgr.IsLoggedIn() {
		t.Fatal("expected logged-in session")
	}
	if mgr.Username() != "3190100000" {
		t.Fatalf("username = %q", mgr.Username())
	}

	_, _, warmups := portal.counts()
	for _, service := range []string{"courses", "media", "records"} {
		if warmups[service] != 1 {
			t.Fatalf("warmup %s hit %d times, want 1", service, warmups[service])
		}
	}

	wantPwd, err := rsahex.Encrypt("hunter2", testModulus, testExponent)
	if err != nil {
		t.Fatal(err)
	}
	portal.mu.Lock()
	form := portal.lastForm
	portal.mu.Unlock()
	if form.Get("password") != wantPwd {
		t.Fatal("submitted password is not the encrypted form")
	}
	if form.Get("execution") != testExecution {
		t.Fatalf("execution = %q", form.Get("execution"))
	}
	if form.Get("_eventId") != "submit" {
		t.Fatalf("_eventId = %q", form.Get("_eventId"))
	}

	token, err := mgr.BearerToken()
	if err != nil {
		t.Fatalf("BearerToken returned error: %v", err)
	}
	if token != testToken {
		t.Fatalf("token = %q, want %q", token, testToken)
	}
}

func TestLoginIsIdempotent(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if err := mgr.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}

	gets, posts, _ := portal.counts()
	if gets != 1 || posts != 1 {
		t.Fatalf("second login must not touch the server, saw %d GETs %d POSTs", gets, posts)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	portal := newFakePortal(t)
	portal.setReject(true)
	mgr := newManager(t, portal)

	err := mgr.Login(context.Background(), "u", "wrong")
	if !errors.Is(err, services.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if mgr.IsLoggedIn() {
		t.Fatal("rejected login must not establish a session")
	}
}

func TestReloginRestoresStateOnFailure(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if err := mgr.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}
	portal.setReject(true)

	err := mgr.Relogin(context.Background())
	if !errors.Is(err, services.ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if !mgr.IsLoggedIn() {
		t.Fatal("failed relogin must keep the previous session")
	}
	if mgr.Username() != "u" {
		t.Fatalf("username lost: %q", mgr.Username())
	}
	if _, err := mgr.BearerToken(); err != nil {
		t.Fatalf("previous jar lost: %v", err)
	}
}

func TestReloginRequiresLogin(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if err := mgr.Relogin(context.Background()); !errors.Is(err, services.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if err := mgr.Login(context.Background(), "u", "p"); err != nil {
		t.Fatal(err)
	}
	mgr.Logout()

	if mgr.IsLoggedIn() {
		t.Fatal("logout must revoke the session")
	}
	if _, err := mgr.BearerToken(); !errors.Is(err, services.ErrNotLoggedIn) {
		t.Fatalf("expected missing token after logout, got %v", err)
	}
}

func TestBearerTokenWithoutSession(t *testing.T) {
	portal := newFakePortal(t)
	mgr := newManager(t, portal)

	if _, err := mgr.BearerToken(); !errors.Is(err, services.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestExtractExecutionToken(t *testing.T) {
	token, err := session.ExtractExecutionToken(markerPage)
	if err != nil {
		t.Fatalf("ExtractExecutionToken returned error: %v", err)
	}
	if token != testExecution {
		t.Fatalf("token = %q", token)
	}

	if _, err := session.ExtractExecutionToken("<html>no form</html>"); !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestExtractBearerToken(t *testing.T) {
	blob := `a:2:{i:0;s:6:"_token";i:1;s:12:"a1b2c3d4e5f6";}`
	token, ok := session.ExtractBearerToken(blob)
	if !ok || token != "a1b2c3d4e5f6" {
		t.Fatalf("token = %q ok = %v", token, ok)
	}

	if _, ok := session.ExtractBearerToken(`a:1:{i:0;s:4:"misc";}`); ok {
		t.Fatal("expected no token in blob without _token key")
	}
}
