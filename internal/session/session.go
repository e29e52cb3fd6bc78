// Package session manages the authenticated portal session: the CAS login
// handshake, cookie lifetime, and the bearer token used by the classroom
// media service.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/rsahex"
	"lectern/internal/services"
	"lectern/internal/transport"
)

// loginPageMarker appears only on the identity server's login form. Its
// presence after submitting credentials means the login was rejected; its
// absence on the initial GET means the session is in an odd state and the
// cookie jar should be reset.
const loginPageMarker = "统一身份认证平台"

// Manager owns the session state. All methods are safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	client *transport.Client
	portal config.Portal
	logger *slog.Logger

	loggedIn bool
	username string
	password string
}

// NewManager builds a session manager on top of the dual-path client.
func NewManager(client *transport.Client, portal config.Portal, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{client: client, portal: portal, logger: logger}
}

// Client exposes the underlying transport for the query and download layers.
func (m *Manager) Client() *transport.Client {
	return m.client
}

// IsLoggedIn reports whether a login has completed and not been revoked.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loggedIn
}

// Username returns the account the session was established for.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Login performs the SSO handshake. It is idempotent: calling it on an
// already established session returns immediately. The password is held in
// memory for transparent relogin and is never written to logs.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginLocked(ctx, username, password)
}

func (m *Manager) loginLocked(ctx context.Context, username, password string) error {
	if m.loggedIn {
		return nil
	}

	loginURL := m.portal.CASBaseURL + "/login"
	page, err := m.fetchText(ctx, transport.Get(loginURL))
	if err != nil {
		return services.Wrap(services.ErrAuth, "login", "fetch login page", err)
	}
	if !strings.Contains(page, loginPageMarker) {
		// A half-authenticated jar can redirect past the form. Start over
		// with fresh cookies and try once more.
		m.resetLocked()
		page, err = m.fetchText(ctx, transport.Get(loginURL))
		if err != nil {
			return services.Wrap(services.ErrAuth, "login", "fetch login page", err)
		}
		if !strings.Contains(page, loginPageMarker) {
			return services.Wrap(services.ErrAuth, "login", "login page not recognized", nil)
		}
	}

	execution, err := ExtractExecutionToken(page)
	if err != nil {
		return err
	}

	modulus, exponent, err := m.fetchPubKey(ctx)
	if err != nil {
		return err
	}
	encrypted, err := rsahex.Encrypt(password, modulus, exponent)
	if err != nil {
		return services.Wrap(services.ErrAuth, "login", "encrypt password", err)
	}

	form := url.Values{
		"username":  {username},
		"password":  {encrypted},
		"execution": {execution},
		"_eventId":  {"submit"},
		"authcode":  {""},
	}
	result, err := m.fetchText(ctx, transport.PostForm(loginURL, form))
	if err != nil {
		return services.Wrap(services.ErrAuth, "login", "submit credentials", err)
	}
	if strings.Contains(result, loginPageMarker) {
		return services.Wrap(services.ErrBadCredentials, "login", "", nil)
	}

	if err := m.warmUp(ctx); err != nil {
		return err
	}

	m.loggedIn = true
	m.username = username
	m.password = password
	m.logger.Info("logged in", "user", username)
	return nil
}

// warmUp propagates the CAS ticket to the services the client talks to:
// the courses portal, the classroom media service, and the academic records
// system.
func (m *Manager) warmUp(ctx context.Context) error {
	mediaAuth := fmt.Sprintf("%s/index.php?r=auth/login&auType=cmc&tenant_code=%s&forward=%s",
		m.portal.MediaBaseURL,
		m.portal.TenantCode,
		url.QueryEscape(m.portal.ClassroomBaseURL+"/"))
	recordsTicket := fmt.Sprintf("%s/login?service=%s",
		m.portal.CASBaseURL,
		m.portal.RecordsBaseURL+"/jwglxt/xtgl/login_ssologin.html")

	warmups := []*transport.Request{
		transport.Get(m.portal.CoursesBaseURL + "/user/courses"),
		transport.Get(mediaAuth),
		transport.PostForm(recordsTicket, nil),
	}
	for _, req := range warmups {
		if err := m.discard(ctx, req); err != nil {
			return services.Wrap(services.ErrAuth, "login", "warm up session", err)
		}
	}
	return nil
}

// Logout discards the session: fresh cookie jar, no retained credentials.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Manager) resetLocked() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New with nil options cannot fail.
		panic(err)
	}
	m.client.SetJar(jar)
	m.loggedIn = false
	m.username = ""
	m.password = ""
}

// Relogin rebuilds the session with the stored credentials. On failure the
// previous jar and credentials are restored so the caller can keep using
// whatever session state remains.
func (m *Manager) Relogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loggedIn {
		return services.Wrap(services.ErrNotLoggedIn, "relogin", "", nil)
	}

	username, password := m.username, m.password
	previousJar := m.client.Jar()
	m.resetLocked()

	if err := m.loginLocked(ctx, username, password); err != nil {
		m.client.SetJar(previousJar)
		m.username = username
		m.password = password
		m.loggedIn = true
		return err
	}
	return nil
}

// KeepAlive touches the courses portal and triggers a relogin if the session
// has been bounced back to the login form.
func (m *Manager) KeepAlive(ctx context.Context) error {
	if !m.IsLoggedIn() {
		return services.Wrap(services.ErrNotLoggedIn, "keepalive", "", nil)
	}
	page, err := m.fetchText(ctx, transport.Get(m.portal.CoursesBaseURL+"/user/courses"))
	if err != nil {
		return services.Wrap(services.ErrTransient, "keepalive", "probe session", err)
	}
	if strings.Contains(page, loginPageMarker) {
		m.logger.Info("session expired, logging in again")
		return m.Relogin(ctx)
	}
	return nil
}

// BearerToken extracts the classroom media token from the session cookies.
// The classroom service keeps it inside a percent-encoded PHP-serialized
// cookie value set during warm-up.
func (m *Manager) BearerToken() (string, error) {
	classroomURL, err := url.Parse(m.portal.ClassroomBaseURL)
	if err != nil {
		return "", services.Wrap(services.ErrAuth, "bearer token", "parse classroom url", err)
	}
	for _, cookie := range m.client.Jar().Cookies(classroomURL) {
		decoded, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			continue
		}
		if token, ok := ExtractBearerToken(decoded); ok {
			return token, nil
		}
	}
	return "", services.Wrap(services.ErrNotLoggedIn, "bearer token", "classroom token cookie missing", nil)
}

func (m *Manager) fetchPubKey(ctx context.Context) (modulus, exponent string, err error) {
	body, err := m.fetchText(ctx, transport.Get(m.portal.CASBaseURL+"/v2/getPubKey"))
	if err != nil {
		return "", "", services.Wrap(services.ErrAuth, "login", "fetch public key", err)
	}
	var key struct {
		Modulus  string `json:"modulus"`
		Exponent string `json:"exponent"`
	}
	if err := json.Unmarshal([]byte(body), &key); err != nil {
		return "", "", services.Wrap(services.ErrAuth, "login", "parse public key", err)
	}
	if key.Modulus == "" || key.Exponent == "" {
		return "", "", services.Wrap(services.ErrAuth, "login", "public key incomplete", nil)
	}
	return key.Modulus, key.Exponent, nil
}

func (m *Manager) fetchText(ctx context.Context, req *transport.Request) (string, error) {
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Manager) discard(ctx context.Context, req *transport.Request) error {
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
