package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/portal"
	"lectern/internal/services"
	"lectern/internal/session"
	"lectern/internal/transport"
)

// appContext lazily builds the shared dependencies of the CLI commands.
type appContext struct {
	configFlag   *string
	usernameFlag *string
	passwordFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	logger  *slog.Logger
	logErr  error

	sessOnce sync.Once
	sess     *session.Manager
	client   *portal.Client
	sessErr  error
}

func newAppContext(configFlag, usernameFlag, passwordFlag *string) *appContext {
	return &appContext{
		configFlag:   configFlag,
		usernameFlag: usernameFlag,
		passwordFlag: passwordFlag,
	}
}

func (a *appContext) ensureConfig() (*config.Config, error) {
	a.configOnce.Do(func() {
		var path string
		if a.configFlag != nil {
			path = strings.TrimSpace(*a.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			a.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			a.configErr = err
			return
		}
		a.config = cfg
	})
	return a.config, a.configErr
}

func (a *appContext) ensureLogger() (*slog.Logger, error) {
	a.logOnce.Do(func() {
		cfg, err := a.ensureConfig()
		if err != nil {
			a.logErr = err
			return
		}
		a.logger, a.logErr = logging.NewFromConfig(cfg)
	})
	return a.logger, a.logErr
}

// buildSession constructs the transport and session manager without logging
// in yet.
func (a *appContext) buildSession() (*session.Manager, *portal.Client, error) {
	a.sessOnce.Do(func() {
		cfg, err := a.ensureConfig()
		if err != nil {
			a.sessErr = err
			return
		}
		logger, err := a.ensureLogger()
		if err != nil {
			a.sessErr = err
			return
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			a.sessErr = fmt.Errorf("create cookie jar: %w", err)
			return
		}
		client := transport.New(jar,
			transport.WithUserAgent(cfg.Portal.UserAgent),
			transport.WithLogger(logger))
		a.sess = session.NewManager(client, cfg.Portal, logger)
		a.client = portal.NewClient(a.sess, cfg.Portal, portal.WithLogger(logger))
	})
	return a.sess, a.client, a.sessErr
}

// portalClient probes connectivity, logs in, and returns the ready client.
func (a *appContext) portalClient(ctx context.Context) (*portal.Client, error) {
	sess, client, err := a.buildSession()
	if err != nil {
		return nil, err
	}
	if sess.IsLoggedIn() {
		return client, nil
	}
	cfg, _ := a.ensureConfig()

	if cfg.Portal.ProbeURL != "" {
		if _, err := sess.Client().Probe(ctx, cfg.Portal.ProbeURL); err != nil {
			return nil, err
		}
	}

	username, password, err := a.credentials()
	if err != nil {
		return nil, err
	}
	if err := sess.Login(ctx, username, password); err != nil {
		if errors.Is(err, services.ErrBadCredentials) {
			return nil, fmt.Errorf("login rejected: check username and password")
		}
		return nil, err
	}
	return client, nil
}

// credentials resolves the account from flags, environment, or an
// interactive prompt. The password is never echoed or logged.
func (a *appContext) credentials() (string, string, error) {
	username := strings.TrimSpace(*a.usernameFlag)
	if username == "" {
		username = strings.TrimSpace(os.Getenv("LECTERN_USERNAME"))
	}
	password := *a.passwordFlag
	if password == "" {
		password = os.Getenv("LECTERN_PASSWORD")
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	if username == "" {
		if !interactive {
			return "", "", errors.New("username required: pass --username or set LECTERN_USERNAME")
		}
		fmt.Fprint(os.Stderr, "Username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		if !interactive {
			return "", "", errors.New("password required: pass --password or set LECTERN_PASSWORD")
		}
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if username == "" || password == "" {
		return "", "", errors.New("username and password required")
	}
	return username, password, nil
}
