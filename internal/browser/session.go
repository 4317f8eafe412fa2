// Package browser drives Instagram through a Chromium instance.
// One Session per account. Instagram rearranges its DOM frequently, so
// every operation tries a chain of selectors; engines see one abstract
// operation per intent and never touch selectors themselves.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gramnerd/internal/accounts"
	"gramnerd/internal/config"
	"gramnerd/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrAuthentication marks a login that failed or was challenged past
// the grace period. The account is skipped, not the run.
var ErrAuthentication = errors.New("authentication failed")

const (
	baseURL = "https://www.instagram.com"

	// loginGrace is how long a headful operator gets to clear a 2FA
	// or checkpoint challenge by hand.
	loginGrace = 45 * time.Second
)

// Session is a logged-in browser context for one account.
type Session struct {
	cfg        config.BrowserConfig
	account    accounts.Account
	sessionDir string

	launch   *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	loggedIn bool
}

// NewSession creates an unstarted session. sessionDir holds the
// persisted cookie state for this account.
func NewSession(cfg config.BrowserConfig, account accounts.Account, sessionDir string) *Session {
	return &Session{cfg: cfg, account: account, sessionDir: sessionDir}
}

// Start launches Chromium and opens a stealth page.
func (s *Session) Start(ctx context.Context) error {
	logging.Browser("Starting browser session for @%s", s.account.Username)

	launch := launcher.New().Headless(s.cfg.Headless)
	if s.cfg.Bin != "" {
		launch = launch.Bin(s.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		// Retry once with the default launcher in case custom flags
		// or the configured binary are the problem.
		fallback := launcher.New().Headless(s.cfg.Headless)
		alt, altErr := fallback.Launch()
		if altErr != nil {
			return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
		}
		controlURL = alt
		launch = fallback
	}
	s.launch = launch

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if s.cfg.SlowMotion() > 0 {
		browser = browser.SlowMotion(s.cfg.SlowMotion())
	}
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	if err := s.loadCookies(); err != nil {
		logging.BrowserWarn("Could not restore session cookies for @%s: %v", s.account.Username, err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return fmt.Errorf("create stealth page: %w", err)
	}
	s.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.GetViewportWidth(),
		Height:            s.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("Failed to set viewport: %v", err)
	}
	if s.cfg.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}).Call(page); err != nil {
			logging.BrowserWarn("Failed to set user agent: %v", err)
		}
	}

	return nil
}

// Login signs the account in, reusing persisted cookies when they are
// still valid. A checkpoint or 2FA prompt gets a grace period for the
// operator to resolve by hand before the login is declared failed.
func (s *Session) Login(ctx context.Context) error {
	if s.page == nil {
		return fmt.Errorf("session not started")
	}
	logging.Browser("Logging in as @%s", s.account.Username)

	pg := s.pg(ctx)
	if err := pg.Timeout(s.cfg.PageLoadTimeout()).Navigate(baseURL + "/"); err != nil {
		return fmt.Errorf("open instagram: %w", err)
	}
	pg.WaitLoad()
	time.Sleep(3 * time.Second)

	// Cookie reuse: already logged in?
	if s.isLoggedIn(ctx) {
		logging.Browser("Session cookies still valid for @%s", s.account.Username)
		s.loggedIn = true
		return s.saveCookies()
	}

	userInput, err := s.firstElement(ctx, 10*time.Second, `input[name="username"]`)
	if err != nil {
		return fmt.Errorf("%w: login form not found: %v", ErrAuthentication, err)
	}
	if err := userInput.Input(s.account.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	passInput, err := s.firstElement(ctx, 5*time.Second, `input[name="password"]`)
	if err != nil {
		return fmt.Errorf("%w: password field not found: %v", ErrAuthentication, err)
	}
	if err := passInput.Input(s.account.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	submit, err := s.firstElement(ctx, 5*time.Second, `button[type="submit"]`)
	if err != nil {
		return fmt.Errorf("%w: submit button not found: %v", ErrAuthentication, err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click login: %w", err)
	}

	time.Sleep(5 * time.Second)

	if s.challenged() {
		logging.BrowserWarn("@%s hit a checkpoint/2FA challenge, waiting %v for manual resolution",
			s.account.Username, loginGrace)
		deadline := time.Now().Add(loginGrace)
		for time.Now().Before(deadline) {
			if s.isLoggedIn(ctx) {
				break
			}
			time.Sleep(2 * time.Second)
		}
	}

	if !s.isLoggedIn(ctx) {
		return fmt.Errorf("%w: @%s", ErrAuthentication, s.account.Username)
	}

	s.loggedIn = true
	logging.Browser("Logged in as @%s", s.account.Username)
	return s.saveCookies()
}

// isLoggedIn checks for the home navigation chrome.
func (s *Session) isLoggedIn(ctx context.Context) bool {
	_, err := s.firstElement(ctx, 5*time.Second,
		`[aria-label="Home"]`, `svg[aria-label="Home"]`, `a[href="/"] svg`)
	return err == nil
}

// challenged reports whether the current URL is a checkpoint flow.
func (s *Session) challenged() bool {
	url := s.CurrentURL()
	return strings.Contains(url, "challenge") || strings.Contains(url, "two_factor") ||
		strings.Contains(url, "checkpoint")
}

// CurrentURL returns the page URL, or "" before Start.
func (s *Session) CurrentURL() string {
	if s.page == nil {
		return ""
	}
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close shuts the browser down and releases the launched process.
func (s *Session) Close() error {
	if s.loggedIn {
		if err := s.saveCookies(); err != nil {
			logging.BrowserWarn("Could not persist cookies for @%s: %v", s.account.Username, err)
		}
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launch != nil {
		s.launch.Cleanup()
		s.launch = nil
	}
	s.page = nil
	s.loggedIn = false
	return err
}

// pg binds the page to the caller's context.
func (s *Session) pg(ctx context.Context) *rod.Page {
	return s.page.Context(ctx)
}

// firstElement tries each selector in order, returning the first match
// within the per-selector timeout.
func (s *Session) firstElement(ctx context.Context, timeout time.Duration, selectors ...string) (*rod.Element, error) {
	per := timeout / time.Duration(len(selectors))
	if per < time.Second {
		per = time.Second
	}
	var lastErr error
	for _, sel := range selectors {
		el, err := s.pg(ctx).Timeout(per).Element(sel)
		if err == nil {
			logging.BrowserDebug("Selector hit: %s", sel)
			return el, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no selector matched %v: %w", selectors, lastErr)
}

// cookiesPath is the persisted session state file for this account.
func (s *Session) cookiesPath() string {
	return filepath.Join(s.sessionDir, "cookies.json")
}

func (s *Session) saveCookies() error {
	cookies, err := s.browser.GetCookies()
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
			Expires:  c.Expires,
		})
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.MkdirAll(s.sessionDir, 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.cookiesPath(), data, 0600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	logging.BrowserDebug("Persisted %d cookies for @%s", len(params), s.account.Username)
	return nil
}

func (s *Session) loadCookies() error {
	data, err := os.ReadFile(s.cookiesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var params []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &params); err != nil {
		return fmt.Errorf("parse cookies: %w", err)
	}
	if len(params) == 0 {
		return nil
	}
	if err := s.browser.SetCookies(params); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	logging.BrowserDebug("Restored %d cookies for @%s", len(params), s.account.Username)
	return nil
}
