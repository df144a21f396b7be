// Package browser produces controllable browser handles for provider
// adapters that scrape institutions without an API. The handle is a narrow,
// exclusively-owned capability: only the Manager creates sessions and only
// the browser adapter consumes them.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Mode selects how the browser is provisioned. It is deployment
// configuration; callers never choose a mode per request.
type Mode string

const (
	// ModeLocal runs a locally bundled browser, always visible. Used for
	// interactive debugging and manual OTP entry on a developer machine.
	ModeLocal Mode = "local"
	// ModeRemoteCloud connects over the remote-debugging protocol to a
	// managed browser. The session exposes a live URL the end user can open
	// to type a one-time code into the real page while automation watches.
	ModeRemoteCloud Mode = "remotecloud"
	// ModeContainerized runs a fixed-path headless browser for unattended
	// server deployment. No human interaction is possible.
	ModeContainerized Mode = "containerized"
)

const (
	// attendedTimeout applies whenever a human may need to act.
	attendedTimeout = 10 * time.Minute
	// unattendedTimeout applies to fully headless operation.
	unattendedTimeout = 2 * time.Minute
)

// ErrSessionInUse is returned when a connection's session is already owned
// by another in-flight sync.
var ErrSessionInUse = fmt.Errorf("browser session already in use for this connection")

// Config holds session manager configuration.
type Config struct {
	Mode Mode
	// RemoteURL is the remote-debugging websocket address for remotecloud.
	RemoteURL string
	// LiveURLTemplate formats the human-viewable session URL; %s receives
	// the devtools target id.
	LiveURLTemplate string
	// ExecPath is the fixed browser binary path for containerized mode.
	ExecPath string
}

// Manager acquires and releases browser sessions. A session is exclusively
// owned by the adapter invocation that acquired it for the lifetime of one
// account sync.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	inUse  map[string]bool
}

// NewManager creates a session manager for the configured mode.
func NewManager(cfg Config) *Manager {
	if cfg.LiveURLTemplate == "" {
		cfg.LiveURLTemplate = "https://browsers.internal/devtools/inspector.html?targetId=%s"
	}
	return &Manager{cfg: cfg, inUse: make(map[string]bool)}
}

// Mode returns the configured provisioning mode.
func (m *Manager) Mode() Mode { return m.cfg.Mode }

// Session is a controllable browser handle. It must be released on every
// exit path; Release is idempotent.
type Session struct {
	manager      *Manager
	connectionID string
	mode         Mode
	timeout      time.Duration
	liveURL      string

	taskCtx     context.Context
	cancelTask  context.CancelFunc
	cancelAlloc context.CancelFunc
	releaseOnce sync.Once
}

// Acquire provisions a browser handle for one connection. It refuses a
// second concurrent acquire for the same connection so two flows never drive
// one institution login at once.
func (m *Manager) Acquire(ctx context.Context, connectionID string) (*Session, error) {
	if err := m.checkout(connectionID); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc, err := m.newAllocator(ctx)
	if err != nil {
		m.checkin(connectionID)
		return nil, err
	}

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	// Establish the browser connection up front so failures surface here
	// instead of mid-flow.
	if err := chromedp.Run(taskCtx); err != nil {
		cancelTask()
		cancelAlloc()
		m.checkin(connectionID)
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	s := &Session{
		manager:      m,
		connectionID: connectionID,
		mode:         m.cfg.Mode,
		timeout:      operationTimeout(m.cfg.Mode),
		taskCtx:      taskCtx,
		cancelTask:   cancelTask,
		cancelAlloc:  cancelAlloc,
	}

	if m.cfg.Mode == ModeRemoteCloud {
		if c := chromedp.FromContext(taskCtx); c != nil && c.Target != nil {
			s.liveURL = fmt.Sprintf(m.cfg.LiveURLTemplate, c.Target.TargetID)
		}
	}

	log.Printf("Browser session acquired for connection %s (mode=%s)", connectionID, m.cfg.Mode)
	return s, nil
}

// newAllocator builds the chromedp allocator for the configured mode.
func (m *Manager) newAllocator(ctx context.Context) (context.Context, context.CancelFunc, error) {
	switch m.cfg.Mode {
	case ModeLocal:
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", false),
			chromedp.Flag("start-maximized", true),
		)
		allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
		return allocCtx, cancel, nil

	case ModeRemoteCloud:
		if m.cfg.RemoteURL == "" {
			return nil, nil, fmt.Errorf("remotecloud mode requires a remote debugging URL")
		}
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, m.cfg.RemoteURL)
		return allocCtx, cancel, nil

	case ModeContainerized:
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.ExecPath(m.cfg.ExecPath),
			chromedp.Flag("headless", true),
			chromedp.NoSandbox,
		)
		allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
		return allocCtx, cancel, nil

	default:
		return nil, nil, fmt.Errorf("unknown browser mode %q", m.cfg.Mode)
	}
}

func (m *Manager) checkout(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inUse[connectionID] {
		return ErrSessionInUse
	}
	m.inUse[connectionID] = true
	return nil
}

func (m *Manager) checkin(connectionID string) {
	m.mu.Lock()
	delete(m.inUse, connectionID)
	m.mu.Unlock()
}

// Run executes browser actions under the session's operation timeout.
// A deadline hit surfaces as context.DeadlineExceeded for the adapter to
// classify as a provider timeout.
func (s *Session) Run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.taskCtx, s.timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// LiveURL returns the human-viewable session URL. Empty outside remotecloud
// mode.
func (s *Session) LiveURL() string { return s.liveURL }

// Mode returns the mode this session was provisioned under.
func (s *Session) Mode() Mode { return s.mode }

// Timeout returns the per-operation time budget.
func (s *Session) Timeout() time.Duration { return s.timeout }

// Release returns the handle. For remotecloud the websocket is disconnected
// and the managed browser keeps running so the session can be revisited; for
// the other modes the browser process is closed. Safe to call more than once.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		s.cancelTask()
		s.cancelAlloc()
		s.manager.checkin(s.connectionID)
		log.Printf("Browser session released for connection %s (mode=%s)", s.connectionID, s.mode)
	})
}

// operationTimeout returns the time budget for one browser operation. It is
// long whenever a human may need to act and short when fully unattended.
func operationTimeout(mode Mode) time.Duration {
	switch mode {
	case ModeContainerized:
		return unattendedTimeout
	default:
		return attendedTimeout
	}
}
