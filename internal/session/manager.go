// Package session owns the single automation session of the bridge and the
// log capture bound to it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notexe/mcp-device/internal/appium"
	"github.com/notexe/mcp-device/internal/device"
	"github.com/notexe/mcp-device/internal/logcapture"
	"go.uber.org/zap"
)

// Phase is the lifecycle phase of the session.
type Phase int

const (
	Idle Phase = iota
	Active
)

func (p Phase) String() string {
	if p == Active {
		return "active"
	}
	return "idle"
}

// Detector lists candidate devices. *device.Detector implements it.
type Detector interface {
	DetectAll(ctx context.Context, pref device.Preference) []device.Descriptor
}

// LogCapture is the per-platform log stream. *logcapture.Capture implements it.
type LogCapture interface {
	Platform() device.Platform
	Start(d device.Descriptor) error
	Stop()
	Running() bool
	Status() logcapture.Status
	Drain() (string, error)
}

// Options tunes session creation.
type Options struct {
	NewCommandTimeout time.Duration
	StrictSelection   bool
}

// Status is a snapshot of the manager state.
type Status struct {
	Phase           string             `json:"phase"`
	SessionID       string             `json:"sessionId,omitempty"`
	AppiumSessionID string             `json:"appiumSessionId,omitempty"`
	Device          *device.Descriptor `json:"device,omitempty"`
	StartedAt       *time.Time         `json:"startedAt,omitempty"`
	LogCapture      *logcapture.Status `json:"logCapture,omitempty"`
}

// Manager is the Idle/Active state machine. Session and capture state only
// change while mu is held.
type Manager struct {
	detector  Detector
	connector appium.Connector
	captures  map[device.Platform]LogCapture
	opts      Options
	logger    *zap.Logger

	mu        sync.Mutex
	phase     Phase
	driver    appium.Driver
	device    device.Descriptor
	id        string
	startedAt time.Time
}

// NewManager creates an idle manager. captures holds at most one capture per
// platform.
func NewManager(detector Detector, connector appium.Connector, captures []LogCapture, logger *zap.Logger, opts Options) *Manager {
	m := &Manager{
		detector:  detector,
		connector: connector,
		captures:  make(map[device.Platform]LogCapture, len(captures)),
		opts:      opts,
		logger:    logger,
	}
	for _, c := range captures {
		m.captures[c.Platform()] = c
	}
	return m
}

// Start selects a device, opens an Appium session on it and starts its log
// capture.
func (m *Manager) Start(ctx context.Context, pref device.Preference, nameFilter string) (device.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Active {
		return device.Descriptor{}, fmt.Errorf("%w: %s (%s)", ErrSessionAlreadyActive, m.device.Name, m.device.ID)
	}

	candidates := m.detector.DetectAll(ctx, pref)
	m.logger.Debug("detected devices", zap.String("preference", string(pref)), zap.Int("candidates", len(candidates)))

	d, err := Select(candidates, pref, nameFilter, m.opts.StrictSelection)
	if err != nil {
		return device.Descriptor{}, err
	}

	caps := BuildCapabilities(d, m.opts.NewCommandTimeout)
	m.logger.Info("opening automation session", zap.String("device", d.String()))

	drv, err := m.connector.Connect(ctx, caps)
	if err != nil {
		return device.Descriptor{}, fmt.Errorf("%w: %s: %w", ErrConnection, d.Name, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		m.logger.Warn("rolling back partially started session", zap.String("device", d.ID))
		m.stopCapture(d.Platform)
		if err := drv.Close(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("failed to close driver during rollback", zap.Error(err))
		}
		m.reset()
	}()

	m.phase = Active
	m.driver = drv
	m.device = d
	m.id = uuid.NewString()
	m.startedAt = time.Now()

	if c, ok := m.captures[d.Platform]; ok {
		if err := c.Start(d); err != nil {
			m.logger.Warn("log capture failed to start, continuing without logs", zap.String("device", d.ID), zap.Error(err))
		}
	}

	committed = true
	m.logger.Info("session started",
		zap.String("session", m.id),
		zap.String("appium_session", drv.SessionID()),
		zap.String("device", d.String()),
	)
	return d, nil
}

// End stops the log capture, closes the driver and returns to Idle. It
// reports whether a session was active.
func (m *Manager) End(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Idle {
		return false, nil
	}

	d, drv, id := m.device, m.driver, m.id
	defer m.reset()

	m.stopCapture(d.Platform)

	if err := drv.Close(ctx); err != nil {
		m.logger.Warn("failed to close automation session", zap.String("session", id), zap.Error(err))
	}

	m.logger.Info("session ended", zap.String("session", id), zap.String("device", d.ID))
	return true, nil
}

func (m *Manager) stopCapture(p device.Platform) {
	if c, ok := m.captures[p]; ok {
		c.Stop()
	}
}

func (m *Manager) reset() {
	m.phase = Idle
	m.driver = nil
	m.device = device.Descriptor{}
	m.id = ""
	m.startedAt = time.Time{}
}

// Phase reports whether a session is Idle or Active.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Device returns the session device while Active.
func (m *Manager) Device() (device.Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device, m.phase == Active
}

// Driver returns the connected driver, or ErrSessionNotActive when Idle.
func (m *Manager) Driver() (appium.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != Active {
		return nil, ErrSessionNotActive
	}
	return m.driver, nil
}

// Status returns a snapshot of the session and its log capture.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Phase: m.phase.String()}
	if m.phase != Active {
		return st
	}

	d := m.device
	started := m.startedAt
	st.SessionID = m.id
	st.AppiumSessionID = m.driver.SessionID()
	st.Device = &d
	st.StartedAt = &started
	if c, ok := m.captures[d.Platform]; ok {
		cs := c.Status()
		st.LogCapture = &cs
	}
	return st
}

// DrainLogs drains the sink of platform p. An empty p means the platform of
// the active session.
func (m *Manager) DrainLogs(p device.Platform) (string, error) {
	m.mu.Lock()
	if p == "" {
		if m.phase != Active {
			m.mu.Unlock()
			return "", fmt.Errorf("%w: pass a platform to read its last captured logs", ErrSessionNotActive)
		}
		p = m.device.Platform
	}
	c, ok := m.captures[p]
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no log capture configured for %s", p)
	}
	return c.Drain()
}
