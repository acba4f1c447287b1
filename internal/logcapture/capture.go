// Package logcapture streams a device's system log into a sink file and
// hands accumulated output to callers on demand.
package logcapture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/notexe/mcp-device/internal/device"
	"go.uber.org/zap"
)

var (
	ErrSubprocessSpawn     = errors.New("failed to spawn log capture process")
	ErrSinkIO              = errors.New("log sink I/O failed")
	ErrNoNewLogs           = errors.New("no new logs since last read")
	ErrCaptureNeverStarted = errors.New("log capture has not been started")
)

const defaultStopTimeout = 3 * time.Second

// Options configures a Capture.
type Options struct {
	Xcrun       string
	ADB         string
	StopTimeout time.Duration // wait after SIGTERM before killing
}

// Capture owns the log subprocess and sink file of one platform.
type Capture struct {
	platform device.Platform
	sinkPath string
	spawner  Spawner
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	current *tracked

	drainMu sync.Mutex
}

type tracked struct {
	proc   Process
	device device.Descriptor
	sink   *os.File
	done   chan struct{}
}

// Status is a snapshot of the capture state.
type Status struct {
	Running  bool   `json:"running"`
	Pid      int    `json:"pid,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`
	SinkPath string `json:"sinkPath"`
}

// New creates a Capture writing to sinkPath.
func New(platform device.Platform, sinkPath string, spawner Spawner, logger *zap.Logger, opts Options) *Capture {
	if opts.Xcrun == "" {
		opts.Xcrun = "xcrun"
	}
	if opts.ADB == "" {
		opts.ADB = "adb"
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &Capture{
		platform: platform,
		sinkPath: sinkPath,
		spawner:  spawner,
		opts:     opts,
		logger:   logger.With(zap.String("platform", string(platform)), zap.String("sink", sinkPath)),
	}
}

// Platform returns the platform this capture serves.
func (c *Capture) Platform() device.Platform { return c.platform }

// SinkPath returns the sink file path.
func (c *Capture) SinkPath() string { return c.sinkPath }

// command returns the streaming command for d.
func (c *Capture) command(d device.Descriptor) (string, []string) {
	if c.platform == device.IOS {
		return c.opts.Xcrun, []string{"simctl", "spawn", d.ID, "log", "stream", "--style", "compact", "--level", "debug"}
	}
	return c.opts.ADB, []string{"-s", d.ID, "logcat", "-v", "threadtime"}
}

// Start truncates the sink and spawns the log stream for d. A capture that is
// already running is stopped first.
func (c *Capture) Start(d device.Descriptor) error {
	c.Stop()

	if err := os.MkdirAll(filepath.Dir(c.sinkPath), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkIO, err)
	}

	// O_APPEND keeps writes at the end after Drain truncates the file under us.
	sink, err := os.OpenFile(c.sinkPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkIO, err)
	}

	name, args := c.command(d)
	proc, err := c.spawner.Spawn(name, args, sink)
	if err != nil {
		sink.Close()
		// A missing sink tells Drain that nothing was ever captured.
		if rmErr := os.Remove(c.sinkPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			c.logger.Warn("failed to remove log sink", zap.String("path", c.sinkPath), zap.Error(rmErr))
		}
		return fmt.Errorf("%w: %s: %w", ErrSubprocessSpawn, name, err)
	}

	t := &tracked{proc: proc, device: d, sink: sink, done: make(chan struct{})}

	c.mu.Lock()
	c.current = t
	c.mu.Unlock()

	go c.supervise(t)

	c.logger.Info("log capture started", zap.String("device", d.ID), zap.Int("pid", proc.Pid()))
	return nil
}

// supervise waits for the process and clears the handle when it exits on its
// own.
func (c *Capture) supervise(t *tracked) {
	err := t.proc.Wait()
	t.sink.Close()

	c.mu.Lock()
	unexpected := c.current == t
	if unexpected {
		c.current = nil
	}
	c.mu.Unlock()

	if unexpected {
		c.logger.Warn("log capture process exited", zap.String("device", t.device.ID), zap.Error(err))
	} else {
		c.logger.Debug("log capture process reaped", zap.String("device", t.device.ID))
	}
	close(t.done)
}

// Stop terminates the tracked process, if any. Safe to call repeatedly.
func (c *Capture) Stop() {
	c.mu.Lock()
	t := c.current
	c.current = nil
	c.mu.Unlock()

	if t == nil {
		return
	}

	if err := t.proc.Terminate(); err != nil {
		c.logger.Warn("failed to signal log capture process", zap.Error(err))
	}

	select {
	case <-t.done:
	case <-time.After(c.opts.StopTimeout):
		c.logger.Warn("log capture process ignored SIGTERM, killing", zap.Int("pid", t.proc.Pid()))
		if err := t.proc.Kill(); err != nil {
			c.logger.Warn("failed to kill log capture process", zap.Error(err))
		}
		select {
		case <-t.done:
		case <-time.After(c.opts.StopTimeout):
			c.logger.Error("log capture process did not exit after kill", zap.Int("pid", t.proc.Pid()))
		}
	}

	c.logger.Info("log capture stopped", zap.String("device", t.device.ID))
}

// Running reports whether a process is tracked.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Capture) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{SinkPath: c.sinkPath}
	if c.current != nil {
		st.Running = true
		st.Pid = c.current.proc.Pid()
		st.DeviceID = c.current.device.ID
	}
	return st
}

// Drain returns everything written since the last drain and empties the sink.
// Lines written between the read and the truncate are lost.
func (c *Capture) Drain() (string, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	data, err := os.ReadFile(c.sinkPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrCaptureNeverStarted
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSinkIO, err)
	}

	if len(data) == 0 {
		return "", ErrNoNewLogs
	}

	if err := os.Truncate(c.sinkPath, 0); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSinkIO, err)
	}
	return string(data), nil
}
