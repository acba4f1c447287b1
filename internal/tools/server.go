package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/notexe/mcp-device/internal/appium"
	"github.com/notexe/mcp-device/internal/device"
	"github.com/notexe/mcp-device/internal/logcapture"
	"github.com/notexe/mcp-device/internal/session"
	"go.uber.org/zap"
)

const (
	serverName    = "mcp-device"
	serverVersion = "1.0.0"

	defaultSwipeDuration = 300
)

// Strategies accepted by find_element.
var strategies = []string{
	"accessibility id",
	"id",
	"xpath",
	"class name",
	"-ios predicate string",
	"-ios class chain",
	"-android uiautomator",
}

var platformEnum = []string{"ios", "android", "auto"}

// Sessions is the session surface the handlers use. *session.Manager
// implements it.
type Sessions interface {
	Start(ctx context.Context, pref device.Preference, nameFilter string) (device.Descriptor, error)
	End(ctx context.Context) (bool, error)
	Phase() session.Phase
	Driver() (appium.Driver, error)
	Status() session.Status
	DrainLogs(p device.Platform) (string, error)
}

// Detector lists devices for list_devices. *device.Detector implements it.
type Detector interface {
	DetectAll(ctx context.Context, pref device.Preference) []device.Descriptor
}

// Options configures the tool server.
type Options struct {
	ScreenshotDir string // default output directory for take_screenshot; temp dir when empty
}

// Server is the MCP server exposing device automation tools.
type Server struct {
	mcpServer *server.MCPServer
	registry  *Registry
	sessions  Sessions
	detector  Detector
	opts      Options
	logger    *zap.Logger
}

// NewServer builds the tool catalog and registers it with a new MCP server.
func NewServer(sessions Sessions, detector Detector, logger *zap.Logger, opts Options) *Server {
	s := &Server{
		registry: NewRegistry(logger.Named("registry")),
		sessions: sessions,
		detector: detector,
		opts:     opts,
		logger:   logger,
	}

	s.registerSessionTools()
	s.registerDriverTools()

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registry.Bind(s.mcpServer)

	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Registry returns the tool catalog.
func (s *Server) Registry() *Registry {
	return s.registry
}

// registerSessionTools registers device discovery and session lifecycle tools.
func (s *Server) registerSessionTools() {
	s.registry.Register(
		Definition{
			Name:        "list_devices",
			Description: "List available iOS simulators and Android devices/emulators",
			Args: []Arg{
				{Name: "platform", Type: TypeString, Enum: platformEnum, Description: "Platform to list: 'ios', 'android' or 'auto' for both (default: auto)"},
			},
			Handler: s.handleListDevices,
		},
		Definition{
			Name:        "start_session",
			Description: "Start an Appium automation session on a detected device and begin capturing its logs. Only one session may be active.",
			Args: []Arg{
				{Name: "platform", Type: TypeString, Enum: platformEnum, Description: "Target platform (default: auto, which prefers iOS)"},
				{Name: "device_name", Type: TypeString, Description: "Case-insensitive substring of the device name to select"},
			},
			Handler: s.handleStartSession,
		},
		Definition{
			Name:        "end_session",
			Description: "Stop log capture and close the active automation session",
			Handler:     s.handleEndSession,
		},
		Definition{
			Name:        "session_status",
			Description: "Show the current session, its device and the log capture state",
			Handler:     s.handleSessionStatus,
		},
		Definition{
			Name:        "get_device_logs",
			Description: "Return device logs captured since the last call and clear them",
			Args: []Arg{
				{Name: "platform", Type: TypeString, Enum: []string{"ios", "android"}, Description: "Platform whose logs to read (default: platform of the active session)"},
			},
			Handler: s.handleGetDeviceLogs,
		},
	)
}

// registerDriverTools registers UI automation tools. All require a session.
func (s *Server) registerDriverTools() {
	s.registry.Register(
		Definition{
			Name:        "find_element",
			Description: "Find a UI element and return its element id",
			Args: []Arg{
				{Name: "strategy", Type: TypeString, Required: true, Enum: strategies, Description: "Locator strategy"},
				{Name: "selector", Type: TypeString, Required: true, Description: "Selector value for the strategy"},
			},
			Handler: s.handleFindElement,
		},
		Definition{
			Name:        "tap_element",
			Description: "Tap an element returned by find_element",
			Args: []Arg{
				{Name: "element_id", Type: TypeString, Required: true, Description: "Element id from find_element"},
			},
			Handler: s.handleTapElement,
		},
		Definition{
			Name:        "tap",
			Description: "Tap at screen coordinates",
			Args: []Arg{
				{Name: "x", Type: TypeNumber, Required: true, Description: "X coordinate"},
				{Name: "y", Type: TypeNumber, Required: true, Description: "Y coordinate"},
			},
			Handler: s.handleTap,
		},
		Definition{
			Name:        "send_keys",
			Description: "Type text into an element",
			Args: []Arg{
				{Name: "element_id", Type: TypeString, Required: true, Description: "Element id from find_element"},
				{Name: "text", Type: TypeString, Required: true, Description: "Text to type"},
			},
			Handler: s.handleSendKeys,
		},
		Definition{
			Name:        "swipe",
			Description: "Swipe from one point to another",
			Args: []Arg{
				{Name: "start_x", Type: TypeNumber, Required: true, Description: "Start X coordinate"},
				{Name: "start_y", Type: TypeNumber, Required: true, Description: "Start Y coordinate"},
				{Name: "end_x", Type: TypeNumber, Required: true, Description: "End X coordinate"},
				{Name: "end_y", Type: TypeNumber, Required: true, Description: "End Y coordinate"},
				{Name: "duration_ms", Type: TypeNumber, Description: "Swipe duration in milliseconds (default: 300)"},
			},
			Handler: s.handleSwipe,
		},
		Definition{
			Name:        "get_page_source",
			Description: "Get the UI hierarchy of the current screen as XML",
			Handler:     s.handleGetPageSource,
		},
		Definition{
			Name:        "take_screenshot",
			Description: "Take a screenshot and save it as PNG",
			Args: []Arg{
				{Name: "output_path", Type: TypeString, Description: "Output file path (a timestamped file is created if not specified)"},
			},
			Handler: s.handleTakeScreenshot,
		},
	)
}

// Session tool handlers

func (s *Server) handleListDevices(ctx context.Context, args Args) *mcp.CallToolResult {
	pref, err := device.ParsePreference(args.String("platform", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	devices := s.detector.DetectAll(ctx, pref)
	if len(devices) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No devices found for platform %s. Boot a simulator or start an emulator, then try again.", pref))
	}

	return jsonResult(devices)
}

func (s *Server) handleStartSession(ctx context.Context, args Args) *mcp.CallToolResult {
	pref, err := device.ParsePreference(args.String("platform", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	d, err := s.sessions.Start(ctx, pref, args.String("device_name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session started on %s", d)
	if lc := s.sessions.Status().LogCapture; lc != nil {
		if lc.Running {
			fmt.Fprintf(&b, "\nLog capture running, sink: %s", lc.SinkPath)
		} else {
			b.WriteString("\nLog capture is not running; get_device_logs will have nothing to return")
		}
	}
	return mcp.NewToolResultText(b.String())
}

func (s *Server) handleEndSession(ctx context.Context, _ Args) *mcp.CallToolResult {
	ended, err := s.sessions.End(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if !ended {
		return mcp.NewToolResultText("No active session, nothing to end")
	}
	return mcp.NewToolResultText("Session ended")
}

func (s *Server) handleSessionStatus(_ context.Context, _ Args) *mcp.CallToolResult {
	return jsonResult(s.sessions.Status())
}

func (s *Server) handleGetDeviceLogs(_ context.Context, args Args) *mcp.CallToolResult {
	logs, err := s.sessions.DrainLogs(device.Platform(args.String("platform", "")))
	switch {
	case errors.Is(err, logcapture.ErrNoNewLogs):
		return mcp.NewToolResultText("No new logs since the last read")
	case err != nil:
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(logs)
}

// Driver tool handlers

// driver returns the session driver, or the result to return when no
// session is active.
func (s *Server) driver() (appium.Driver, *mcp.CallToolResult) {
	if s.sessions.Phase() != session.Active {
		return nil, notActive()
	}
	drv, err := s.sessions.Driver()
	if err != nil {
		return nil, notActive()
	}
	return drv, nil
}

func notActive() *mcp.CallToolResult {
	return mcp.NewToolResultError(session.ErrSessionNotActive.Error() + ": call start_session first")
}

func (s *Server) handleFindElement(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	strategy := args.String("strategy", "")
	selector := args.String("selector", "")

	id, err := drv.FindElement(ctx, strategy, selector)
	if errors.Is(err, appium.ErrNoSuchElement) {
		return mcp.NewToolResultError(fmt.Sprintf("no element found by %s %q", strategy, selector))
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	return mcp.NewToolResultText(fmt.Sprintf("Element found: %s", id))
}

func (s *Server) handleTapElement(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	id := args.String("element_id", "")
	if err := drv.Click(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tapped element %s", id))
}

func (s *Server) handleTap(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	at := appium.Point{X: args.Int("x", 0), Y: args.Int("y", 0)}
	if err := drv.Tap(ctx, at); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(fmt.Sprintf("Tapped at (%d, %d)", at.X, at.Y))
}

func (s *Server) handleSendKeys(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	id := args.String("element_id", "")
	text := args.String("text", "")
	if err := drv.SendKeys(ctx, id, text); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(fmt.Sprintf("Typed %d characters into element %s", len([]rune(text)), id))
}

func (s *Server) handleSwipe(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	ms := args.Int("duration_ms", defaultSwipeDuration)
	if ms < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("%v: duration_ms must not be negative", ErrArgumentValidation))
	}

	from := appium.Point{X: args.Int("start_x", 0), Y: args.Int("start_y", 0)}
	to := appium.Point{X: args.Int("end_x", 0), Y: args.Int("end_y", 0)}
	if err := drv.Swipe(ctx, from, to, time.Duration(ms)*time.Millisecond); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(fmt.Sprintf("Swiped from (%d, %d) to (%d, %d) in %dms", from.X, from.Y, to.X, to.Y, ms))
}

func (s *Server) handleGetPageSource(ctx context.Context, _ Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	src, err := drv.Source(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(src)
}

func (s *Server) handleTakeScreenshot(ctx context.Context, args Args) *mcp.CallToolResult {
	drv, res := s.driver()
	if res != nil {
		return res
	}

	png, err := drv.Screenshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}

	outputPath := args.String("output_path", "")
	if outputPath == "" {
		dir := s.opts.ScreenshotDir
		if dir == "" {
			dir = os.TempDir()
		}
		timestamp := time.Now().Format("20060102_150405")
		outputPath = filepath.Join(dir, fmt.Sprintf("device_screenshot_%s.png", timestamp))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create output directory: %v", err))
	}
	if err := os.WriteFile(outputPath, png, 0o644); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write screenshot: %v", err))
	}

	s.logger.Debug("screenshot saved", zap.String("path", outputPath), zap.Int("bytes", len(png)))
	return mcp.NewToolResultText(fmt.Sprintf("Screenshot saved to: %s", outputPath))
}

func jsonResult(v any) *mcp.CallToolResult {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format output: %v", err))
	}
	return mcp.NewToolResultText(string(output))
}
