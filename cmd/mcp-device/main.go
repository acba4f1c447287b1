// Command mcp-device provides an MCP server for mobile device automation
// through Appium.
//
// This server provides tools for:
// - Device discovery (iOS simulators via simctl, Android devices via adb)
// - A single Appium session per process, with device log capture
// - UI automation (find elements, tap, type, swipe, page source, screenshots)
//
// Usage:
//
//	./mcp-device                   # Start MCP server (stdio)
//	./mcp-device --check           # Check prerequisites
//	./mcp-device --config cfg.yaml # Use a specific config file
//
// The server communicates via stdio using the MCP protocol. Logs go to
// stderr and, when configured, to a log file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/notexe/mcp-device/internal/appium"
	"github.com/notexe/mcp-device/internal/config"
	"github.com/notexe/mcp-device/internal/device"
	"github.com/notexe/mcp-device/internal/logcapture"
	"github.com/notexe/mcp-device/internal/logging"
	"github.com/notexe/mcp-device/internal/session"
	"github.com/notexe/mcp-device/internal/shutdown"
	"github.com/notexe/mcp-device/internal/tools"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("mcp-device", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", config.GetDefaultConfigPath(), "path to the YAML config file")
	logLevel := flags.String("log-level", "", "log level override: debug, info, warn, error")
	check := flags.Bool("check", false, "check prerequisites and exit")
	help := flags.BoolP("help", "h", false, "show this help")
	flags.Usage = func() { printHelp(flags) }

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if *help {
		printHelp(flags)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	detector := device.NewDetector(device.ExecRunner{}, logger.Named("detector"), device.WithBinaries(cfg.Host.Xcrun, cfg.Host.ADB))
	client := appium.NewClient(cfg.Appium.URL, cfg.RequestTimeout())

	if *check {
		os.Exit(checkPrerequisites(context.Background(), cfg, detector, client))
	}

	if err := serve(cfg, logger, detector, client); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func serve(cfg *config.Config, logger *zap.Logger, detector *device.Detector, client *appium.Client) error {
	captureOpts := logcapture.Options{
		Xcrun:       cfg.Host.Xcrun,
		ADB:         cfg.Host.ADB,
		StopTimeout: cfg.LogStopTimeout(),
	}
	captureLogger := logger.Named("logcapture")
	captures := []session.LogCapture{
		logcapture.New(device.IOS, cfg.Logs.IOSSink, logcapture.ExecSpawner{}, captureLogger, captureOpts),
		logcapture.New(device.Android, cfg.Logs.AndroidSink, logcapture.ExecSpawner{}, captureLogger, captureOpts),
	}

	manager := session.NewManager(detector, client, captures, logger.Named("session"), session.Options{
		NewCommandTimeout: cfg.NewCommandTimeout(),
		StrictSelection:   cfg.Session.StrictSelection,
	})

	coordinator := shutdown.New(manager, cfg.ShutdownTimeout(), logger.Named("shutdown"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coordinator.Listen(ctx)

	s := tools.NewServer(manager, detector, logger.Named("tools"), tools.Options{
		ScreenshotDir: cfg.Screenshots.Dir,
	})

	stdio := server.NewStdioServer(s.MCPServer())
	stdio.SetErrorLogger(zap.NewStdLog(logger.Named("mcp")))

	logger.Info("mcp-device ready",
		zap.String("appium", cfg.Appium.URL),
		zap.String("ios_sink", cfg.Logs.IOSSink),
		zap.String("android_sink", cfg.Logs.AndroidSink),
	)

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		logger.Error("transport failed", zap.Error(err))
		coordinator.ShutdownWithCode("transport error", 1)
		return err
	}

	coordinator.Shutdown("client disconnected")
	return nil
}

func printHelp(flags *pflag.FlagSet) {
	fmt.Printf(`MCP Device Server - iOS and Android automation via MCP protocol and Appium

USAGE:
    mcp-device [flags]

FLAGS:
%s
PREREQUISITES:
    1. Appium 2 with drivers
       npm install -g appium
       appium driver install xcuitest
       appium driver install uiautomator2
       appium

    2. iOS: Xcode command line tools and a simulator
       xcode-select --install
       xcrun simctl boot "iPhone 15"

    3. Android: platform-tools (adb) and a device or emulator
       adb devices

CONFIGURATION:
    %s (optional), overridden by MCP_DEVICE_* environment
    variables, e.g. MCP_DEVICE_APPIUM__URL=http://127.0.0.1:4723

TOOLS:
    Devices:  list_devices
    Session:  start_session, end_session, session_status, get_device_logs
    UI:       find_element, tap_element, tap, send_keys, swipe,
              get_page_source, take_screenshot
`, flags.FlagUsages(), config.GetDefaultConfigPath())
}
