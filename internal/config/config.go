package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys are
// separated by a double underscore: MCP_DEVICE_APPIUM__URL sets appium.url.
const EnvPrefix = "MCP_DEVICE_"

type Config struct {
	Appium      AppiumConfig     `koanf:"appium"`
	Session     SessionConfig    `koanf:"session"`
	Logs        LogsConfig       `koanf:"logs"`
	Log         LogConfig        `koanf:"log"`
	Shutdown    ShutdownConfig   `koanf:"shutdown"`
	Screenshots ScreenshotConfig `koanf:"screenshots"`
	Host        HostConfig       `koanf:"host"`
}

type AppiumConfig struct {
	URL               string `koanf:"url"`
	RequestTimeout    int    `koanf:"request_timeout"`     // HTTP timeout per Appium call, seconds
	NewCommandTimeout int    `koanf:"new_command_timeout"` // appium:newCommandTimeout capability, seconds
}

type SessionConfig struct {
	StrictSelection bool `koanf:"strict_selection"` // reject device_name filters matching more than one device
}

// LogsConfig holds the device-log sink files, one per platform.
type LogsConfig struct {
	IOSSink     string `koanf:"ios_sink"`
	AndroidSink string `koanf:"android_sink"`
	StopTimeout int    `koanf:"stop_timeout"` // seconds to wait for the log subprocess after SIGTERM
}

// LogConfig configures the bridge's own logger.
type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
	File        string `koanf:"file"`
}

type ShutdownConfig struct {
	Timeout int `koanf:"timeout"` // seconds
}

type ScreenshotConfig struct {
	Dir string `koanf:"dir"` // empty means os.TempDir()
}

// HostConfig names the host binaries used for discovery and log capture.
type HostConfig struct {
	Xcrun string `koanf:"xcrun"`
	ADB   string `koanf:"adb"`
}

func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Logs.IOSSink = expandPath(cfg.Logs.IOSSink)
	cfg.Logs.AndroidSink = expandPath(cfg.Logs.AndroidSink)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Screenshots.Dir = expandPath(cfg.Screenshots.Dir)

	return &cfg, nil
}

// envKey maps MCP_DEVICE_LOGS__IOS_SINK to logs.ios_sink.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Appium.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("appium.url must be an absolute URL, got %q", c.Appium.URL)
	}

	if c.Appium.RequestTimeout <= 0 {
		return fmt.Errorf("appium.request_timeout must be positive")
	}

	if c.Appium.NewCommandTimeout <= 0 {
		return fmt.Errorf("appium.new_command_timeout must be positive")
	}

	if c.Logs.IOSSink == "" || c.Logs.AndroidSink == "" {
		return fmt.Errorf("logs.ios_sink and logs.android_sink are required")
	}

	if c.Logs.IOSSink == c.Logs.AndroidSink {
		return fmt.Errorf("logs.ios_sink and logs.android_sink must differ")
	}

	if c.Logs.StopTimeout <= 0 {
		return fmt.Errorf("logs.stop_timeout must be positive")
	}

	if c.Shutdown.Timeout <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s (supported: debug, info, warn, error)", c.Log.Level)
	}

	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Appium.RequestTimeout) * time.Second
}

func (c *Config) NewCommandTimeout() time.Duration {
	return time.Duration(c.Appium.NewCommandTimeout) * time.Second
}

func (c *Config) LogStopTimeout() time.Duration {
	return time.Duration(c.Logs.StopTimeout) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Shutdown.Timeout) * time.Second
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
