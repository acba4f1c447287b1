package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"appium": map[string]interface{}{
			"url":                 "http://127.0.0.1:4723",
			"request_timeout":     120,  // session creation can take a while on a cold simulator
			"new_command_timeout": 3600, // idle seconds before Appium drops the session
		},
		"session": map[string]interface{}{
			"strict_selection": false,
		},
		"logs": map[string]interface{}{
			"ios_sink":     "~/.mcp-device/logs/ios-device.log",
			"android_sink": "~/.mcp-device/logs/android-device.log",
			"stop_timeout": 3,
		},
		"log": map[string]interface{}{
			"level":       "info",
			"development": false,
			"file":        "",
		},
		"shutdown": map[string]interface{}{
			"timeout": 10,
		},
		"screenshots": map[string]interface{}{
			"dir": "",
		},
		"host": map[string]interface{}{
			"xcrun": "xcrun",
			"adb":   "adb",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.mcp-device/config.yaml"
}
