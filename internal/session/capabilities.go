package session

import (
	"time"

	"github.com/notexe/mcp-device/internal/appium"
	"github.com/notexe/mcp-device/internal/device"
)

// BuildCapabilities returns the Appium capability set for d.
func BuildCapabilities(d device.Descriptor, newCommandTimeout time.Duration) appium.Capabilities {
	caps := appium.Capabilities{
		"appium:udid":              d.ID,
		"appium:deviceName":        d.Name,
		"appium:newCommandTimeout": int(newCommandTimeout.Seconds()),
	}

	switch d.Platform {
	case device.IOS:
		caps["platformName"] = "iOS"
		caps["appium:automationName"] = "XCUITest"
	case device.Android:
		caps["platformName"] = "Android"
		caps["appium:automationName"] = "UiAutomator2"
		caps["appium:autoGrantPermissions"] = true
	}

	if d.OSVersion != "" {
		caps["appium:platformVersion"] = d.OSVersion
	}

	return caps
}
