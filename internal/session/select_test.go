package session

import (
	"testing"
	"time"

	"github.com/notexe/mcp-device/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	iphone15 = device.Descriptor{Platform: device.IOS, ID: "UDID-15", Name: "iPhone 15", OSVersion: "17.2", Kind: device.KindSimulator}
	iphoneSE = device.Descriptor{Platform: device.IOS, ID: "UDID-SE", Name: "iPhone SE (3rd generation)", OSVersion: "17.2", Kind: device.KindSimulator}
	pixel    = device.Descriptor{Platform: device.Android, ID: "emulator-5554", Name: "Pixel 7", OSVersion: "14", APILevel: "34", Kind: device.KindEmulator}
)

func TestSelectAutoPrefersIOS(t *testing.T) {
	d, err := Select([]device.Descriptor{pixel, iphone15}, device.PreferAuto, "", false)
	require.NoError(t, err)
	assert.Equal(t, iphone15.ID, d.ID)
}

func TestSelectAutoFallsBackToAndroid(t *testing.T) {
	d, err := Select([]device.Descriptor{pixel}, device.PreferAuto, "", false)
	require.NoError(t, err)
	assert.Equal(t, pixel.ID, d.ID)
}

func TestSelectExplicitPlatform(t *testing.T) {
	d, err := Select([]device.Descriptor{iphone15, pixel}, device.PreferAndroid, "", false)
	require.NoError(t, err)
	assert.Equal(t, pixel.ID, d.ID)

	_, err = Select([]device.Descriptor{pixel}, device.PreferIOS, "", false)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Contains(t, err.Error(), "ios")
}

func TestSelectNothingDetected(t *testing.T) {
	_, err := Select(nil, device.PreferAuto, "", false)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSelectFilterIsCaseInsensitiveSubstring(t *testing.T) {
	d, err := Select([]device.Descriptor{iphone15, iphoneSE}, device.PreferIOS, "se (3rd", false)
	require.NoError(t, err)
	assert.Equal(t, iphoneSE.ID, d.ID)
}

func TestSelectFilterScopedToPlatform(t *testing.T) {
	_, err := Select([]device.Descriptor{iphone15, pixel}, device.PreferIOS, "Pixel", false)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Contains(t, err.Error(), `"Pixel"`)
	assert.Contains(t, err.Error(), "ios")
}

func TestSelectFilterFirstMatchWins(t *testing.T) {
	d, err := Select([]device.Descriptor{iphone15, iphoneSE}, device.PreferAuto, "iphone", false)
	require.NoError(t, err)
	assert.Equal(t, iphone15.ID, d.ID)
}

func TestSelectStrictRejectsAmbiguousFilter(t *testing.T) {
	_, err := Select([]device.Descriptor{iphone15, iphoneSE}, device.PreferAuto, "iphone", true)
	require.ErrorIs(t, err, ErrDeviceSelectionAmbiguous)
	assert.Contains(t, err.Error(), "iPhone 15")
	assert.Contains(t, err.Error(), "iPhone SE")

	d, err := Select([]device.Descriptor{iphone15, iphoneSE}, device.PreferAuto, "iPhone 15", true)
	require.NoError(t, err)
	assert.Equal(t, iphone15.ID, d.ID)
}

func TestBuildCapabilitiesIOS(t *testing.T) {
	caps := BuildCapabilities(iphone15, time.Hour)

	assert.Equal(t, "iOS", caps["platformName"])
	assert.Equal(t, "XCUITest", caps["appium:automationName"])
	assert.Equal(t, "UDID-15", caps["appium:udid"])
	assert.Equal(t, "iPhone 15", caps["appium:deviceName"])
	assert.Equal(t, "17.2", caps["appium:platformVersion"])
	assert.Equal(t, 3600, caps["appium:newCommandTimeout"])
	assert.NotContains(t, caps, "appium:autoGrantPermissions")
}

func TestBuildCapabilitiesAndroidWithoutVersion(t *testing.T) {
	d := pixel
	d.OSVersion = ""
	caps := BuildCapabilities(d, 10*time.Minute)

	assert.Equal(t, "Android", caps["platformName"])
	assert.Equal(t, "UiAutomator2", caps["appium:automationName"])
	assert.Equal(t, true, caps["appium:autoGrantPermissions"])
	assert.Equal(t, 600, caps["appium:newCommandTimeout"])
	assert.NotContains(t, caps, "appium:platformVersion")
}
