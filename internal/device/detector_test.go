package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	missing map[string]bool
	outputs map[string]string
	fail    map[string]bool
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	key := name + " " + strings.Join(args, " ")
	if f.fail[key] {
		return nil, errors.New("exit status 1")
	}
	out, ok := f.outputs[key]
	if !ok {
		return nil, errors.New("unexpected command: " + key)
	}
	return []byte(out), nil
}

func TestDetectMissingToolsYieldsEmpty(t *testing.T) {
	r := &fakeRunner{missing: map[string]bool{"xcrun": true, "adb": true}}
	d := NewDetector(r, zap.NewNop())

	assert.Empty(t, d.Detect(context.Background(), IOS))
	assert.Empty(t, d.Detect(context.Background(), Android))
	assert.Empty(t, d.DetectAll(context.Background(), PreferAuto))
}

func TestDetectCommandFailureYieldsEmpty(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"xcrun simctl list devices available -j": true}}
	d := NewDetector(r, zap.NewNop())

	assert.Empty(t, d.Detect(context.Background(), IOS))
}

func TestDetectAndroidReadsProps(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{
			"adb devices -l": adbOutput,
			"adb -s emulator-5554 shell getprop ro.build.version.release": "14\n",
			"adb -s emulator-5554 shell getprop ro.build.version.sdk":     "34\n",
			"adb -s R58M123ABC shell getprop ro.build.version.sdk":        "31\n",
		},
		fail: map[string]bool{
			"adb -s R58M123ABC shell getprop ro.build.version.release": true,
		},
	}
	d := NewDetector(r, zap.NewNop())

	devices := d.Detect(context.Background(), Android)
	require.Len(t, devices, 2)
	assert.Equal(t, "14", devices[0].OSVersion)
	assert.Equal(t, "34", devices[0].APILevel)
	assert.Equal(t, "", devices[1].OSVersion, "getprop failure leaves version unknown")
	assert.Equal(t, "31", devices[1].APILevel)
}

func TestDetectAllOrdersIOSFirst(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{
			"/opt/xcrun simctl list devices available -j": simctlJSON,
			"adb devices -l": "List of devices attached\nemulator-5554 device model:Pixel_7\n",
			"adb -s emulator-5554 shell getprop ro.build.version.release": "14",
			"adb -s emulator-5554 shell getprop ro.build.version.sdk":     "34",
		},
	}
	d := NewDetector(r, zap.NewNop(), WithBinaries("/opt/xcrun", ""))

	devices := d.DetectAll(context.Background(), PreferAuto)
	require.Len(t, devices, 4)
	assert.Equal(t, IOS, devices[0].Platform)
	assert.Equal(t, Android, devices[3].Platform)
	assert.Equal(t, "Pixel 7", devices[3].Name)
}
