package device

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Detector enumerates devices per platform. It never fails: a missing host
// tool or unusable output yields an empty list and a warning.
type Detector struct {
	runner Runner
	xcrun  string
	adb    string
	logger *zap.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithBinaries overrides the xcrun and adb executables.
func WithBinaries(xcrun, adb string) DetectorOption {
	return func(d *Detector) {
		if xcrun != "" {
			d.xcrun = xcrun
		}
		if adb != "" {
			d.adb = adb
		}
	}
}

// NewDetector creates a Detector backed by runner.
func NewDetector(runner Runner, logger *zap.Logger, opts ...DetectorOption) *Detector {
	d := &Detector{
		runner: runner,
		xcrun:  "xcrun",
		adb:    "adb",
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ADB returns the adb executable in use.
func (d *Detector) ADB() string { return d.adb }

// Xcrun returns the xcrun executable in use.
func (d *Detector) Xcrun() string { return d.xcrun }

// DetectAll merges the candidates of every platform in the preference, in
// preference order.
func (d *Detector) DetectAll(ctx context.Context, pref Preference) []Descriptor {
	var out []Descriptor
	for _, p := range pref.Platforms() {
		out = append(out, d.Detect(ctx, p)...)
	}
	return out
}

// Detect lists the devices of one platform.
func (d *Detector) Detect(ctx context.Context, p Platform) []Descriptor {
	switch p {
	case IOS:
		return d.detectIOS(ctx)
	case Android:
		return d.detectAndroid(ctx)
	}
	return nil
}

func (d *Detector) detectIOS(ctx context.Context) []Descriptor {
	if _, err := d.runner.LookPath(d.xcrun); err != nil {
		d.logger.Warn("xcrun not found, skipping iOS detection", zap.Error(err))
		return nil
	}

	out, err := d.runner.Output(ctx, d.xcrun, "simctl", "list", "devices", "available", "-j")
	if err != nil {
		d.logger.Warn("simctl list devices failed", zap.Error(err))
		return nil
	}

	devices := ParseSimctlDevices(out)
	if len(devices) == 0 {
		d.logger.Info("no iOS simulators found")
	}
	return devices
}

func (d *Detector) detectAndroid(ctx context.Context) []Descriptor {
	if _, err := d.runner.LookPath(d.adb); err != nil {
		d.logger.Warn("adb not found, skipping Android detection", zap.Error(err))
		return nil
	}

	out, err := d.runner.Output(ctx, d.adb, "devices", "-l")
	if err != nil {
		d.logger.Warn("adb devices failed", zap.Error(err))
		return nil
	}

	var devices []Descriptor
	for _, e := range parseADBDevices(out) {
		if e.State != "device" {
			d.logger.Info("skipping android device", zap.String("serial", e.Serial), zap.String("state", e.State))
			continue
		}
		desc := androidDescriptor(e)
		if release := d.getprop(ctx, e.Serial, "ro.build.version.release"); release != "" {
			desc.OSVersion, _ = ParseAndroidVersion(release)
		}
		desc.APILevel = d.getprop(ctx, e.Serial, "ro.build.version.sdk")
		devices = append(devices, desc)
	}

	if len(devices) == 0 {
		d.logger.Info("no Android devices found")
	}
	return devices
}

func (d *Detector) getprop(ctx context.Context, serial, prop string) string {
	out, err := d.runner.Output(ctx, d.adb, "-s", serial, "shell", "getprop", prop)
	if err != nil {
		d.logger.Debug("getprop failed", zap.String("serial", serial), zap.String("prop", prop), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(string(out))
}
