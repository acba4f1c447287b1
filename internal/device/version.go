package device

import (
	"regexp"
	"strconv"
)

var (
	iosMajorMinor = regexp.MustCompile(`iOS-(\d+)-(\d+)`)
	iosMajor      = regexp.MustCompile(`iOS-(\d+)`)
	androidRel    = regexp.MustCompile(`^\s*(\d+)(?:\.(\d+))?`)
)

// ParseIOSRuntimeVersion normalizes a simctl runtime identifier such as
// "com.apple.CoreSimulator.SimRuntime.iOS-17-2" to "17.2". A runtime with only
// a major component yields just the major. Anything else reports false.
func ParseIOSRuntimeVersion(runtime string) (string, bool) {
	if m := iosMajorMinor.FindStringSubmatch(runtime); m != nil {
		return m[1] + "." + m[2], true
	}
	if m := iosMajor.FindStringSubmatch(runtime); m != nil {
		return m[1], true
	}
	return "", false
}

// ParseAndroidVersion normalizes ro.build.version.release output ("14",
// "13.0.1") to major or major.minor.
func ParseAndroidVersion(release string) (string, bool) {
	m := androidRel.FindStringSubmatch(release)
	if m == nil {
		return "", false
	}
	if m[2] != "" {
		return m[1] + "." + m[2], true
	}
	return m[1], true
}

// runtimeVersionParts returns the numeric major and minor of an iOS runtime
// identifier. Missing parts are -1, so unparsable runtimes sort last.
func runtimeVersionParts(runtime string) (major, minor int) {
	major, minor = -1, -1
	if m := iosMajorMinor.FindStringSubmatch(runtime); m != nil {
		major, _ = strconv.Atoi(m[1])
		minor, _ = strconv.Atoi(m[2])
		return major, minor
	}
	if m := iosMajor.FindStringSubmatch(runtime); m != nil {
		major, _ = strconv.Atoi(m[1])
		return major, 0
	}
	return major, minor
}
