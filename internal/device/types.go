// Package device discovers iOS simulators and Android devices on the host.
package device

import "fmt"

// Platform identifies a mobile OS family.
type Platform string

const (
	IOS     Platform = "ios"
	Android Platform = "android"
)

// Preference is the platform scope requested by a caller.
type Preference string

const (
	PreferAuto    Preference = "auto"
	PreferIOS     Preference = Preference(IOS)
	PreferAndroid Preference = Preference(Android)
)

// ParsePreference accepts "ios", "android", "auto" or the empty string (auto).
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case "", PreferAuto:
		return PreferAuto, nil
	case PreferIOS, PreferAndroid:
		return Preference(s), nil
	}
	return "", fmt.Errorf("unknown platform %q (supported: ios, android, auto)", s)
}

// Platforms expands the preference into the platforms to search, in
// priority order.
func (p Preference) Platforms() []Platform {
	switch p {
	case PreferIOS:
		return []Platform{IOS}
	case PreferAndroid:
		return []Platform{Android}
	default:
		return []Platform{IOS, Android}
	}
}

// Kind distinguishes virtual from physical devices.
type Kind string

const (
	KindSimulator Kind = "simulator"
	KindEmulator  Kind = "emulator"
	KindPhysical  Kind = "physical"
)

// Descriptor is a normalized record for one discoverable device.
type Descriptor struct {
	Platform  Platform `json:"platform"`
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	OSVersion string   `json:"osVersion,omitempty"` // empty when the host did not report a parsable version
	Kind      Kind     `json:"kind"`
	APILevel  string   `json:"apiLevel,omitempty"` // android only
	State     string   `json:"state,omitempty"`
	RuntimeID string   `json:"runtimeId,omitempty"` // ios only
}

// String returns a display string for the device.
func (d Descriptor) String() string {
	v := d.OSVersion
	if v == "" {
		v = "unknown version"
	}
	return fmt.Sprintf("%s (%s %s, %s, %s)", d.Name, d.Platform, v, d.Kind, d.ID)
}
