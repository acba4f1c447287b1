package device

import (
	"cmp"
	"encoding/json"
	"sort"
	"strings"
)

// simDevice is one entry of `xcrun simctl list devices -j`.
type simDevice struct {
	UDID        string `json:"udid"`
	Name        string `json:"name"`
	State       string `json:"state"`
	IsAvailable bool   `json:"isAvailable"`
}

// simDeviceList represents the JSON output from simctl list devices.
type simDeviceList struct {
	Devices map[string][]simDevice `json:"devices"`
}

// ParseSimctlDevices turns simctl JSON into iOS descriptors. Non-iOS runtimes
// (watchOS, tvOS, xrOS) and unavailable devices are dropped. Malformed input
// yields nil.
//
// Booted simulators come first; the rest are ordered by runtime version,
// newest first, then name so repeated detection returns the same order.
func ParseSimctlDevices(data []byte) []Descriptor {
	var list simDeviceList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}

	var out []Descriptor
	for runtime, devs := range list.Devices {
		if !strings.Contains(runtime, "iOS") {
			continue
		}
		version, _ := ParseIOSRuntimeVersion(runtime)
		for _, d := range devs {
			if !d.IsAvailable || d.UDID == "" {
				continue
			}
			out = append(out, Descriptor{
				Platform:  IOS,
				ID:        d.UDID,
				Name:      d.Name,
				OSVersion: version,
				Kind:      KindSimulator,
				State:     d.State,
				RuntimeID: runtime,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].State == "Booted", out[j].State == "Booted"
		if bi != bj {
			return bi
		}
		if c := compareRuntimes(out[i].RuntimeID, out[j].RuntimeID); c != 0 {
			return c > 0 // newest runtime first
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// compareRuntimes orders runtime identifiers by numeric iOS version, falling
// back to the identifier string when versions are equal or unparsable.
func compareRuntimes(a, b string) int {
	amaj, amin := runtimeVersionParts(a)
	bmaj, bmin := runtimeVersionParts(b)
	if c := cmp.Compare(amaj, bmaj); c != 0 {
		return c
	}
	if c := cmp.Compare(amin, bmin); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
