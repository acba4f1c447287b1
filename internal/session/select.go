package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notexe/mcp-device/internal/device"
)

var (
	ErrSessionAlreadyActive     = errors.New("a session is already active")
	ErrSessionNotActive         = errors.New("no active session")
	ErrDeviceNotFound           = errors.New("device not found")
	ErrDeviceSelectionAmbiguous = errors.New("device selection is ambiguous")
	ErrConnection               = errors.New("failed to connect to automation server")
)

// Select picks the session device from candidates.
//
// With a name filter, candidates are restricted to the preference's
// platforms and the first case-insensitive substring match wins; strict
// rejects filters matching more than one device. Without a filter the
// first candidate of the requested platform is used, and auto prefers iOS
// over Android.
func Select(candidates []device.Descriptor, pref device.Preference, nameFilter string, strict bool) (device.Descriptor, error) {
	platforms := pref.Platforms()
	scoped := inPlatforms(candidates, platforms)

	if nameFilter != "" {
		needle := strings.ToLower(nameFilter)
		var matches []device.Descriptor
		for _, d := range scoped {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				matches = append(matches, d)
			}
		}

		switch {
		case len(matches) == 0:
			return device.Descriptor{}, fmt.Errorf("%w: no device matching %q on %s", ErrDeviceNotFound, nameFilter, joinPlatforms(platforms))
		case strict && len(matches) > 1:
			names := make([]string, len(matches))
			for i, m := range matches {
				names[i] = m.Name
			}
			return device.Descriptor{}, fmt.Errorf("%w: %q matches %s", ErrDeviceSelectionAmbiguous, nameFilter, strings.Join(names, ", "))
		}
		return matches[0], nil
	}

	for _, p := range platforms {
		for _, d := range scoped {
			if d.Platform == p {
				return d, nil
			}
		}
	}

	if pref == device.PreferAuto {
		return device.Descriptor{}, fmt.Errorf("%w: no iOS simulator or Android device detected", ErrDeviceNotFound)
	}
	return device.Descriptor{}, fmt.Errorf("%w: no %s device detected", ErrDeviceNotFound, pref)
}

func inPlatforms(candidates []device.Descriptor, platforms []device.Platform) []device.Descriptor {
	var out []device.Descriptor
	for _, d := range candidates {
		for _, p := range platforms {
			if d.Platform == p {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func joinPlatforms(platforms []device.Platform) string {
	s := make([]string, len(platforms))
	for i, p := range platforms {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
