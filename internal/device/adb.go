package device

import (
	"bufio"
	"bytes"
	"strings"
)

// adbEntry is one line of `adb devices -l`.
type adbEntry struct {
	Serial string
	State  string
	Model  string
}

// parseADBDevices reads `adb devices -l` output. Header, daemon chatter and
// blank lines are skipped.
func parseADBDevices(data []byte) []adbEntry {
	var entries []adbEntry

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		entry := adbEntry{Serial: fields[0], State: fields[1]}
		for _, f := range fields[2:] {
			if model, ok := strings.CutPrefix(f, "model:"); ok {
				entry.Model = strings.ReplaceAll(model, "_", " ")
			}
		}
		entries = append(entries, entry)
	}

	return entries
}

// ParseADBDevices returns android descriptors for devices in the "device"
// state. Versions are filled in separately since they need one getprop call
// per device.
func ParseADBDevices(data []byte) []Descriptor {
	var out []Descriptor
	for _, e := range parseADBDevices(data) {
		if e.State != "device" {
			continue
		}
		out = append(out, androidDescriptor(e))
	}
	return out
}

func androidDescriptor(e adbEntry) Descriptor {
	kind := KindPhysical
	if strings.HasPrefix(e.Serial, "emulator-") {
		kind = KindEmulator
	}
	name := e.Model
	if name == "" {
		name = e.Serial
	}
	return Descriptor{
		Platform: Android,
		ID:       e.Serial,
		Name:     name,
		Kind:     kind,
		State:    e.State,
	}
}
