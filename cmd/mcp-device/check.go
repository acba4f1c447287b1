package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/notexe/mcp-device/internal/appium"
	"github.com/notexe/mcp-device/internal/config"
	"github.com/notexe/mcp-device/internal/device"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(22)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			PaddingLeft(2)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

type checkResult int

const (
	checkOK checkResult = iota
	checkWarn
	checkFail
)

type checkLine struct {
	label  string
	result checkResult
	value  string
	hint   string
}

func (l checkLine) render() string {
	var value string
	switch l.result {
	case checkOK:
		value = okStyle.Render("✓ " + l.value)
	case checkWarn:
		value = warnStyle.Render("! " + l.value)
	default:
		value = failStyle.Render("✗ " + l.value)
	}

	line := labelStyle.Render(l.label) + value
	if l.hint != "" && l.result != checkOK {
		line += "\n" + hintStyle.Render("→ "+l.hint)
	}
	return line
}

// checkPrerequisites prints the host report and returns the exit code.
// Appium must answer and at least one platform toolchain must be present.
func checkPrerequisites(ctx context.Context, cfg *config.Config, detector *device.Detector, client *appium.Client) int {
	runner := device.ExecRunner{}
	var lines []checkLine

	xcrun := checkLine{label: "Xcode (xcrun)", hint: "Install: xcode-select --install"}
	_, xcrunErr := runner.LookPath(detector.Xcrun())
	if xcrunErr != nil {
		xcrun.result, xcrun.value = checkWarn, "not found, iOS disabled"
	} else {
		xcrun.result, xcrun.value = checkOK, "found"
	}
	lines = append(lines, xcrun)

	adb := checkLine{label: "Android (adb)", hint: "Install Android platform-tools and put adb on PATH"}
	_, adbErr := runner.LookPath(detector.ADB())
	if adbErr != nil {
		adb.result, adb.value = checkWarn, "not found, Android disabled"
	} else {
		adb.result, adb.value = checkOK, "found"
	}
	lines = append(lines, adb)

	statusCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	server := checkLine{label: "Appium server", hint: "Start it: appium --address 127.0.0.1 --port 4723"}
	st, err := client.Status(statusCtx)
	switch {
	case err != nil:
		server.result, server.value = checkFail, fmt.Sprintf("unreachable at %s", cfg.Appium.URL)
	case !st.Ready:
		server.result, server.value = checkFail, fmt.Sprintf("not ready: %s", st.Message)
	default:
		server.result, server.value = checkOK, strings.TrimSpace("ready "+st.Build.Version)
	}
	lines = append(lines, server)

	devices := detector.DetectAll(ctx, device.PreferAuto)
	var ios, android int
	for _, d := range devices {
		if d.Platform == device.IOS {
			ios++
		} else {
			android++
		}
	}
	found := checkLine{
		label: "Devices",
		value: fmt.Sprintf("%d iOS, %d Android", ios, android),
		hint:  `Boot a simulator (xcrun simctl boot "iPhone 15") or start an emulator`,
	}
	if len(devices) == 0 {
		found.result = checkWarn
	}
	lines = append(lines, found)

	toolchain := checkLine{label: "Platform toolchain"}
	if xcrunErr != nil && adbErr != nil {
		toolchain.result, toolchain.value = checkFail, "neither xcrun nor adb available"
	} else {
		toolchain.result, toolchain.value = checkOK, "available"
	}
	lines = append(lines, toolchain)

	rendered := make([]string, 0, len(lines)+2)
	rendered = append(rendered, titleStyle.Render("mcp-device prerequisites"), "")
	failed := false
	for _, l := range lines {
		rendered = append(rendered, l.render())
		if l.result == checkFail {
			failed = true
		}
	}
	fmt.Println(boxStyle.Render(strings.Join(rendered, "\n")))

	if failed {
		fmt.Println(failStyle.Render("Some prerequisites are missing. Install them and run --check again."))
		return 1
	}
	fmt.Println(okStyle.Render("All prerequisites met. mcp-device is ready to use."))
	return 0
}
