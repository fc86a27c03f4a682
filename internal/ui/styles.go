// Package ui holds terminal styles shared by the report and CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPass = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMute = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorHead = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle    = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle    = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle    = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMute)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorHead)
	BarStyle     = lipgloss.NewStyle().Foreground(ColorHead)
	KeyNameStyle = lipgloss.NewStyle().Width(30).Align(lipgloss.Right)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
)

// Pass renders s with a pass marker.
func Pass(s string) string { return PassStyle.Render(IconPass + " " + s) }

// Warn renders s with a warning marker.
func Warn(s string) string { return WarnStyle.Render(IconWarn + " " + s) }

// Fail renders s with a failure marker.
func Fail(s string) string { return FailStyle.Render(IconFail + " " + s) }
