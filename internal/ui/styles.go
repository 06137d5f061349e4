package ui

import "github.com/charmbracelet/lipgloss"

// Color palette for the accord CLI
var (
	ColorCyan   = lipgloss.AdaptiveColor{Light: "#00CED1", Dark: "#00FFFF"}
	ColorGreen  = lipgloss.AdaptiveColor{Light: "#00A000", Dark: "#00FF00"}
	ColorYellow = lipgloss.AdaptiveColor{Light: "#FFD700", Dark: "#FFFF00"}
	ColorOrange = lipgloss.AdaptiveColor{Light: "#FF6B00", Dark: "#FF8C00"}
	ColorRed    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF0000"}
	ColorDim    = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#555555"}
)

// Base text styles
var (
	StyleBold = lipgloss.NewStyle().Bold(true)
	StyleDim  = lipgloss.NewStyle().Foreground(ColorDim)
)

// Colored text styles
var (
	StyleCyan   = lipgloss.NewStyle().Foreground(ColorCyan)
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleOrange = lipgloss.NewStyle().Foreground(ColorOrange)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
)

// Semantic styles
var (
	StyleHeader  = StyleBold.Copy().Foreground(ColorCyan)
	StyleSuccess = StyleBold.Copy().Foreground(ColorGreen)
	StyleWarning = StyleBold.Copy().Foreground(ColorYellow)
	StyleError   = StyleBold.Copy().Foreground(ColorOrange)
)

// Table styles
var (
	TableHeaderStyle = StyleBold.Copy().
				Foreground(ColorCyan).
				PaddingRight(2)

	TableCellStyle = lipgloss.NewStyle().
			PaddingRight(2)
)
