package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorOrange = lipgloss.Color("#f97316")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorWhite  = lipgloss.Color("#f8fafc")
	colorDark   = lipgloss.Color("#1e293b")
	colorAlt    = lipgloss.Color("#0f172a")
)

var StyleHeader = lipgloss.NewStyle().
	Background(colorDark).
	Foreground(colorWhite).
	Bold(true).
	Padding(0, 1)

// StyleCard frames one stat tile.
var StyleCard = lipgloss.NewStyle().
	Background(colorAlt).
	Foreground(colorWhite).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorGray).
	Padding(0, 2).
	Align(lipgloss.Center)

var StyleBadge = lipgloss.NewStyle().
	Background(colorBlue).
	Foreground(colorWhite).
	Bold(true).
	Padding(0, 1)

var (
	StyleError = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	StyleDim   = lipgloss.NewStyle().Foreground(colorGray)
	StyleLabel = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// Connection state indicators.
var (
	StyleConnOpen    = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	StyleConnPending = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	StyleConnDown    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// SLA tier colors, least to most severe.
var (
	StyleTierGood     = lipgloss.NewStyle().Foreground(colorGreen)
	StyleTierWarning  = lipgloss.NewStyle().Foreground(colorYellow)
	StyleTierCritical = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	StyleTierOverdue  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)
