package ui

import "github.com/charmbracelet/lipgloss"

var (
	Primary = lipgloss.Color("#7C3AED")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Danger  = lipgloss.Color("#EF4444")
	Info    = lipgloss.Color("#3B82F6")

	TextPrimary = lipgloss.AdaptiveColor{Light: "#171717", Dark: "#FAFAFA"}
	TextMuted   = lipgloss.AdaptiveColor{Light: "#737373", Dark: "#737373"}
	Border      = lipgloss.AdaptiveColor{Light: "#D4D4D4", Dark: "#333333"}
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(1, 3)

	SlotStyle = lipgloss.NewStyle().
			Foreground(TextPrimary).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			MarginTop(1)

	UserStyle = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailureTitleStyle = lipgloss.NewStyle().
				Foreground(Danger).
				Bold(true)

	FailureDetailStyle = lipgloss.NewStyle().
				Foreground(TextMuted)

	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)
)

func badgeStyle(color lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(color).
		Bold(true).
		Padding(0, 1)
}
