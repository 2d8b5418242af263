package monitor

import "github.com/charmbracelet/lipgloss"

var (
	Teal     = lipgloss.Color("#0d7377")
	Amber    = lipgloss.Color("#e0a030")
	Rose     = lipgloss.Color("#d0506a")
	OffWhite = lipgloss.Color("#f8f7f4")
	Dim      = lipgloss.Color("#777777")

	TitleStyle = lipgloss.NewStyle().
			Background(Teal).
			Foreground(OffWhite).
			Bold(true).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Teal).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Dim)

	ValueStyle = lipgloss.NewStyle().
			Foreground(OffWhite)

	BarStyle = lipgloss.NewStyle().
			Foreground(Teal)

	NegativeStyle = lipgloss.NewStyle().
			Foreground(Rose)

	ActiveStyle = lipgloss.NewStyle().
			Foreground(Amber).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Dim).
			Italic(true)
)
