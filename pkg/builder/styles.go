package builder

import "github.com/charmbracelet/lipgloss"

var (
	PrimaryColor = lipgloss.Color("39")  // Blue
	SuccessColor = lipgloss.Color("42")  // Green
	ErrorColor   = lipgloss.Color("196") // Red
	MutedColor   = lipgloss.Color("243") // Gray

	BaseStyle = lipgloss.NewStyle()

	TitleStyle = BaseStyle.
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	FieldNameStyle = BaseStyle.
			Bold(true)

	KindStyle = BaseStyle.
			Foreground(MutedColor)

	ValueStyle = BaseStyle.
			Foreground(SuccessColor)

	ErrorStyle = BaseStyle.
			Foreground(ErrorColor)

	HelpStyle = BaseStyle.
			Foreground(MutedColor).
			Padding(1, 1, 0, 1)
)
