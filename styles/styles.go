package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	TITLE = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7d56f4"))

	INFO = lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#888888"))

	SUCCESS = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#28a745"))

	WARN = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f0ad4e"))

	ERROR = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ee4b2b"))

	SELECTED = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	DIR      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	PAGE     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// File renders a file name with its human readable size.
func File(name string, size uint64) string {
	return fmt.Sprintf("%s %s", name, INFO.Render(humanize.IBytes(size)))
}
