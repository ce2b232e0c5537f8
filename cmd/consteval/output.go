package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// Exit codes.
const (
	exitFailure      = 1 // one or more scenarios failed
	exitCommandError = 2 // bad flags, unreadable or invalid scenario files
)

// exitError carries the process exit code for a command failure.
type exitError struct {
	Err     error
	Message string
	Code    int
}

func (e *exitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *exitError) Unwrap() error {
	return e.Err
}

func newExitError(code int, message string) *exitError {
	return &exitError{Code: code, Message: message}
}

func wrapExitError(code int, message string, err error) *exitError {
	return &exitError{Code: code, Message: message, Err: err}
}

// exitCode extracts the exit code from err, defaulting to exitFailure.
func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.Code
	}
	return exitFailure
}

var (
	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// styler colors output only when it goes to a terminal.
type styler struct {
	color bool
}

func newStyler(w io.Writer) styler {
	f, ok := w.(*os.File)
	return styler{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (s styler) render(st lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return st.Render(text)
}

// table renders rows under headers. Off a terminal the table has no
// borders and columns are separated by two spaces.
func (s styler) table(headers []string, rows [][]string) string {
	t := table.New().Headers(headers...).Rows(rows...)
	if !s.color {
		plain := lipgloss.NewStyle().PaddingRight(2)
		return t.BorderTop(false).
			BorderBottom(false).
			BorderLeft(false).
			BorderRight(false).
			BorderHeader(false).
			BorderColumn(false).
			StyleFunc(func(row, col int) lipgloss.Style { return plain }).
			String()
	}
	return t.Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
