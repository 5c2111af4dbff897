// Package ui holds the terminal side of iscp: coloured status lines,
// interactive prompts and the progress display.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/byte3-it/iscp/transfer"
)

var (
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// Console prints styled status lines.
type Console struct {
	out io.Writer
}

// NewConsole writes to out, or stderr when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

func (c *Console) Banner(title string) {
	rule := strings.Repeat("=", lipgloss.Width(title)+4)
	fmt.Fprintln(c.out, bannerStyle.Render(rule))
	fmt.Fprintln(c.out, bannerStyle.Render("  "+title))
	fmt.Fprintln(c.out, bannerStyle.Render(rule))
}

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintln(c.out, infoStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.out, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.out, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

func (c *Console) Error(format string, args ...any) {
	fmt.Fprintln(c.out, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Summary prints the totals of a finished upload.
func (c *Console) Summary(remote string, s transfer.Sample) {
	rate := "n/a"
	if r := s.Rate(); r > 0 {
		rate = humanize.Bytes(uint64(r)) + "/s"
	}
	c.Success("Uploaded %s to %s", humanize.Bytes(s.BytesSent), remote)
	fmt.Fprintln(c.out, dimStyle.Render(fmt.Sprintf("  %s elapsed, %s average", s.Elapsed.Round(time.Millisecond), rate)))
}
