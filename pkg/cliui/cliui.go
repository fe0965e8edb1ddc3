// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// styles, markdown rendering) for anygen CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	DimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	NameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	KeyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	HeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// Errorf prints a ✗ line to w.
func Errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", FailMark, fmt.Sprintf(format, args...))
}

// KV prints an aligned "key: value" row.
func KV(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s %s\n",
		KeyStyle.Render(fmt.Sprintf("%-14s", key+":")),
		ValueStyle.Render(fmt.Sprint(value)),
	)
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ReadSecret reads a line from f without echo when f is a terminal and
// falls back to a plain line read otherwise (e.g. piped input).
func ReadSecret(f *os.File) (string, error) {
	if IsTerminal(f) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}

	var line string
	if _, err := fmt.Fscanln(f, &line); err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return line, nil
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
