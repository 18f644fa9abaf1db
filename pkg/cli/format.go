// Package cli provides shared formatting helpers for the nfvpack CLI.
package cli

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (per no-color.org) or stdout is
// not a terminal.
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces colors on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return code + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return paint("\033[32m", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return paint("\033[33m", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return paint("\033[31m", s) }

// Bold wraps s in ANSI bold.
func Bold(s string) string { return paint("\033[1m", s) }

// Dim wraps s in ANSI dim.
func Dim(s string) string { return paint("\033[2m", s) }

// Severity colors an issue severity: errors red, warnings yellow.
func Severity(s string) string {
	switch s {
	case "error":
		return Red(s)
	case "warning":
		return Yellow(s)
	}
	return s
}

// Status renders a pass/fail marker.
func Status(ok bool) string {
	if ok {
		return Green("OK")
	}
	return Red("FAIL")
}

// DotPad pads name with dots to the given width.
// Example: DotPad("main.yaml", 20) → "main.yaml .........."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// Plural returns "n word" with an "s" appended unless n is 1.
func Plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

