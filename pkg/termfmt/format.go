// Package termfmt provides shared terminal formatting helpers for the
// broker's CLI tools: ANSI color, dot-padding, and column-aligned tables.
package termfmt

import (
	"strings"

	"github.com/l2fabric/l2fabric/pkg/model"
)

// ANSI color helpers

func Green(s string) string  { return "\033[32m" + s + "\033[0m" }
func Yellow(s string) string { return "\033[33m" + s + "\033[0m" }
func Red(s string) string    { return "\033[31m" + s + "\033[0m" }
func Bold(s string) string   { return "\033[1m" + s + "\033[0m" }
func Dim(s string) string    { return "\033[2m" + s + "\033[0m" }

// DotPad pads name with dots to the given width.
// Example: DotPad("boot-ssh", 30) → "boot-ssh ....................."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}

// StateColor renders a service state with the color a human operator would
// expect: green once a service is serving traffic, yellow mid-transition,
// red on failure, dim once released.
func StateColor(s model.State) string {
	switch s {
	case model.Active:
		return Green(s.String())
	case model.Failed:
		return Red(s.String())
	case model.Released:
		return Dim(s.String())
	case model.Establishing, model.Activating, model.Deactivating, model.Releasing:
		return Yellow(s.String())
	default:
		return s.String()
	}
}
