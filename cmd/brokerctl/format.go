package main

import "github.com/l2fabric/l2fabric/pkg/termfmt"

// Color helpers — delegate to pkg/termfmt
func green(s string) string  { return termfmt.Green(s) }
func yellow(s string) string { return termfmt.Yellow(s) }
func red(s string) string    { return termfmt.Red(s) }
func bold(s string) string   { return termfmt.Bold(s) }

// dash returns s if non-empty, otherwise "-".
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
