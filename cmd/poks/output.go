package main

import "github.com/fatih/color"

// outputStyle holds the colored marks and headers the CLI prints
// status lines with.
type outputStyle struct {
	successMark string
	skipMark    string
	failMark    string
	header      *color.Color
	success     *color.Color
	fail        *color.Color
}

func newOutputStyle() *outputStyle {
	return &outputStyle{
		successMark: color.New(color.FgGreen).Sprint("✓"),
		skipMark:    color.New(color.FgYellow).Sprint("-"),
		failMark:    color.New(color.FgRed).Sprint("✗"),
		header:      color.New(color.FgCyan, color.Bold),
		success:     color.New(color.FgGreen, color.Bold),
		fail:        color.New(color.FgRed, color.Bold),
	}
}
