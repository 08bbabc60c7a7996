// Package ui prints human-readable command output to the terminal
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	colors           = term.IsTerminal(int(os.Stdout.Fd()))
	quiet  bool
)

// SetOutput redirects everything printed by this package
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if f, ok := w.(*os.File); ok {
		colors = term.IsTerminal(int(f.Fd()))
	} else {
		colors = false
	}
}

// SetColor forces colored output on or off
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colors = enabled
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = enabled
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes when
// color is enabled
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		enabled := colors
		mu.Unlock()
		if !enabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func emit(always bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, s)
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		emit(true, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		emit(true, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(false, fmt.Sprintf("%s: %s", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		emit(false, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		emit(false, Yellow(msg))
	}
}

// Field is one row of a PrintTable
type Field struct {
	Label string
	Value interface{}
}

// PrintTable prints fields as aligned label/value rows under a heading
func PrintTable(heading string, fields []Field) {
	width := 0
	for _, f := range fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	var b strings.Builder
	b.WriteString(Magenta(heading))
	for _, f := range fields {
		b.WriteString("\n  ")
		b.WriteString(Cyan(fmt.Sprintf("%-*s", width, f.Label)))
		b.WriteString("  ")
		b.WriteString(fmt.Sprint(f.Value))
	}
	emit(false, b.String())
}
