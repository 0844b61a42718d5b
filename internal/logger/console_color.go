package logger

import (
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/fixloop/internal/models"
)

// colorScheme defines consistent colors for console output.
// Green: success, Red: failure, Yellow: warnings and exhaustion, Cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	bold    *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
}

// level returns the color for a log level tag.
func (s *colorScheme) level(level string) *color.Color {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return s.label
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return s.warn
	case "ERROR":
		return s.fail
	default:
		return color.New(color.Reset)
	}
}

// outcome returns the color for an attempt outcome.
func (s *colorScheme) outcome(o models.AttemptOutcome) *color.Color {
	switch o {
	case models.OutcomeSuccess:
		return s.success
	case models.OutcomeTimedOut:
		return s.warn
	default:
		return s.fail
	}
}

// state returns the color for a task end state.
func (s *colorScheme) state(st models.EndState) *color.Color {
	switch st {
	case models.StateSucceeded:
		return s.success
	case models.StateExhausted:
		return s.warn
	default:
		return s.fail
	}
}
