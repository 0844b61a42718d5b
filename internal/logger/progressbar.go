package logger

import (
	"fmt"
	"strings"
)

// AttemptBar renders how far a task is through its attempt budget.
type AttemptBar struct {
	current     int
	total       int
	width       int
	enableColor bool
}

// NewAttemptBar creates a bar for total attempts drawn width characters wide.
func NewAttemptBar(total, width int, enableColor bool) *AttemptBar {
	if width < 1 {
		width = 10
	}
	return &AttemptBar{total: total, width: width, enableColor: enableColor}
}

// Update sets the current attempt.
func (b *AttemptBar) Update(current int) {
	b.current = current
}

// Percentage returns the share of the budget used (0-100).
func (b *AttemptBar) Percentage() int {
	if b.total <= 0 {
		return 0
	}
	perc := (b.current * 100) / b.total
	if perc > 100 {
		perc = 100
	}
	if perc < 0 {
		perc = 0
	}
	return perc
}

// Render returns the bar, e.g. "[===       ]". Cyan early in the budget,
// yellow once the last attempt is reached.
func (b *AttemptBar) Render() string {
	filled := (b.Percentage() * b.width) / 100
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", b.width-filled) + "]"

	if !b.enableColor {
		return bar
	}
	if b.current >= b.total {
		return fmt.Sprintf("\033[33m%s\033[0m", bar)
	}
	return fmt.Sprintf("\033[36m%s\033[0m", bar)
}
