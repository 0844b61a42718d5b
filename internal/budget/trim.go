package budget

import "unicode/utf8"

// Feedback is the context sent back to generation after a failed attempt.
// Only Errors is ever shortened; Code and Task are load-bearing.
type Feedback struct {
	Code   string
	Errors string
	Task   string
}

// Len returns the combined length of all three fields in characters.
func (f Feedback) Len() int {
	return utf8.RuneCountInString(f.Code) + utf8.RuneCountInString(f.Errors) + utf8.RuneCountInString(f.Task)
}

// TrimReport describes what Trim did to a Feedback.
type TrimReport struct {
	Budget        int  // maxPromptTokens * charsPerToken
	Before        int  // combined length before trimming
	After         int  // combined length after trimming
	ErrorsRemoved int  // characters cut from the tail of Errors
	Dropped       bool // Errors was replaced with an empty string
}

// Trimmed reports whether anything was removed.
func (r TrimReport) Trimmed() bool {
	return r.ErrorsRemoved > 0
}

// OverBudget reports whether the result still exceeds the budget. This only
// happens when Code and Task alone are larger than the budget.
func (r TrimReport) OverBudget() bool {
	return r.After > r.Budget
}

// Trim keeps fb within maxPromptTokens*charsPerToken characters by cutting
// the tail of fb.Errors, or discarding it entirely when the excess is at
// least as long as the error text. Applying Trim to its own output is a no-op.
func Trim(fb Feedback, maxPromptTokens, charsPerToken int) (Feedback, TrimReport) {
	limit := maxPromptTokens * charsPerToken
	total := fb.Len()
	report := TrimReport{Budget: limit, Before: total, After: total}

	if total <= limit {
		return fb, report
	}

	excess := total - limit
	errLen := utf8.RuneCountInString(fb.Errors)

	if errLen > excess {
		fb.Errors = truncateRunes(fb.Errors, errLen-excess)
		report.ErrorsRemoved = excess
	} else {
		fb.Errors = ""
		report.ErrorsRemoved = errLen
		report.Dropped = errLen > 0
	}

	report.After = total - report.ErrorsRemoved
	return fb, report
}

// truncateRunes returns the first n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
