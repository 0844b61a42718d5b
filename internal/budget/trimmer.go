package budget

// TrimLogger receives a report whenever feedback had to be shortened.
type TrimLogger interface {
	LogFeedbackTrimmed(report TrimReport)
}

// Trimmer applies Trim with a fixed token budget.
type Trimmer struct {
	maxPromptTokens int
	charsPerToken   int
	logger          TrimLogger // can be nil
}

// NewTrimmer creates a Trimmer for the given prompt token budget.
func NewTrimmer(maxPromptTokens, charsPerToken int, logger TrimLogger) *Trimmer {
	return &Trimmer{
		maxPromptTokens: maxPromptTokens,
		charsPerToken:   charsPerToken,
		logger:          logger,
	}
}

// Budget returns the character budget enforced by the trimmer.
func (t *Trimmer) Budget() int {
	return t.maxPromptTokens * t.charsPerToken
}

// Trim shortens fb to fit the budget, logging when something was removed.
func (t *Trimmer) Trim(fb Feedback) Feedback {
	out, report := Trim(fb, t.maxPromptTokens, t.charsPerToken)
	if report.Trimmed() && t.logger != nil {
		t.logger.LogFeedbackTrimmed(report)
	}
	return out
}
