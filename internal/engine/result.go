package engine

// StepResult describes the outcome of a single executed step.
type StepResult struct {
	Index       int     `json:"index"`
	Tool        *string `json:"tool"` // nil when validation failed before resolution
	Description string  `json:"description"`
	Succeeded   bool    `json:"succeeded"`
	Payload     any     `json:"payload"`
	Error       *string `json:"error"`
	ErrorType   string  `json:"error_type,omitempty"`
	DurationMS  int64   `json:"duration_ms"`
}

// Report is the aggregate outcome of one workflow run.
type Report struct {
	RunID          string       `json:"run_id,omitempty"`
	Succeeded      bool         `json:"succeeded"`
	StepCount      int          `json:"step_count"`
	CompletedCount int          `json:"completed_count"`
	HaltedAtIndex  *int         `json:"halted_at_index"`
	Results        []StepResult `json:"results"`
	DurationMS     int64        `json:"duration_ms"`
	Error          *string      `json:"error"`
}

// ErrorMessage returns the run error, or "" when the run succeeded.
func (r *Report) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

func failedReport(msg string) *Report {
	return &Report{
		Results: []StepResult{},
		Error:   &msg,
	}
}

func strPtr(s string) *string { return &s }
