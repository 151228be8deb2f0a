package tui

import "github.com/tobayashi-san/arch-appcenter/engine"

// OutputLineMsg carries one completed line of child process output.
type OutputLineMsg struct {
	Stream engine.Stream
	Text   string
}

// ProgressMsg reports batch progress as a percentage and a label.
type ProgressMsg struct {
	Percent int
	Label   string
}

// PasswordPromptMsg asks the user for the elevation password. A repeated
// prompt for the same request id means the previous answer failed
// validation.
type PasswordPromptMsg struct {
	RequestID string
	Attempt   int
}

// RunDoneMsg signals that a single execution finished.
type RunDoneMsg struct {
	Result engine.Result
}

// BatchDoneMsg signals that a batch finished.
type BatchDoneMsg struct {
	Job engine.BatchJob
}
