package protocol

import "fmt"

// Mode selects the top-level agent for a request.
type Mode string

const (
	ModePlan  Mode = "plan"
	ModeReact Mode = "react"
)

// OutputStyle hints how the final artifact should be rendered.
type OutputStyle string

const (
	StyleHTML    OutputStyle = "html"
	StyleDocs    OutputStyle = "docs"
	StyleTable   OutputStyle = "table"
	StyleDefault OutputStyle = ""
)

// RunRequest is the body of POST /agent/run.
type RunRequest struct {
	RequestID   string      `json:"requestId"`
	SessionID   string      `json:"sessionId"`
	Query       string      `json:"query"`
	Mode        Mode        `json:"mode"`
	OutputStyle OutputStyle `json:"outputStyle,omitempty"`
	Stream      bool        `json:"stream"`
}

// Validate checks the fields a handler cannot default.
func (r *RunRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	switch r.Mode {
	case ModePlan, ModeReact:
	case "":
		return fmt.Errorf("mode is required")
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	switch r.OutputStyle {
	case StyleHTML, StyleDocs, StyleTable, StyleDefault:
	default:
		return fmt.Errorf("unknown outputStyle %q", r.OutputStyle)
	}
	return nil
}
