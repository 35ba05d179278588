package job

import (
	"fmt"
	"strings"
)

// SyntaxError reports malformed bracket or flag tokens. Pos is the 0-based
// index of the offending token in the raw argument list, or -1 when the error
// concerns the end of input.
type SyntaxError struct {
	Pos     int
	Token   string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Pos < 0 {
		return "syntax error at end of arguments: " + e.Message
	}
	return fmt.Sprintf("syntax error at argument %d (%q): %s", e.Pos+1, e.Token, e.Message)
}

// ValidationError reports the first failing validation rule of one job.
type ValidationError struct {
	GroupIndex int
	Field      string
	Message    string
}

func (e ValidationError) Error() string {
	if e.GroupIndex == 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("group %d: %s: %s", e.GroupIndex, e.Field, e.Message)
}

// ValidationErrors collects one ValidationError per offending job.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d invalid jobs:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}
