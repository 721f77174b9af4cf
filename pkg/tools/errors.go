package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ormasoftchile/imgtest/pkg/failure"
)

// toolError builds the failure for a nonzero exit. The message is the
// "title" of a structured JSON error on stdout when there is one, otherwise
// stderr followed by stdout. The raw output is always kept as detail.
func toolError(tool string, res *CommandResult) *failure.Error {
	raw := rawOutput(res)
	msg := structuredTitle(res.Stdout)
	if msg == "" {
		msg = raw
	}
	if msg == "" {
		msg = fmt.Sprintf("%s: exit status %d", tool, res.ExitCode)
	}
	return failure.New(failure.ExternalTool, msg).
		WithDetail(fmt.Sprintf("%s exit status %d\n%s", tool, res.ExitCode, raw))
}

// structuredTitle returns the non-empty "title" string of a JSON object on
// stdout, or "".
func structuredTitle(stdout []byte) string {
	var doc struct {
		Title any `json:"title"`
	}
	if err := json.Unmarshal(stdout, &doc); err != nil {
		return ""
	}
	title, _ := doc.Title.(string)
	return strings.TrimSpace(title)
}

func rawOutput(res *CommandResult) string {
	return strings.TrimSpace(string(res.Stderr) + string(res.Stdout))
}
