package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// ToolRequest is the input handed to one collaborator task.
type ToolRequest struct {
	Task    string
	Input   string
	Options []string
	// OptionsTitle labels the options table, e.g. "Candidates".
	OptionsTitle string
	Now          time.Time
}

func formatOptionsSection(title string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	if title == "" {
		title = "Options"
	}
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("# %s:\n", title))
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("#", "Value")
	for i, opt := range options {
		_ = table.Append(strconv.Itoa(i+1), opt)
	}
	_ = table.Render()
	return buf.String()
}

func FormatToolRequest(req *ToolRequest) string {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	sections := []string{
		fmt.Sprintf("# Current Date:\n%s", now.Format(DateLayout)),
		fmt.Sprintf("# User input:\n%s", strings.TrimSpace(req.Input)),
	}
	if s := formatOptionsSection(req.OptionsTitle, req.Options); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}
