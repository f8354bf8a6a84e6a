// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"

	"github.com/raincoat-go/raincoat/internal/issue"
	"github.com/raincoat-go/raincoat/internal/match"
)

// renderFinding formats f as its match header followed by the non-blank
// lines of its message, trimmed. The first message line is emphasised and
// diff lines are colored by their leading +, - or @.
func renderFinding(st styles, f match.Finding) string {
	var sb strings.Builder
	sb.WriteString(st.header.Render(f.Match.String()))
	sb.WriteString("\n")

	i := 0
	for line := range strings.Lines(strings.TrimSpace(f.Message)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sb.WriteString(renderLine(st, line, i))
		sb.WriteString("\n")
		i++
	}
	return sb.String()
}

func renderLine(st styles, line string, i int) string {
	style := st.plain
	switch line[0] {
	case '+':
		style = st.added
	case '-':
		style = st.removed
	case '@':
		style = st.hunk
	}
	if i == 0 {
		style = style.Bold(true)
	}
	return style.Render(line)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// issueGuide renders the troubleshooting guide matching err, or "" when
// none does.
func issueGuide(err error) string {
	i := issue.For(err)
	if i == nil {
		return ""
	}
	rendered, renderErr := i.Render("dark")
	if renderErr != nil {
		return string(i.MarkdownMsg())
	}
	return rendered
}
