// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"mdtask/internal/engine"
	"mdtask/internal/remote"
	"mdtask/internal/scheduler"
)

const (
	// Separator is the separator line for section headers.
	Separator = "------------"

	commentTimeLayout = "2006-01-02 15:04"
)

// FormatHeader formats a section header.
func FormatHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Separator)
	fmt.Fprintln(w, normalizeTitle(title))
	fmt.Fprintln(w, Separator)
}

// FormatProjects prints projects grouped under a header per workspace, in
// the order the workspaces first appear.
func FormatProjects(w io.Writer, projects []remote.Project) {
	var order []string
	groups := make(map[string][]remote.Project)
	for _, p := range projects {
		ws := p.Workspace.Name
		if _, ok := groups[ws]; !ok {
			order = append(order, ws)
		}
		groups[ws] = append(groups[ws], p)
	}
	for _, ws := range order {
		FormatHeader(w, ws)
		for _, p := range groups[ws] {
			fmt.Fprintf(w, "    %-20s  %s\n", p.ID, normalizeTitle(p.Name))
		}
	}
}

// FormatComments prints comments, one block per comment.
func FormatComments(w io.Writer, comments []remote.Comment) {
	for i, c := range comments {
		if i > 0 {
			fmt.Fprintln(w)
		}
		author := c.Author
		if strings.TrimSpace(author) == "" {
			author = "(unknown)"
		}
		fmt.Fprintf(w, "%s  %s\n", c.CreatedAt.Format(commentTimeLayout), author)
		for _, line := range strings.Split(strings.TrimRight(c.Text, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// FormatImportResult prints created files and a summary line.
func FormatImportResult(w io.Writer, project string, r engine.ImportResult) {
	for _, p := range r.Created {
		fmt.Fprintf(w, "created  %s\n", p)
	}
	fmt.Fprintf(w, "%s: %d created, %d already present\n", normalizeTitle(project), len(r.Created), len(r.Existing))
}

// FormatPollResult prints the counts of a sync run.
func FormatPollResult(w io.Writer, r scheduler.PollResult) {
	fmt.Fprintf(w, "synced %d, skipped %d, failed %d\n", r.Synced, r.Skipped, r.Failed)
}

// normalizeTitle normalizes a title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
