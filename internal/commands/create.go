package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mdtask/internal/config"
	"mdtask/internal/engine"
	"mdtask/internal/exitcode"
	"mdtask/internal/prompt"
	"mdtask/internal/remote"
)

var priorities = []string{"high", "medium", "low"}

func init() {
	Register(&CreateCmd{})
}

// CreateCmd creates a remote task and its file.
// With no arguments it asks for the task in a form.
type CreateCmd struct {
	project  string
	due      string
	priority string
	assignee string
	notes    string
	prompter prompt.Prompter
}

// SetPrompter replaces the interactive form (for testing).
func (c *CreateCmd) SetPrompter(p prompt.Prompter) {
	c.prompter = p
}

// SetProject sets --project (for testing).
func (c *CreateCmd) SetProject(project string) {
	c.project = project
}

// SetDue sets --due (for testing).
func (c *CreateCmd) SetDue(due string) {
	c.due = due
}

// SetPriority sets --priority (for testing).
func (c *CreateCmd) SetPriority(priority string) {
	c.priority = priority
}

func (c *CreateCmd) Name() string      { return "create" }
func (c *CreateCmd) Aliases() []string { return []string{"add"} }
func (c *CreateCmd) Synopsis() string  { return "Create a task and its file" }
func (c *CreateCmd) Usage() string {
	return "mdtask create [--project <name>] [--due <YYYY-MM-DD>] [--priority high|medium|low] [--assignee <id>] [--notes <text>] [name...]"
}
func (c *CreateCmd) NeedsAuth() bool { return true }

func (c *CreateCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.project, "project", "", "")
	fs.StringVar(&c.project, "p", "", "")
	fs.StringVar(&c.due, "due", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.assignee, "assignee", "", "")
	fs.StringVar(&c.notes, "notes", "", "")
}

func (c *CreateCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	selection := strings.Join(args, " ")
	opts := engine.NewTaskOptions{
		Notes:      c.notes,
		DueOn:      strings.TrimSpace(c.due),
		AssigneeID: c.assignee,
		Priority:   strings.ToLower(strings.TrimSpace(c.priority)),
	}

	var project *remote.Project
	if strings.TrimSpace(selection) == "" {
		projects, err := client.Projects(ctx, "")
		if err != nil {
			return fail(errOut, err)
		}
		in, err := c.form().NewTask(projects)
		if err != nil {
			return fail(errOut, err)
		}
		selection = in.Name
		opts.Notes = in.Notes
		opts.DueOn = in.DueOn
		opts.Priority = in.Priority
		for i := range projects {
			if projects[i].ID == in.ProjectID {
				project = &projects[i]
			}
		}
	} else if c.project != "" {
		p, err := resolveProject(ctx, client, c.project)
		if err != nil {
			return fail(errOut, err)
		}
		project = &p
	}

	if err := prompt.ValidateDate(opts.DueOn); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if opts.Priority != "" && !validPriority(opts.Priority) {
		fmt.Fprintf(errOut, "error: invalid priority %q (want %s)\n", opts.Priority, strings.Join(priorities, ", "))
		return exitcode.UserError
	}
	if project != nil {
		opts.ProjectID = project.ID
		opts.WorkspaceID = project.Workspace.ID
	}

	sess, err := openSession(cfg, client, NewLogger(cfg, errOut, slog.LevelWarn))
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	p, err := sess.engine.CreateFromSelection(ctx, selection, opts)
	if err != nil {
		return fail(errOut, err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, p)
	}
	return exitcode.Success
}

func (c *CreateCmd) form() prompt.Prompter {
	if c.prompter != nil {
		return c.prompter
	}
	return prompt.Huh{}
}

func validPriority(p string) bool {
	for _, v := range priorities {
		if p == v {
			return true
		}
	}
	return false
}
