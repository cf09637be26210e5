package commands

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"strings"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/output"
	"mdtask/internal/prompt"
	"mdtask/internal/remote"
)

func init() {
	Register(&ImportCmd{})
}

// ImportCmd creates task files for the open tasks of a project.
type ImportCmd struct {
	all      bool
	prompter prompt.Prompter
}

// SetPrompter replaces the interactive project picker (for testing).
func (c *ImportCmd) SetPrompter(p prompt.Prompter) {
	c.prompter = p
}

// SetAll sets --all (for testing).
func (c *ImportCmd) SetAll(all bool) {
	c.all = all
}

func (c *ImportCmd) Name() string      { return "import" }
func (c *ImportCmd) Aliases() []string { return []string{"pull"} }
func (c *ImportCmd) Synopsis() string  { return "Create task files for a project's open tasks" }
func (c *ImportCmd) Usage() string     { return "mdtask import [--all] [project]" }
func (c *ImportCmd) NeedsAuth() bool   { return true }

func (c *ImportCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
}

func (c *ImportCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if c.all && len(args) > 0 {
		return usageError(errOut, c)
	}

	var projects []remote.Project
	switch {
	case c.all:
		all, err := client.Projects(ctx, "")
		if err != nil {
			return fail(errOut, err)
		}
		projects = all
	case len(args) > 0:
		p, err := resolveProject(ctx, client, strings.Join(args, " "))
		if err != nil {
			return fail(errOut, err)
		}
		projects = []remote.Project{p}
	default:
		all, err := client.Projects(ctx, "")
		if err != nil {
			return fail(errOut, err)
		}
		p, err := c.picker().SelectProject(all)
		if err != nil {
			return fail(errOut, err)
		}
		projects = []remote.Project{p}
	}

	sess, err := openSession(cfg, client, NewLogger(cfg, errOut, slog.LevelWarn))
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	code := exitcode.Success
	for _, p := range projects {
		r, err := sess.engine.ImportProjectTasks(ctx, p)
		if !cfg.Quiet && (err == nil || len(r.Created) > 0) {
			output.FormatImportResult(out, p.Name, r)
		}
		if err != nil {
			code = fail(errOut, err)
		}
	}
	return code
}

func (c *ImportCmd) picker() prompt.Prompter {
	if c.prompter != nil {
		return c.prompter
	}
	return prompt.Huh{}
}
