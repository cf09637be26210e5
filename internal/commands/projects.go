package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/output"
	"mdtask/internal/remote"
)

func init() {
	Register(&ProjectsCmd{})
}

// ProjectsCmd lists remote projects.
type ProjectsCmd struct {
	workspace string
}

func (c *ProjectsCmd) Name() string      { return "projects" }
func (c *ProjectsCmd) Aliases() []string { return nil }
func (c *ProjectsCmd) Synopsis() string  { return "List projects" }
func (c *ProjectsCmd) Usage() string     { return "mdtask projects [--workspace <id>]" }
func (c *ProjectsCmd) NeedsAuth() bool   { return true }

func (c *ProjectsCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.workspace, "workspace", "", "")
}

func (c *ProjectsCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, c)
	}
	projects, err := client.Projects(ctx, c.workspace)
	if err != nil {
		return fail(errOut, err)
	}
	if len(projects) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no projects found")
		}
		return exitcode.Success
	}
	output.FormatProjects(out, projects)
	return exitcode.Success
}
