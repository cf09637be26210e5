package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
)

func init() {
	Register(&OpenCmd{})
}

// OpenCmd prints the web link of a task.
type OpenCmd struct{}

func (c *OpenCmd) Name() string      { return "open" }
func (c *OpenCmd) Aliases() []string { return []string{"link"} }
func (c *OpenCmd) Synopsis() string  { return "Print the web link of a task" }
func (c *OpenCmd) Usage() string     { return "mdtask open <path>" }
func (c *OpenCmd) NeedsAuth() bool   { return true }

func (c *OpenCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *OpenCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		return usageError(errOut, c)
	}
	sess, err := openSession(cfg, client, NewLogger(cfg, errOut, slog.LevelWarn))
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	p, err := sess.vaultPath(args[0])
	if err != nil {
		return fail(errOut, err)
	}
	url, err := sess.engine.Permalink(ctx, p)
	if err != nil {
		return fail(errOut, err)
	}
	if url == "" {
		return fail(errOut, errors.New("task has no web link"))
	}
	fmt.Fprintln(out, url)
	return exitcode.Success
}
