package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd prints usage.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "mdtask help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  mdtask                                             Sync every task file
  mdtask sync [common flags] [--changed] [path...]   Push task files to the backend
  mdtask watch [common flags] [--listen <addr>]      Sync on edits and on a timer
  mdtask import [common flags] [--all] [project]     Create files for a project's open tasks
  mdtask create [common flags] [--project <name>] [--due <date>] [--priority <p>] <name...>
  mdtask projects [common flags] [--workspace <id>]
  mdtask comments [common flags] [--write] <path>
  mdtask comment [common flags] <path> <text...>
  mdtask open [common flags] <path>
  mdtask daily [common flags]
  mdtask config [show | set <key> <value> | path]
  mdtask login [common flags] [--token <token>]
  mdtask logout [common flags]
  mdtask help
  mdtask version

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
