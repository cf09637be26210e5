package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
)

func init() {
	Register(&ConfigCmd{})
}

// ConfigCmd shows and edits the settings file.
type ConfigCmd struct{}

func (c *ConfigCmd) Name() string      { return "config" }
func (c *ConfigCmd) Aliases() []string { return nil }
func (c *ConfigCmd) Synopsis() string  { return "Show or change settings" }
func (c *ConfigCmd) Usage() string     { return "mdtask config [show | set <key> <value> | path]" }
func (c *ConfigCmd) NeedsAuth() bool   { return false }

func (c *ConfigCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ConfigCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "show":
		if len(args) > 0 {
			return usageError(errOut, c)
		}
		data, err := yaml.Marshal(cfg.Settings.Redacted())
		if err != nil {
			return fail(errOut, err)
		}
		out.Write(data)
	case "path":
		if len(args) > 0 {
			return usageError(errOut, c)
		}
		fmt.Fprintln(out, cfg.SettingsPath())
	case "set":
		if len(args) != 2 {
			return usageError(errOut, c)
		}
		if err := cfg.Settings.Set(args[0], args[1]); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		if err := cfg.SaveSettings(); err != nil {
			fmt.Fprintf(errOut, "error: failed to save settings: %v\n", err)
			return exitcode.UserError
		}
		if !cfg.Quiet {
			fmt.Fprintln(out, "ok")
		}
	default:
		return usageError(errOut, c)
	}
	return exitcode.Success
}
