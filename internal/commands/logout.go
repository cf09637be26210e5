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
	Register(&LogoutCmd{})
}

// LogoutCmd removes stored credentials. OAuth client files and other
// settings are left alone.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Remove stored credentials" }
func (c *LogoutCmd) Usage() string     { return "mdtask logout" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	var err error
	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		if !cfg.HasToken() {
			return notLoggedIn(cfg, out)
		}
		err = cfg.RemoveToken()
	default:
		if cfg.Settings.AccessToken == "" {
			return notLoggedIn(cfg, out)
		}
		cfg.Settings.AccessToken = ""
		err = cfg.SaveSettings()
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to remove credentials: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func notLoggedIn(cfg *config.Config, out io.Writer) int {
	if !cfg.Quiet {
		fmt.Fprintln(out, "not logged in")
	}
	return exitcode.Success
}
