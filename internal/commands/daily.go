package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
)

func init() {
	Register(&DailyCmd{})
}

// DailyCmd writes the note listing the tasks due today.
type DailyCmd struct {
	now func() time.Time
}

// SetClock overrides the time source (for testing).
func (c *DailyCmd) SetClock(now func() time.Time) {
	c.now = now
}

func (c *DailyCmd) Name() string      { return "daily" }
func (c *DailyCmd) Aliases() []string { return nil }
func (c *DailyCmd) Synopsis() string  { return "Write today's due tasks to a note" }
func (c *DailyCmd) Usage() string     { return "mdtask daily" }
func (c *DailyCmd) NeedsAuth() bool   { return true }

func (c *DailyCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DailyCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, c)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}

	sess, err := openSession(cfg, client, NewLogger(cfg, errOut, slog.LevelWarn))
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	p, err := sess.engine.WriteDailyNote(ctx, now())
	if p != "" && !cfg.Quiet {
		fmt.Fprintln(out, p)
	}
	if err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}
