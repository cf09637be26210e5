package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/output"
	"mdtask/internal/remote"
	"mdtask/internal/scheduler"
	"mdtask/internal/syncqueue"
)

func init() {
	Register(&SyncCmd{})
}

// SyncCmd pushes local task files to the remote service and writes the
// confirmed state back.
type SyncCmd struct {
	changed bool
}

// SetChanged sets --changed (for testing).
func (c *SyncCmd) SetChanged(changed bool) {
	c.changed = changed
}

func (c *SyncCmd) Name() string      { return "sync" }
func (c *SyncCmd) Aliases() []string { return nil }
func (c *SyncCmd) Synopsis() string  { return "Sync task files with the remote service" }
func (c *SyncCmd) Usage() string     { return "mdtask sync [--changed] [path...]" }
func (c *SyncCmd) NeedsAuth() bool   { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.changed, "changed", false, "")
}

func (c *SyncCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	logger := NewLogger(cfg, errOut, slog.LevelWarn)
	sess, err := openSession(cfg, client, logger)
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	if len(args) == 0 {
		return c.syncAll(ctx, cfg, sess, out, errOut)
	}

	code := exitcode.Success
	for _, arg := range args {
		p, err := sess.vaultPath(arg)
		if err != nil {
			code = fail(errOut, err)
			continue
		}
		if _, err := sess.files.ReadTaskFile(p); err != nil {
			code = fail(errOut, err)
			continue
		}

		ran := true
		if c.changed {
			ran, err = sess.engine.SyncIfChanged(ctx, p)
		} else {
			err = sess.engine.SyncLocalToRemote(ctx, p)
		}
		if err != nil {
			code = fail(errOut, err)
			continue
		}
		if !cfg.Quiet {
			if ran {
				fmt.Fprintf(out, "synced  %s\n", p)
			} else {
				fmt.Fprintf(out, "unchanged  %s\n", p)
			}
		}
	}
	return code
}

// syncAll runs one poll through the sync queue, the same path the watch
// daemon uses.
func (c *SyncCmd) syncAll(ctx context.Context, cfg *config.Config, sess *session, out, errOut io.Writer) int {
	queue := syncqueue.New(ctx, sess.logger)
	defer queue.Close()

	sched := scheduler.New(sess.engine, sess.vault, queue, scheduler.NewRealTimer(), sess.logger)
	sched.Start(scheduler.Settings{TaskFolder: cfg.Settings.TaskFolder})
	defer sched.Stop()

	r, err := sched.PollNow(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	if !cfg.Quiet {
		output.FormatPollResult(out, r)
	}
	if r.Failed > 0 {
		fmt.Fprintf(errOut, "error: %d task files failed to sync\n", r.Failed)
		return exitcode.BackendError
	}
	return exitcode.Success
}
