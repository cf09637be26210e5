package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
	"mdtask/internal/scheduler"
	"mdtask/internal/server"
	"mdtask/internal/syncqueue"
	"mdtask/internal/vault"
)

// drainTimeout bounds how long shutdown waits for queued syncs.
const drainTimeout = 30 * time.Second

func init() {
	Register(&WatchCmd{})
}

// WatchCmd runs until interrupted: it syncs task files when they are saved,
// polls on the configured interval, follows renames and deletes, and serves
// the local API.
type WatchCmd struct {
	listen string
	noAPI  bool
}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return []string{"daemon"} }
func (c *WatchCmd) Synopsis() string  { return "Sync on file changes and on a timer" }
func (c *WatchCmd) Usage() string     { return "mdtask watch [--listen <addr>] [--no-api]" }
func (c *WatchCmd) NeedsAuth() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.listen, "listen", "", "")
	fs.BoolVar(&c.noAPI, "no-api", false, "")
}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, c)
	}
	logger := NewLogger(cfg, errOut, slog.LevelInfo)
	sess, err := openSession(cfg, client, logger)
	if err != nil {
		return fail(errOut, err)
	}
	defer sess.Close()

	watcher, err := vault.NewWatcher(sess.vault, logger)
	if err != nil {
		return fail(errOut, fmt.Errorf("watch vault: %w", err))
	}

	// Queued syncs outlive the interrupt so edits saved just before it
	// still reach the backend.
	queue := syncqueue.New(context.WithoutCancel(ctx), logger)
	sched := scheduler.New(sess.engine, sess.vault, queue, scheduler.NewRealTimer(), logger)
	sched.Start(schedulerSettings(cfg.Settings))
	if n, err := sched.TrackAll(); err != nil {
		logger.Warn("some task files not tracked", "tracked", n, "err", err)
	} else {
		logger.Debug("task files tracked", "count", n)
	}

	if err := config.WatchSettings(cfg.SettingsPath(), func(s config.Settings, err error) {
		if err != nil {
			logger.Warn("settings not reloaded", "err", err)
			return
		}
		logger.Info("settings reloaded")
		sched.Update(schedulerSettings(s))
	}); err != nil {
		logger.Debug("settings not watched", "err", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := make(chan error, 2)
	running := 1
	go func() {
		errCh <- watcher.Run(runCtx, func(ev vault.Event) {
			logger.Debug("file event", "kind", ev.Kind, "path", ev.Path)
			switch ev.Kind {
			case vault.Modified:
				sched.FileModified(ev.Path)
			case vault.Renamed:
				sched.FileRenamed(ev.Path, ev.OldPath)
			case vault.Deleted:
				sched.FileDeleted(ev.Path)
			}
		})
	}()
	if !c.noAPI {
		addr := c.listen
		if addr == "" {
			addr = cfg.Settings.ListenAddr
		}
		if !cfg.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		api := server.New(sess.engine, sched, queue, client, logger)
		running++
		go func() {
			errCh <- api.ListenAndServe(runCtx, addr)
		}()
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "watching %s\n", sess.vault.Root())
	}

	// The first goroutine to return ends the others.
	err = <-errCh
	stop()
	for i := 1; i < running; i++ {
		if e := <-errCh; err == nil {
			err = e
		}
	}

	sched.Stop()
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if werr := queue.Wait(drainCtx); werr != nil {
		logger.Warn("queue not drained", "pending", queue.Len(), "err", werr)
	}
	queue.Close()

	if err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}
