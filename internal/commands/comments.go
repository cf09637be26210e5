package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/output"
	"mdtask/internal/remote"
)

func init() {
	Register(&CommentsCmd{})
	Register(&CommentCmd{})
}

// CommentsCmd shows the comments of a task, or writes them into its file.
type CommentsCmd struct {
	write bool
}

// SetWrite sets --write (for testing).
func (c *CommentsCmd) SetWrite(write bool) {
	c.write = write
}

func (c *CommentsCmd) Name() string      { return "comments" }
func (c *CommentsCmd) Aliases() []string { return nil }
func (c *CommentsCmd) Synopsis() string  { return "Show the comments of a task" }
func (c *CommentsCmd) Usage() string     { return "mdtask comments [--write] <path>" }
func (c *CommentsCmd) NeedsAuth() bool   { return true }

func (c *CommentsCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.write, "write", false, "")
	fs.BoolVar(&c.write, "w", false, "")
}

func (c *CommentsCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
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

	if c.write {
		n, err := sess.engine.PullComments(ctx, p)
		if err != nil {
			return fail(errOut, err)
		}
		if !cfg.Quiet {
			fmt.Fprintf(out, "wrote %d comments to %s\n", n, p)
		}
		return exitcode.Success
	}

	comments, err := sess.engine.Comments(ctx, p)
	if err != nil {
		return fail(errOut, err)
	}
	if len(comments) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no comments")
		}
		return exitcode.Success
	}
	output.FormatComments(out, comments)
	return exitcode.Success
}

// CommentCmd posts a comment on a task.
type CommentCmd struct{}

func (c *CommentCmd) Name() string      { return "comment" }
func (c *CommentCmd) Aliases() []string { return nil }
func (c *CommentCmd) Synopsis() string  { return "Comment on a task" }
func (c *CommentCmd) Usage() string     { return "mdtask comment <path> <text...>" }
func (c *CommentCmd) NeedsAuth() bool   { return true }

func (c *CommentCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CommentCmd) Run(ctx context.Context, cfg *config.Config, client remote.Client, args []string, out, errOut io.Writer) int {
	if len(args) < 2 {
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
	if err := sess.engine.AddComment(ctx, p, strings.Join(args[1:], " ")); err != nil {
		return fail(errOut, err)
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
