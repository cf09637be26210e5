package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"mdtask/internal/config"
	"mdtask/internal/engine"
	"mdtask/internal/exitcode"
	"mdtask/internal/index"
	"mdtask/internal/prompt"
	"mdtask/internal/remote"
	"mdtask/internal/scheduler"
	"mdtask/internal/taskfile"
	"mdtask/internal/vault"
)

var (
	errProjectNotFound  = errors.New("project not found")
	errAmbiguousProject = errors.New("ambiguous project name")
	errUsage            = errors.New("usage")
)

// NewLogger returns a text logger on w. level is raised to debug by --debug
// and lowered to errors only by --quiet.
func NewLogger(cfg *config.Config, w io.Writer, level slog.Level) *slog.Logger {
	switch {
	case cfg.Debug:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// session bundles what a command needs to work on task files.
type session struct {
	vault  *vault.Vault
	index  *index.Store
	files  *taskfile.Repository
	engine *engine.Engine
	logger *slog.Logger
}

func openSession(cfg *config.Config, client remote.Client, logger *slog.Logger) (*session, error) {
	s := cfg.Settings
	v, err := vault.New(s.VaultDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	idx, err := index.New(cfg.IndexPath())
	if err != nil {
		return nil, err
	}
	files := taskfile.New(v)
	eng := engine.New(client, files, v, idx, engine.Config{
		TaskFolder:   s.TaskFolder,
		TemplateFile: s.TemplateFile,
		DailyFolder:  s.DailyFolder,
	}, logger)
	return &session{vault: v, index: idx, files: files, engine: eng, logger: logger}, nil
}

func (s *session) Close() error {
	return s.index.Close()
}

// vaultPath converts a command-line path, relative to the working
// directory, to a vault path.
func (s *session) vaultPath(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	return s.vault.Rel(abs)
}

func schedulerSettings(s config.Settings) scheduler.Settings {
	return scheduler.Settings{
		TaskFolder:       s.TaskFolder,
		PollInterval:     s.PollInterval(),
		AutoSaveInterval: s.AutoSaveInterval(),
	}
}

// resolveProject finds a project by id, or by name ignoring case and
// surrounding space.
func resolveProject(ctx context.Context, client remote.Client, name string) (remote.Project, error) {
	name = strings.TrimSpace(name)
	projects, err := client.Projects(ctx, "")
	if err != nil {
		return remote.Project{}, err
	}

	var matches []remote.Project
	for _, p := range projects {
		if p.ID == name {
			return p, nil
		}
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return remote.Project{}, fmt.Errorf("%w: %s", errProjectNotFound, name)
	case 1:
		return matches[0], nil
	default:
		return remote.Project{}, fmt.Errorf("%w: %s (use the project id)", errAmbiguousProject, name)
	}
}

// fail prints err and returns the exit code for its kind.
func fail(errOut io.Writer, err error) int {
	var rerr *remote.Error
	switch {
	case remote.IsAuth(err):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, taskfile.ErrNotATaskFile),
		errors.Is(err, vault.ErrOutsideVault),
		errors.Is(err, engine.ErrEmptyName),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, errProjectNotFound),
		errors.Is(err, errAmbiguousProject),
		errors.Is(err, prompt.ErrNotInteractive),
		errors.Is(err, errUsage):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.As(err, &rerr):
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
}

// usageError reports wrong arguments.
func usageError(errOut io.Writer, cmd Command) int {
	fmt.Fprintf(errOut, "error: usage: %s\n", cmd.Usage())
	return exitcode.UserError
}
