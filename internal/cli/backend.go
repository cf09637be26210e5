package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"mdtask/internal/backend/asana"
	"mdtask/internal/backend/googletasks"
	"mdtask/internal/commands"
	"mdtask/internal/config"
	"mdtask/internal/remote"
)

// NewClient creates the client for the backend named in the settings.
// It is the ClientFactory used by the mdtask binary.
func NewClient(ctx context.Context, cfg *config.Config) (remote.Client, error) {
	s := cfg.Settings
	switch s.Backend {
	case config.BackendAsana:
		logger := commands.NewLogger(cfg, os.Stderr, slog.LevelWarn).With("backend", s.Backend)
		c, err := asana.New(ctx, s.AccessToken, s.APIEndpoint, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendGoogleTasks:
		if !cfg.HasOAuthClient() {
			return nil, &remote.Error{Op: "New", Err: fmt.Errorf("%w: %s not found in %s (run: mdtask login)", remote.ErrUnauthorized, config.OAuthClientFile, cfg.Dir)}
		}
		if !cfg.HasToken() {
			return nil, &remote.Error{Op: "New", Err: fmt.Errorf("%w: not logged in (run: mdtask login)", remote.ErrUnauthorized)}
		}
		c, err := googletasks.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}
