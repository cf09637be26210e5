package commands_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mdtask/internal/commands"
	"mdtask/internal/config"
	"mdtask/internal/exitcode"
)

func googleConfig(t *testing.T) *config.Config {
	t.Helper()
	s := config.DefaultSettings()
	s.Backend = config.BackendGoogleTasks
	return &config.Config{Dir: t.TempDir(), Settings: s}
}

func runAuth(t *testing.T, ctx context.Context, cmd commands.Command, cfg *config.Config) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(ctx, cfg, nil, nil, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// asanaAPI answers /users/me, accepting only the token "good".
func asanaAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"errors":[{"message":"Not Authorized"}]}`))
			return
		}
		if r.URL.Path != "/users/me" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"gid":"1","name":"Alice","email":"alice@example.com","workspaces":[{"gid":"ws1","name":"Acme"}]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginCommand_AsanaSavesToken(t *testing.T) {
	srv := asanaAPI(t)
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	cfg.Settings.APIEndpoint = srv.URL

	cmd := &commands.LoginCmd{}
	cmd.SetToken("good")
	stdout, stderr, code := runAuth(t, context.Background(), cmd, cfg)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "logged in as Alice\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	s, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.AccessToken != "good" {
		t.Errorf("token not saved, got %q", s.AccessToken)
	}
}

func TestLoginCommand_AsanaRejectedToken(t *testing.T) {
	srv := asanaAPI(t)
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	cfg.Settings.APIEndpoint = srv.URL

	cmd := &commands.LoginCmd{}
	cmd.SetToken("bad")
	stdout, stderr, code := runAuth(t, context.Background(), cmd, cfg)

	expectCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if _, err := os.Stat(cfg.SettingsPath()); !os.IsNotExist(err) {
		t.Error("a rejected token should not be saved")
	}
}

func TestLoginCommand_AsanaNoToken(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	stdout, stderr, code := runAuth(t, context.Background(), &commands.LoginCmd{}, cfg)

	expectCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "mdtask login --token") {
		t.Errorf("expected instructions, got %q", stderr)
	}
}

func TestLoginCommand_GoogleNoOAuthClient(t *testing.T) {
	cfg := googleConfig(t)
	stdout, stderr, code := runAuth(t, context.Background(), &commands.LoginCmd{}, cfg)

	expectCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, config.OAuthClientFile) {
		t.Errorf("expected message about %s, got %q", config.OAuthClientFile, stderr)
	}
}

func TestLoginCommand_GoogleNoRefreshToken(t *testing.T) {
	cfg := googleConfig(t)
	oauthClient := `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"]}}`
	if err := os.WriteFile(cfg.OAuthClientPath(), []byte(oauthClient), 0600); err != nil {
		t.Fatal(err)
	}
	token := `{"access_token":"test","token_type":"Bearer","expiry":"2020-01-01T00:00:00Z"}`
	if err := os.WriteFile(cfg.TokenPath(), []byte(token), 0600); err != nil {
		t.Fatal(err)
	}

	// Cancelled so the flow stops before waiting for the browser.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout, _, _ := runAuth(t, ctx, &commands.LoginCmd{}, cfg)
	if stdout == "already logged in\n" {
		t.Error("should not say 'already logged in' with token missing refresh_token")
	}
}

func TestLogoutCommand_GoogleOnlyRemovesToken(t *testing.T) {
	cfg := googleConfig(t)
	oauthPath := filepath.Join(cfg.Dir, config.OAuthClientFile)
	if err := os.WriteFile(oauthPath, []byte(`{"installed":{"client_id":"test","client_secret":"test"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.TokenPath(), []byte(`{"access_token":"test","refresh_token":"test"}`), 0600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runAuth(t, context.Background(), &commands.LogoutCmd{}, cfg)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if _, err := os.Stat(cfg.TokenPath()); !os.IsNotExist(err) {
		t.Error("token.json should have been deleted")
	}
	if _, err := os.Stat(oauthPath); err != nil {
		t.Error("oauth_client.json should NOT have been deleted")
	}
}

func TestLogoutCommand_AsanaClearsToken(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	cfg.Settings.AccessToken = "secret"
	cfg.Settings.TaskFolder = "Work"
	if err := cfg.SaveSettings(); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runAuth(t, context.Background(), &commands.LogoutCmd{}, cfg)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	s, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.AccessToken != "" {
		t.Error("access token should have been cleared")
	}
	if s.TaskFolder != "Work" {
		t.Errorf("other settings should be kept, got task folder %q", s.TaskFolder)
	}
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	for _, cfg := range []*config.Config{googleConfig(t), {Dir: t.TempDir(), Settings: config.DefaultSettings()}} {
		stdout, stderr, code := runAuth(t, context.Background(), &commands.LogoutCmd{}, cfg)

		expectCode(t, exitcode.Success, code, stderr)
		if stdout != "not logged in\n" {
			t.Errorf("%s: expected 'not logged in\\n', got %q", cfg.Settings.Backend, stdout)
		}

		cfg.Quiet = true
		stdout, _, _ = runAuth(t, context.Background(), &commands.LogoutCmd{}, cfg)
		if stdout != "" {
			t.Errorf("%s: expected no stdout in quiet mode, got %q", cfg.Settings.Backend, stdout)
		}
	}
}
