package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mdtask/internal/cli"
	"mdtask/internal/commands"
	"mdtask/internal/config"
	"mdtask/internal/exitcode"
	"mdtask/internal/remote"
	"mdtask/internal/testutil"
)

// testFactory returns a factory that hands out fake and counts its calls.
func testFactory(fake *testutil.FakeRemote, calls *int) cli.ClientFactory {
	return func(ctx context.Context, cfg *config.Config) (remote.Client, error) {
		*calls++
		return fake, nil
	}
}

func run(t *testing.T, d *cli.Dispatcher, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = d.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// configDir writes a settings file pointing the vault at a temp dir and
// returns the config dir.
func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "vaultDir: " + t.TempDir() + "\n"
	if err := os.WriteFile(filepath.Join(dir, config.SettingsFile), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	var calls int
	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeRemote(), &calls))

	_, stderr, code := run(t, d, "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if expected := "error: unknown command: unknowncmd\n"; stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	var calls int
	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeRemote(), &calls))

	_, stderr, code := run(t, d, "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if expected := "error: unknown command: --quiet\n"; stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpDoesNotNeedBackend(t *testing.T) {
	var calls int
	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeRemote(), &calls))

	stdout, stderr, code := run(t, d, "help", "--config", configDir(t))

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
	if calls != 0 {
		t.Errorf("factory should not be called for help, called %d times", calls)
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	stdout, _, code := run(t, d, "version", "--config", configDir(t))

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "mdtask 0.1.0\n" {
		t.Errorf("expected 'mdtask 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	_, stderr, code := run(t, d, "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if expected := "error: unknown flag: -unknown\n"; stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagNeedsArgument(t *testing.T) {
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	_, stderr, code := run(t, d, "create", "--project")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if expected := "error: flag needs an argument: -project\n"; stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_DefaultCommandSyncs(t *testing.T) {
	var calls int
	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeRemote(), &calls))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("MDTASK_VAULTDIR", t.TempDir())

	stdout, stderr, code := run(t, d)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "synced 0, skipped 0, failed 0\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if calls != 1 {
		t.Errorf("expected 1 factory call, got %d", calls)
	}
}

func TestDispatcher_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.SettingsFile), []byte("backend: trello\n"), 0600); err != nil {
		t.Fatal(err)
	}
	d := cli.NewDispatcher(commands.DefaultRegistry, nil)

	_, stderr, code := run(t, d, "version", "--config", dir)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "unknown backend") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_FactoryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", &remote.Error{Op: "New", Err: remote.ErrUnauthorized}, exitcode.AuthError},
		{"token file", errors.New("failed to read token.json: no such file"), exitcode.AuthError},
		{"other", errors.New("dial tcp: connection refused"), exitcode.BackendError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := cli.NewDispatcher(commands.DefaultRegistry, func(ctx context.Context, cfg *config.Config) (remote.Client, error) {
				return nil, tc.err
			})
			_, stderr, code := run(t, d, "projects", "--config", configDir(t))
			if code != tc.want {
				t.Errorf("expected exit code %d, got %d (stderr %q)", tc.want, code, stderr)
			}
		})
	}
}

func TestDispatcher_QuietFlag(t *testing.T) {
	var calls int
	d := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeRemote(), &calls))

	stdout, _, code := run(t, d, "projects", "--config", configDir(t), "--quiet")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
}

func TestNewClient_GoogleNotLoggedIn(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	cfg.Settings.Backend = config.BackendGoogleTasks

	_, err := cli.NewClient(context.Background(), cfg)
	if !remote.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestNewClient_AsanaNeedsToken(t *testing.T) {
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}

	_, err := cli.NewClient(context.Background(), cfg)
	if !remote.IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}

	cfg.Settings.AccessToken = "tok"
	c, err := cli.NewClient(context.Background(), cfg)
	if err != nil || c == nil {
		t.Errorf("expected a client, got %v, %v", c, err)
	}
}
