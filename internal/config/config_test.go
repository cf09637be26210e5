package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	cfg, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Dir != filepath.Join("/tmp/xdg", AppName) {
		t.Errorf("expected dir under XDG_CONFIG_HOME, got %q", cfg.Dir)
	}
	if cfg.IndexPath() != filepath.Join(cfg.Dir, IndexFile) {
		t.Errorf("unexpected index path %q", cfg.IndexPath())
	}
	if cfg.Settings != DefaultSettings() {
		t.Errorf("expected default settings, got %+v", cfg.Settings)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s != DefaultSettings() {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestLoadSettingsMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	content := "accessToken: abc\npollIntervalMinutes: 10\nautoSaveIntervalSeconds: 30\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.AccessToken != "abc" {
		t.Errorf("expected token abc, got %q", s.AccessToken)
	}
	if s.PollInterval() != 10*time.Minute {
		t.Errorf("expected 10m, got %v", s.PollInterval())
	}
	if s.AutoSaveInterval() != 30*time.Second {
		t.Errorf("expected 30s, got %v", s.AutoSaveInterval())
	}
	if s.TaskFolder != "Tasks" {
		t.Errorf("expected default task folder, got %q", s.TaskFolder)
	}
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("MDTASK_ACCESSTOKEN", "from-env")
	s, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.AccessToken != "from-env" {
		t.Errorf("expected token from env, got %q", s.AccessToken)
	}
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	if err := os.WriteFile(path, []byte("backend: trello\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(path); err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	cfg := &Config{Dir: filepath.Join(t.TempDir(), "nested"), Settings: DefaultSettings()}
	if err := cfg.Settings.Set("taskFolder", "Work/Tasks"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cfg.Settings.Set("AUTOSAVEINTERVALSECONDS", "15"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cfg.SaveSettings(); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	info, err := os.Stat(cfg.SettingsPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	loaded := &Config{Dir: cfg.Dir}
	if err := loaded.LoadSettings(); err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if loaded.Settings != cfg.Settings {
		t.Errorf("expected %+v, got %+v", cfg.Settings, loaded.Settings)
	}
}

func TestSetErrors(t *testing.T) {
	s := DefaultSettings()
	tests := []struct {
		key, value, want string
	}{
		{"nope", "x", "unknown setting"},
		{"pollIntervalMinutes", "soon", "pollIntervalMinutes"},
		{"pollIntervalMinutes", "-1", "must not be negative"},
		{"backend", "jira", "unknown backend"},
	}
	for _, tc := range tests {
		err := s.Set(tc.key, tc.value)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Set(%q, %q): expected error containing %q, got %v", tc.key, tc.value, tc.want, err)
		}
		s = DefaultSettings()
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != 10 || keys[0] != "accessToken" || keys[len(keys)-1] != "dailyFolder" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestRedacted(t *testing.T) {
	s := DefaultSettings()
	s.AccessToken = "secret"
	if got := s.Redacted().AccessToken; got == "secret" {
		t.Error("token not redacted")
	}
	if s.AccessToken != "secret" {
		t.Error("Redacted modified the original")
	}
}

func TestWatchSettingsReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFile)
	if err := os.WriteFile(path, []byte("pollIntervalMinutes: 5\n"), 0600); err != nil {
		t.Fatal(err)
	}

	changed := make(chan Settings, 4)
	err := WatchSettings(path, func(s Settings, err error) {
		if err == nil {
			changed <- s
		}
	})
	if err != nil {
		t.Fatalf("WatchSettings: %v", err)
	}

	if err := os.WriteFile(path, []byte("pollIntervalMinutes: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-changed:
			if s.PollIntervalMinutes == 7 {
				return
			}
		case <-deadline:
			t.Fatal("settings change not reported")
		}
	}
}

func TestWatchSettingsMissingFile(t *testing.T) {
	err := WatchSettings(filepath.Join(t.TempDir(), "missing.yaml"), func(Settings, error) {})
	if err == nil {
		t.Error("expected error for missing file")
	}
}
