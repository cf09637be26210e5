package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. MDTASK_ACCESSTOKEN.
const EnvPrefix = "MDTASK"

// Backends.
const (
	BackendAsana       = "asana"
	BackendGoogleTasks = "googletasks"
)

// Settings are the user-editable options.
type Settings struct {
	AccessToken             string `yaml:"accessToken" mapstructure:"accessToken"`
	TaskFolder              string `yaml:"taskFolder" mapstructure:"taskFolder"`
	TemplateFile            string `yaml:"templateFile" mapstructure:"templateFile"`
	PollIntervalMinutes     int    `yaml:"pollIntervalMinutes" mapstructure:"pollIntervalMinutes"`
	AutoSaveIntervalSeconds int    `yaml:"autoSaveIntervalSeconds" mapstructure:"autoSaveIntervalSeconds"`
	Backend                 string `yaml:"backend" mapstructure:"backend"`
	VaultDir                string `yaml:"vaultDir" mapstructure:"vaultDir"`
	APIEndpoint             string `yaml:"apiEndpoint" mapstructure:"apiEndpoint"`
	ListenAddr              string `yaml:"listenAddr" mapstructure:"listenAddr"`
	DailyFolder             string `yaml:"dailyFolder" mapstructure:"dailyFolder"`
}

// DefaultSettings returns the settings used for keys the file leaves out.
func DefaultSettings() Settings {
	return Settings{
		TaskFolder:          "Tasks",
		PollIntervalMinutes: 5,
		Backend:             BackendAsana,
		VaultDir:            ".",
		APIEndpoint:         "https://app.asana.com/api/1.0",
		ListenAddr:          "127.0.0.1:8737",
		DailyFolder:         "Daily Tasks",
	}
}

// PollInterval is the remote poll period. Zero disables polling.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMinutes) * time.Minute
}

// AutoSaveInterval is the debounce delay for local edits. Zero disables
// auto-save.
func (s Settings) AutoSaveInterval() time.Duration {
	return time.Duration(s.AutoSaveIntervalSeconds) * time.Second
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	var errs []error
	if s.PollIntervalMinutes < 0 {
		errs = append(errs, errors.New("pollIntervalMinutes must not be negative"))
	}
	if s.AutoSaveIntervalSeconds < 0 {
		errs = append(errs, errors.New("autoSaveIntervalSeconds must not be negative"))
	}
	if s.Backend != BackendAsana && s.Backend != BackendGoogleTasks {
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", s.Backend, BackendAsana, BackendGoogleTasks))
	}
	if strings.TrimSpace(s.TaskFolder) == "" {
		errs = append(errs, errors.New("taskFolder must not be empty"))
	}
	return errors.Join(errs...)
}

// Keys returns the setting names in file order.
func Keys() []string {
	var node yaml.Node
	_ = node.Encode(DefaultSettings())
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// Set assigns value to the setting named key. Key matching ignores case.
func (s *Settings) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "accesstoken":
		s.AccessToken = value
	case "taskfolder":
		s.TaskFolder = value
	case "templatefile":
		s.TemplateFile = value
	case "pollintervalminutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("pollIntervalMinutes: %w", err)
		}
		s.PollIntervalMinutes = n
	case "autosaveintervalseconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("autoSaveIntervalSeconds: %w", err)
		}
		s.AutoSaveIntervalSeconds = n
	case "backend":
		s.Backend = value
	case "vaultdir":
		s.VaultDir = value
	case "apiendpoint":
		s.APIEndpoint = value
	case "listenaddr":
		s.ListenAddr = value
	case "dailyfolder":
		s.DailyFolder = value
	default:
		known := Keys()
		sort.Strings(known)
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(known, ", "))
	}
	return s.Validate()
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	if s.AccessToken != "" {
		s.AccessToken = "********"
	}
	return s
}

// LoadSettings reads settings from path over DefaultSettings. A missing
// file is not an error. MDTASK_<KEY> environment variables override the
// file.
func LoadSettings(path string) (Settings, error) {
	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return DefaultSettings(), fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), err
	}
	return decode(v, path)
}

func newViper() *viper.Viper {
	defaults := DefaultSettings()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("accessToken", defaults.AccessToken)
	v.SetDefault("taskFolder", defaults.TaskFolder)
	v.SetDefault("templateFile", defaults.TemplateFile)
	v.SetDefault("pollIntervalMinutes", defaults.PollIntervalMinutes)
	v.SetDefault("autoSaveIntervalSeconds", defaults.AutoSaveIntervalSeconds)
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("vaultDir", defaults.VaultDir)
	v.SetDefault("apiEndpoint", defaults.APIEndpoint)
	v.SetDefault("listenAddr", defaults.ListenAddr)
	v.SetDefault("dailyFolder", defaults.DailyFolder)
	return v
}

func decode(v *viper.Viper, path string) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return DefaultSettings(), fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s to path as YAML. The file is replaced atomically and
// is readable by the owner only.
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}
