// pkg/settings/settings.go
//
// Persistent operator preferences, loaded through viper so values can
// come from the config file or AMBERLOCK_* environment variables.

package settings

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Settings holds operator preferences for batch operations.
type Settings struct {
	Parallelism   int    `mapstructure:"parallelism"`
	DefaultLevel  string `mapstructure:"default_level"`
	DefaultMode   string `mapstructure:"default_mode"`
	EnableNRNX    bool   `mapstructure:"enable_nr_nx"`
	AuditLogPath  string `mapstructure:"audit_log_path"`
	VaultPath     string `mapstructure:"vault_path"`
	CheckpointDir string `mapstructure:"checkpoint_dir"`
}

// DataDir returns the per-user data directory for vaults, audit logs
// and checkpoints.
func DataDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "AmberLock")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".amberlock"
	}
	return filepath.Join(home, ".amberlock")
}

// Defaults returns the settings used when no config file exists.
func Defaults() Settings {
	dir := DataDir()
	return Settings{
		Parallelism:   4,
		DefaultLevel:  "High",
		DefaultMode:   "read-only",
		EnableNRNX:    false,
		AuditLogPath:  filepath.Join(dir, "operations.ndjson"),
		VaultPath:     filepath.Join(dir, "vault.bin"),
		CheckpointDir: filepath.Join(dir, "checkpoints"),
	}
}

// Validate rejects settings that would misbehave at batch time.
func (s Settings) Validate() error {
	if s.Parallelism < 1 || s.Parallelism > 64 {
		return cerr.Newf("parallelism %d out of range 1..64", s.Parallelism)
	}
	switch strings.ToLower(s.DefaultLevel) {
	case "medium", "high", "system":
	default:
		return cerr.Newf("unknown integrity level %q", s.DefaultLevel)
	}
	switch strings.ToLower(s.DefaultMode) {
	case "read-only", "seal":
	default:
		return cerr.Newf("unknown protect mode %q", s.DefaultMode)
	}
	if s.VaultPath == "" {
		return cerr.New("vault_path must not be empty")
	}
	if s.CheckpointDir == "" {
		return cerr.New("checkpoint_dir must not be empty")
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AMBERLOCK")
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("parallelism", d.Parallelism)
	v.SetDefault("default_level", d.DefaultLevel)
	v.SetDefault("default_mode", d.DefaultMode)
	v.SetDefault("enable_nr_nx", d.EnableNRNX)
	v.SetDefault("audit_log_path", d.AuditLogPath)
	v.SetDefault("vault_path", d.VaultPath)
	v.SetDefault("checkpoint_dir", d.CheckpointDir)
	return v
}

// DefaultPath is where Load looks when no explicit path is given.
func DefaultPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// Load reads settings from the given YAML file, falling back to
// defaults for anything unset. A missing file yields pure defaults.
func Load(path string) (Settings, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Settings{}, cerr.Wrapf(err, "read settings from %s", path)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, cerr.Wrap(err, "parse settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes settings as YAML, creating the parent directory.
func Save(path string, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return cerr.Wrap(err, "create settings directory")
	}

	v := newViper(path)
	v.Set("parallelism", s.Parallelism)
	v.Set("default_level", s.DefaultLevel)
	v.Set("default_mode", s.DefaultMode)
	v.Set("enable_nr_nx", s.EnableNRNX)
	v.Set("audit_log_path", s.AuditLogPath)
	v.Set("vault_path", s.VaultPath)
	v.Set("checkpoint_dir", s.CheckpointDir)

	if err := v.WriteConfigAs(path); err != nil {
		return cerr.Wrapf(err, "write settings to %s", path)
	}
	return nil
}
