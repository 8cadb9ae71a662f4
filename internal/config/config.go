package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/smokeprobe/internal/env"
	"github.com/loykin/smokeprobe/internal/harness"
	"github.com/loykin/smokeprobe/internal/logger"
	"github.com/loykin/smokeprobe/internal/probe"
	"github.com/loykin/smokeprobe/internal/process"
)

// EnvPrefix is the prefix for environment overrides, e.g. SMOKEPROBE_ATTEMPTS=10.
const EnvPrefix = "SMOKEPROBE"

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Attempts     int           `toml:"attempts" mapstructure:"attempts"`
	Interval     time.Duration `toml:"interval" mapstructure:"interval"`
	ProbeTimeout time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	StopWait     time.Duration `toml:"stop_wait" mapstructure:"stop_wait"`
	FailFast     bool          `toml:"fail_fast" mapstructure:"fail_fast"`

	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Log     LogConfig      `toml:"log" mapstructure:"log"`
	Metrics MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	History HistoryConfig  `toml:"history" mapstructure:"history"`
	Targets []TargetConfig `toml:"targets" mapstructure:"targets"`
}

// LogConfig holds the harness log level plus the default capture settings for targets.
type LogConfig struct {
	Level         string `toml:"level" mapstructure:"level"`
	logger.Config `mapstructure:",squash"`
}

type MetricsConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type TargetConfig struct {
	Name         string         `toml:"name" mapstructure:"name"`
	Command      string         `toml:"command" mapstructure:"command"`
	Args         []string       `toml:"args" mapstructure:"args"`
	WorkDir      string         `toml:"workdir" mapstructure:"workdir"`
	Env          []string       `toml:"env" mapstructure:"env"`
	URLs         []string       `toml:"urls" mapstructure:"urls"`
	Accept       []int          `toml:"accept" mapstructure:"accept"`
	ProbeTimeout time.Duration  `toml:"probe_timeout" mapstructure:"probe_timeout"`
	Log          *logger.Config `toml:"log" mapstructure:"log"`
}

// DefaultTargets mirrors the classic layout: a backend health endpoint that
// counts any liveness answer and a dev-server frontend on 5173 or 3000.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		{
			Name:    "backend",
			Command: "./run_app.sh",
			WorkDir: "backend",
			URLs:    []string{"http://localhost:8080/api/health"},
			Accept:  append([]int(nil), probe.BackendAccept...),
		},
		{
			Name:    "frontend",
			Command: "./run_frontend.sh",
			WorkDir: "frontend",
			URLs:    []string{"http://localhost:5173", "http://localhost:3000"},
			Accept:  append([]int(nil), probe.FrontendAccept...),
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("attempts", harness.DefaultAttempts)
	v.SetDefault("interval", harness.DefaultInterval)
	v.SetDefault("probe_timeout", probe.DefaultTimeout)
	v.SetDefault("stop_wait", harness.DefaultStopWait)
	v.SetDefault("fail_fast", false)
	v.SetDefault("use_os_env", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.tail_lines", logger.DefaultTailLines)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("history.dsn", "")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (TOML) on top of the built-in defaults. An empty path
// yields the defaults, still subject to SMOKEPROBE_* overrides.
func Load(path string) (*FileConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(fc.Targets) == 0 {
		fc.Targets = DefaultTargets()
	}
	if path != "" {
		fc.resolvePaths(filepath.Dir(path))
	}
	return &fc, nil
}

// resolvePaths makes relative work dirs and env files relative to the config file.
func (fc *FileConfig) resolvePaths(base string) {
	for i, p := range fc.EnvFiles {
		if p != "" && !filepath.IsAbs(p) {
			fc.EnvFiles[i] = filepath.Join(base, p)
		}
	}
	for i := range fc.Targets {
		wd := fc.Targets[i].WorkDir
		if wd != "" && !filepath.IsAbs(wd) {
			fc.Targets[i].WorkDir = filepath.Join(base, wd)
		}
	}
}

// Validate checks structural constraints. It does not touch the filesystem;
// missing work dirs are reported at launch time.
func (fc *FileConfig) Validate() error {
	var errs []error
	if fc.Attempts < 1 {
		errs = append(errs, fmt.Errorf("attempts must be >= 1, got %d", fc.Attempts))
	}
	if fc.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must be >= 0, got %s", fc.Interval))
	}
	if fc.ProbeTimeout < 0 {
		errs = append(errs, fmt.Errorf("probe_timeout must be >= 0, got %s", fc.ProbeTimeout))
	}
	seen := make(map[string]bool, len(fc.Targets))
	for i, t := range fc.Targets {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("target %d requires name", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate target name %q", name))
		}
		seen[name] = true
		if strings.TrimSpace(t.Command) == "" {
			errs = append(errs, fmt.Errorf("target %s requires command", name))
		}
		if len(t.URLs) == 0 {
			errs = append(errs, fmt.Errorf("target %s requires at least one url", name))
		}
		for _, code := range t.Accept {
			if code < 100 || code > 599 {
				errs = append(errs, fmt.Errorf("target %s: invalid accept status %d", name, code))
			}
		}
	}
	return errors.Join(errs...)
}

// GlobalEnv merges env_files (in order) and then the top-level env list.
func (fc *FileConfig) GlobalEnv() ([]string, error) {
	var out []string
	for _, p := range fc.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		out = append(out, pairs...)
	}
	return append(out, fc.Env...), nil
}

// Build turns the config into a harness with targets, timing and env set.
// Sink, reporter, logger and launcher are left for the caller.
func (fc *FileConfig) Build() (*harness.Harness, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	global, err := fc.GlobalEnv()
	if err != nil {
		return nil, err
	}
	e := env.New(fc.UseOSEnv)
	e.SetPairs(global)

	h := &harness.Harness{
		Attempts: fc.Attempts,
		Interval: fc.Interval,
		StopWait: fc.StopWait,
		FailFast: fc.FailFast,
		Env:      e,
	}
	for _, tc := range fc.Targets {
		t, err := fc.buildTarget(tc)
		if err != nil {
			return nil, err
		}
		h.Targets = append(h.Targets, t)
	}
	return h, nil
}

func (fc *FileConfig) buildTarget(tc TargetConfig) (harness.Target, error) {
	name := strings.TrimSpace(tc.Name)
	accept := tc.Accept
	if len(accept) == 0 {
		accept = probe.FrontendAccept
	}
	timeout := tc.ProbeTimeout
	if timeout <= 0 {
		timeout = fc.ProbeTimeout
	}
	check, err := probe.New(name, tc.URLs, accept, probe.WithTimeout(timeout))
	if err != nil {
		return harness.Target{}, err
	}
	logCfg := fc.Log.Config
	if tc.Log != nil {
		logCfg = logCfg.Merge(*tc.Log)
	}
	cmd := []string{tc.Command}
	if len(tc.Args) > 0 {
		cmd = append(cmd, tc.Args...)
	}
	return harness.Target{
		Name: name,
		Spec: process.Spec{
			Name:    name,
			Command: cmd,
			WorkDir: tc.WorkDir,
			Env:     tc.Env,
			Log:     logCfg,
		},
		Check: check,
	}, nil
}

// LoadEnvFile parses a simple .env file and returns "KEY=VALUE" entries in file order.
func LoadEnvFile(path string) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		if len(v) >= 2 && (v[0] == '"' && v[len(v)-1] == '"' || v[0] == '\'' && v[len(v)-1] == '\'') {
			v = v[1 : len(v)-1]
		}
		out = append(out, k+"="+v)
	}
	return out, nil
}
