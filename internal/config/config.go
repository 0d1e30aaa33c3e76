// Package config loads task settings and platform credentials and writes the
// files the tasks produce.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = ".c8ytasks.yaml"

// NameEnv overrides the stored default microservice name.
const NameEnv = "MICROSERVICE_NAME"

// Settings holds the task defaults. It is loaded once per invocation.
type Settings struct {
	Microservice struct {
		Name        string `yaml:"name"`
		Manifest    string `yaml:"manifest"`
		BuildScript string `yaml:"build_script"`
	} `yaml:"microservice"`
	Lint struct {
		Tool   string   `yaml:"tool"`
		Scopes []string `yaml:"scopes"`
	} `yaml:"lint"`
	Build struct {
		Command []string `yaml:"command"`
	} `yaml:"build"`
	EnvFile  string `yaml:"env_file"`
	Platform struct {
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"platform"`
}

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	var s Settings
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Microservice.Name == "" {
		s.Microservice.Name = "python-ms"
	}
	if s.Microservice.Manifest == "" {
		s.Microservice.Manifest = "cumulocity.json"
	}
	if s.Microservice.BuildScript == "" {
		s.Microservice.BuildScript = "./build.sh"
	}
	if s.Lint.Tool == "" {
		s.Lint.Tool = "pylint"
	}
	if len(s.Lint.Scopes) == 0 {
		s.Lint.Scopes = []string{"c8y_api", "c8y_tk", "tests", "integration_tests", "samples"}
	}
	if len(s.Build.Command) == 0 {
		s.Build.Command = []string{"python", "-m", "build"}
	}
	if s.EnvFile == "" {
		s.EnvFile = ".env-ms"
	}
	if s.Platform.TimeoutSeconds <= 0 {
		s.Platform.TimeoutSeconds = 30
	}
	if s.Platform.RequestsPerSecond <= 0 {
		s.Platform.RequestsPerSecond = 5
	}
}

// Load reads YAML settings from path (DefaultPath when empty). A missing file
// yields Defaults. MICROSERVICE_NAME, when set, replaces the stored name.
func Load(path string) (Settings, error) {
	s, err := read(path)
	if err != nil {
		return s, err
	}
	if v := strings.TrimSpace(os.Getenv(NameEnv)); v != "" {
		s.Microservice.Name = v
	}
	return s, nil
}

func read(path string) (Settings, error) {
	var s Settings
	if path == "" {
		path = DefaultPath
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(content, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	return s, nil
}

// SaveName persists name as the default microservice identity in the settings
// file at path, creating the file if needed. Other settings are kept. The
// environment override is deliberately ignored so it is never written back.
func SaveName(path, name string) error {
	if path == "" {
		path = DefaultPath
	}
	s, err := read(path)
	if err != nil {
		return err
	}
	s.Microservice.Name = name
	out, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
