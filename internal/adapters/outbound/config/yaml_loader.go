// Package config loads .vibeheal.yaml and environment overrides into a
// domain.Config.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// FileName is the config file looked up in the working directory.
const FileName = ".vibeheal.yaml"

const maxConfigFileSize = 1024 * 1024

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"SONARQUBE_URL":            "sonarqube.url",
	"SONARQUBE_TOKEN":          "sonarqube.token",
	"SONARQUBE_USERNAME":       "sonarqube.username",
	"SONARQUBE_PASSWORD":       "sonarqube.password",
	"SONARQUBE_PROJECT_KEY":    "sonarqube.project_key",
	"AI_TOOL":                  "ai_tool",
	"AIDER_MODEL":              "aider.model",
	"AIDER_API_KEY":            "aider.api_key",
	"AIDER_API_BASE":           "aider.api_base",
	"CODE_CONTEXT_LINES":       "fix.code_context_lines",
	"INCLUDE_RULE_DESCRIPTION": "fix.include_rule_description",
	"VIBEHEAL_FIX_TIMEOUT":     "fix.timeout",
	"VIBEHEAL_SCANNER":         "analysis.scanner",
	"VIBEHEAL_LOG_LEVEL":       "log.level",
	"VIBEHEAL_LOG_FORMAT":      "log.format",
}

// Loader reads configuration with precedence env > file > defaults.
type Loader struct {
	lookupEnv bool
}

// New creates a Loader that applies environment overrides.
func New() *Loader { return &Loader{lookupEnv: true} }

// NewFileOnly creates a Loader that ignores the environment.
func NewFileOnly() *Loader { return &Loader{} }

// Load reads path, or FileName in dir when path is empty. A missing default
// file is not an error; a missing explicit path is. The result is
// normalized but not validated, so commands that only read local state can
// run without server credentials.
func (l *Loader) Load(dir, path string) (domain.Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, FileName)
	}

	k := koanf.New(".")

	data, err := readConfigFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return domain.Config{}, err
	default:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return domain.Config{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}

	if l.lookupEnv {
		provider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
			mapped, ok := envKeys[key]
			if !ok || value == "" {
				return "", nil
			}
			return mapped, value
		})
		if err := k.Load(provider, nil); err != nil {
			return domain.Config{}, fmt.Errorf("loading environment: %w", err)
		}
	}

	cfg := domain.DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg.Normalize(), nil
}

// LoadValid is Load followed by Validate.
func (l *Loader) LoadValid(dir, path string) (domain.Config, error) {
	cfg, err := l.Load(dir, path)
	if err != nil {
		return domain.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}
	return data, nil
}
