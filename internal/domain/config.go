package domain

import (
	"fmt"
	"strings"
	"time"
)

// AIToolKind identifies a supported AI coding CLI.
type AIToolKind string

const (
	AIToolClaudeCode AIToolKind = "claude-code"
	AIToolAider      AIToolKind = "aider"
	AIToolGemini     AIToolKind = "gemini"
)

// ValidAIToolKinds lists supported tools in auto-detection order.
var ValidAIToolKinds = []AIToolKind{AIToolClaudeCode, AIToolAider, AIToolGemini}

// ParseAIToolKind validates a tool name. The empty string means auto-detect.
func ParseAIToolKind(s string) (AIToolKind, error) {
	k := AIToolKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return "", nil
	}
	if k == "claude" {
		return AIToolClaudeCode, nil
	}
	for _, v := range ValidAIToolKinds {
		if k == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q (valid: claude-code, aider, gemini)", ErrUnsupportedTool, s)
}

// Config is the resolved runtime configuration, loaded from .vibeheal.yaml
// and environment overrides.
type Config struct {
	SonarQube SonarQubeConfig `koanf:"sonarqube" yaml:"sonarqube" json:"sonarqube"`
	AITool    AIToolKind      `koanf:"ai_tool"   yaml:"ai_tool"   json:"ai_tool,omitempty"`
	Aider     AiderConfig     `koanf:"aider"     yaml:"aider"     json:"aider"`
	Fix       FixConfig       `koanf:"fix"       yaml:"fix"       json:"fix"`
	Analysis  AnalysisConfig  `koanf:"analysis"  yaml:"analysis"  json:"analysis"`
	HTTP      HTTPConfig      `koanf:"http"      yaml:"http"      json:"http"`
	Log       LogConfig       `koanf:"log"       yaml:"log"       json:"log"`
}

// SonarQubeConfig holds server coordinates and credentials.
type SonarQubeConfig struct {
	URL        string `koanf:"url"         yaml:"url"         json:"url"`
	Token      string `koanf:"token"       yaml:"token"       json:"token,omitempty"`
	Username   string `koanf:"username"    yaml:"username"    json:"username,omitempty"`
	Password   string `koanf:"password"    yaml:"password"    json:"password,omitempty"`
	ProjectKey string `koanf:"project_key" yaml:"project_key" json:"project_key"`
}

// UsesToken reports whether token auth takes precedence over basic auth.
func (c SonarQubeConfig) UsesToken() bool { return c.Token != "" }

// AiderConfig configures the Aider backend.
type AiderConfig struct {
	Model   string `koanf:"model"    yaml:"model"    json:"model,omitempty"`
	APIKey  string `koanf:"api_key"  yaml:"api_key"  json:"api_key,omitempty"`
	APIBase string `koanf:"api_base" yaml:"api_base" json:"api_base,omitempty"`
}

// FixConfig tunes single-issue fix attempts.
type FixConfig struct {
	Timeout                time.Duration `koanf:"timeout"                  yaml:"timeout"                  json:"timeout"`
	CodeContextLines       int           `koanf:"code_context_lines"       yaml:"code_context_lines"       json:"code_context_lines"`
	IncludeRuleDescription bool          `koanf:"include_rule_description" yaml:"include_rule_description" json:"include_rule_description"`
}

// AnalysisConfig tunes the scanner run and server-side task polling.
type AnalysisConfig struct {
	Scanner      string        `koanf:"scanner"       yaml:"scanner"       json:"scanner"`
	Timeout      time.Duration `koanf:"timeout"       yaml:"timeout"       json:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
}

// HTTPConfig tunes the tracker client.
type HTTPConfig struct {
	Timeout           time.Duration `koanf:"timeout"             yaml:"timeout"             json:"timeout"`
	MaxRetries        int           `koanf:"max_retries"         yaml:"max_retries"         json:"max_retries"`
	RequestsPerSecond float64       `koanf:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `koanf:"level"  yaml:"level"  json:"level"`
	Format string `koanf:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns a config with every tunable at its default and no
// server coordinates.
func DefaultConfig() Config {
	return Config{
		Fix: FixConfig{
			Timeout:                5 * time.Minute,
			CodeContextLines:       5,
			IncludeRuleDescription: true,
		},
		Analysis: AnalysisConfig{
			Scanner:      "sonar-scanner",
			Timeout:      5 * time.Minute,
			PollInterval: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 10,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Normalize trims trailing slashes from the server URL and lower-cases enums.
func (c Config) Normalize() Config {
	c.SonarQube.URL = strings.TrimRight(strings.TrimSpace(c.SonarQube.URL), "/")
	c.AITool = AIToolKind(strings.ToLower(string(c.AITool)))
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	return c
}

// Validate checks the config for missing or invalid values.
func (c Config) Validate() error {
	// 1. server coordinates
	if c.SonarQube.URL == "" {
		return &ConfigError{Field: "sonarqube.url", Reason: "is required (set SONARQUBE_URL)"}
	}
	if !strings.HasPrefix(c.SonarQube.URL, "http://") && !strings.HasPrefix(c.SonarQube.URL, "https://") {
		return &ConfigError{Field: "sonarqube.url", Reason: "must start with http:// or https://"}
	}
	if c.SonarQube.ProjectKey == "" {
		return &ConfigError{Field: "sonarqube.project_key", Reason: "is required (set SONARQUBE_PROJECT_KEY)"}
	}

	// 2. credentials: token, or username and password
	if c.SonarQube.Token == "" && (c.SonarQube.Username == "" || c.SonarQube.Password == "") {
		return &ConfigError{Field: "sonarqube", Reason: "either token or username and password must be set"}
	}

	// 3. ai tool must be known or empty
	if _, err := ParseAIToolKind(string(c.AITool)); err != nil {
		return &ConfigError{Field: "ai_tool", Reason: err.Error()}
	}

	// 4. durations and limits
	if c.Fix.Timeout <= 0 {
		return &ConfigError{Field: "fix.timeout", Reason: "must be positive"}
	}
	if c.Fix.CodeContextLines < 0 {
		return &ConfigError{Field: "fix.code_context_lines", Reason: "must not be negative"}
	}
	if c.Analysis.Timeout <= 0 || c.Analysis.PollInterval <= 0 {
		return &ConfigError{Field: "analysis", Reason: "timeout and poll_interval must be positive"}
	}
	if c.HTTP.Timeout <= 0 {
		return &ConfigError{Field: "http.timeout", Reason: "must be positive"}
	}
	if c.HTTP.MaxRetries < 0 {
		return &ConfigError{Field: "http.max_retries", Reason: "must not be negative"}
	}

	// 5. log settings
	switch c.Log.Format {
	case "console", "json":
	default:
		return &ConfigError{Field: "log.format", Reason: fmt.Sprintf("unknown format %q (valid: console, json)", c.Log.Format)}
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.SonarQube.Token = mask(c.SonarQube.Token)
	c.SonarQube.Password = mask(c.SonarQube.Password)
	c.Aider.APIKey = mask(c.Aider.APIKey)
	return c
}
