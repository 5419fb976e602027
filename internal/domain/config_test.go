package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeheal/vibeheal/internal/domain"
)

func validConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.SonarQube.URL = "https://sonar.example.com"
	cfg.SonarQube.Token = "squ_abc"
	cfg.SonarQube.ProjectKey = "my-project"
	return cfg
}

func TestDefaultConfig_Tunables(t *testing.T) {
	cfg := domain.DefaultConfig()
	assert.Equal(t, "sonar-scanner", cfg.Analysis.Scanner)
	assert.Equal(t, 5, cfg.Fix.CodeContextLines)
	assert.True(t, cfg.Fix.IncludeRuleDescription)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.SonarQube.URL)
}

func TestConfig_Validate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	basic := validConfig()
	basic.SonarQube.Token = ""
	basic.SonarQube.Username = "admin"
	basic.SonarQube.Password = "secret"
	require.NoError(t, basic.Validate())
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
		field  string
	}{
		{"missing url", func(c *domain.Config) { c.SonarQube.URL = "" }, "sonarqube.url"},
		{"bad scheme", func(c *domain.Config) { c.SonarQube.URL = "sonar.local" }, "sonarqube.url"},
		{"missing project key", func(c *domain.Config) { c.SonarQube.ProjectKey = "" }, "sonarqube.project_key"},
		{"no credentials", func(c *domain.Config) { c.SonarQube.Token = "" }, "sonarqube"},
		{"username without password", func(c *domain.Config) {
			c.SonarQube.Token = ""
			c.SonarQube.Username = "admin"
		}, "sonarqube"},
		{"unknown tool", func(c *domain.Config) { c.AITool = "copilot" }, "ai_tool"},
		{"zero fix timeout", func(c *domain.Config) { c.Fix.Timeout = 0 }, "fix.timeout"},
		{"bad log format", func(c *domain.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfig))
			var cerr *domain.ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestConfig_Normalize(t *testing.T) {
	cfg := validConfig()
	cfg.SonarQube.URL = "https://sonar.example.com///"
	cfg.AITool = "Aider"
	cfg = cfg.Normalize()
	assert.Equal(t, "https://sonar.example.com", cfg.SonarQube.URL)
	assert.Equal(t, domain.AIToolAider, cfg.AITool)
}

func TestConfig_Redacted(t *testing.T) {
	cfg := validConfig()
	cfg.Aider.APIKey = "sk-1"
	red := cfg.Redacted()
	assert.Equal(t, "***", red.SonarQube.Token)
	assert.Equal(t, "***", red.Aider.APIKey)
	assert.Empty(t, red.SonarQube.Password)
	assert.Equal(t, "squ_abc", cfg.SonarQube.Token, "original must be untouched")
}

func TestParseAIToolKind(t *testing.T) {
	k, err := domain.ParseAIToolKind("claude")
	require.NoError(t, err)
	assert.Equal(t, domain.AIToolClaudeCode, k)

	k, err = domain.ParseAIToolKind("")
	require.NoError(t, err)
	assert.Empty(t, k)

	_, err = domain.ParseAIToolKind("cursor")
	assert.ErrorIs(t, err, domain.ErrUnsupportedTool)
}
