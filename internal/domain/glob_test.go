package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeheal/vibeheal/internal/domain"
)

func TestMatchAny(t *testing.T) {
	tests := []struct {
		file     string
		patterns []string
		expect   bool
	}{
		{"src/app.py", nil, true},
		{"src/app.py", []string{"*.py"}, true},
		{"src/app.py", []string{"*.go"}, false},
		{"src/app.py", []string{"src/*.py"}, true},
		{"src/deep/app.py", []string{"src/*.py"}, false},
		{"src/deep/app.py", []string{"src/**/*.py"}, true},
		{"src/app.py", []string{"src/**/*.py"}, true},
		{"lib/app.py", []string{"src/**"}, false},
		{"./src/app.py", []string{"src/*.py"}, true},
		{"src/app.py", []string{"./src/*.py"}, true},
		{"src/app.py", []string{"*.go", "*.py"}, true},
		{"lib/app.py", []string{"{src,lib}/*.py"}, true},
		{"src/app.ts", []string{"**/*.{js,ts}"}, true},
		{"docs/app.py", []string{"{src,lib}/*.py"}, false},
	}
	for _, tt := range tests {
		got, err := domain.MatchAny(tt.file, tt.patterns)
		require.NoError(t, err)
		assert.Equal(t, tt.expect, got, "file %q patterns %v", tt.file, tt.patterns)
	}
}

func TestFilterFiles(t *testing.T) {
	files := []string{"a.go", "b.py", "dir/c.go"}

	got, err := domain.FilterFiles(files, []string{"*.go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go", "dir/c.go"}, got)

	got, err = domain.FilterFiles(files, nil)
	require.NoError(t, err)
	assert.Equal(t, files, got)

	got, err = domain.FilterFiles(files, []string{"*.rs"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterFiles_MalformedPattern(t *testing.T) {
	files := []string{"src/a.py", "src/sub/b.py", "README.md"}

	_, err := domain.FilterFiles(files, []string{"*.py", "src/[a.py"})
	require.ErrorIs(t, err, domain.ErrConfig)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "pattern", cfgErr.Field)
	assert.Contains(t, cfgErr.Reason, "src/[a.py")
}

func TestValidatePatterns(t *testing.T) {
	require.NoError(t, domain.ValidatePatterns(nil))
	require.NoError(t, domain.ValidatePatterns([]string{"src/**/*.py", "{a,b}/*.go", "[abc].txt"}))
	assert.ErrorIs(t, domain.ValidatePatterns([]string{"src/[a.py"}), domain.ErrConfig)
	assert.ErrorIs(t, domain.ValidatePatterns([]string{"{src,lib/*.py"}), domain.ErrConfig)
}
