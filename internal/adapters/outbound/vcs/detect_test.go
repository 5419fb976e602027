package vcs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs/gitrepo"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs/hgrepo"
)

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func TestDetect(t *testing.T) {
	root := t.TempDir()

	gitRepo := mkdir(t, root, "g")
	mkdir(t, gitRepo, ".git")
	nested := mkdir(t, gitRepo, "a", "b")

	hgRepo := mkdir(t, root, "h")
	mkdir(t, hgRepo, ".hg")
	hgNested := mkdir(t, hgRepo, "src")

	assert.Equal(t, vcs.Git, vcs.Detect(nested))
	assert.Equal(t, vcs.Mercurial, vcs.Detect(hgNested))
	assert.Equal(t, vcs.Git, vcs.Detect(mkdir(t, root, "plain")), "defaults to git")
}

func TestDetect_NearestWins(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, ".git")
	inner := mkdir(t, root, "vendor", "lib")
	mkdir(t, inner, ".hg")

	assert.Equal(t, vcs.Mercurial, vcs.Detect(inner))
	assert.Equal(t, vcs.Git, vcs.Detect(filepath.Join(root, "vendor")))
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, ".hg")

	backend, kind := vcs.Open(root, nil)
	assert.Equal(t, vcs.Mercurial, kind)
	assert.IsType(t, &hgrepo.Repo{}, backend)

	backend, kind = vcs.Open(t.TempDir(), nil)
	assert.Equal(t, vcs.Git, kind)
	assert.IsType(t, &gitrepo.Repo{}, backend)
}
