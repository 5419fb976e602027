// Package vcs picks the version control backend for a working directory.
package vcs

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs/gitrepo"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs/hgrepo"
	"github.com/vibeheal/vibeheal/internal/domain"
)

// Kind names a version control system.
type Kind string

const (
	Git       Kind = "git"
	Mercurial Kind = "mercurial"
)

// Backend is a VCS that can also analyse branches.
type Backend interface {
	domain.VCS
	domain.BranchAnalyzer
}

// Detect walks up from dir looking for .git or .hg. The nearest wins;
// git is the default when neither is found.
func Detect(dir string) Kind {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Git
	}
	for {
		if exists(filepath.Join(abs, ".git")) {
			return Git
		}
		if exists(filepath.Join(abs, ".hg")) {
			return Mercurial
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return Git
		}
		abs = parent
	}
}

// Open returns the backend for dir.
func Open(dir string, logger *zap.Logger) (Backend, Kind) {
	kind := Detect(dir)
	if kind == Mercurial {
		return hgrepo.New(dir, logger), kind
	}
	return gitrepo.New(dir, logger), kind
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
