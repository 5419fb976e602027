// Package hgrepo implements domain.VCS and domain.BranchAnalyzer on top of
// the hg command line client.
package hgrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

var (
	_ domain.VCS            = (*Repo)(nil)
	_ domain.BranchAnalyzer = (*Repo)(nil)
)

// Repo is a Mercurial working copy. Every command except root runs from
// the repository root with path: patterns, so hg prints root-relative paths.
type Repo struct {
	workDir string
	logger  *zap.Logger
}

// New returns a repo for the working copy containing workDir.
func New(workDir string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{workDir: workDir, logger: logger.Named("hg")}
}

func runHg(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "hg", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HGPLAIN=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hg %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Root returns the top-level directory of the working copy.
func (r *Repo) Root() (string, error) {
	out, err := runHg(context.Background(), r.workDir, "root")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsRepository reports whether workDir is inside a Mercurial working copy.
func (r *Repo) IsRepository() bool {
	_, err := r.Root()
	return err == nil
}

// IsClean reports whether path is free of modifications, additions and
// removals. Untracked files count as clean.
func (r *Repo) IsClean(path string) (bool, error) {
	root, err := r.Root()
	if err != nil {
		return false, err
	}
	rel, err := repoPath(root, r.workDir, path)
	if err != nil {
		return false, err
	}
	out, err := runHg(context.Background(), root, "status", "-mar", "-n", "path:"+rel)
	if err != nil {
		return false, err
	}
	return len(lines(out)) == 0, nil
}

// Commit adds untracked files among files and commits exactly those paths.
func (r *Repo) Commit(ctx context.Context, files []string, message string) (string, error) {
	root, err := r.Root()
	if err != nil {
		return "", err
	}
	var patterns []string
	for _, f := range files {
		rel, err := repoPath(root, r.workDir, f)
		if err != nil {
			return "", err
		}
		patterns = append(patterns, "path:"+rel)
	}

	out, err := runHg(ctx, root, append([]string{"status", "-u", "-n"}, patterns...)...)
	if err != nil {
		return "", err
	}
	if untracked := lines(out); len(untracked) > 0 {
		if _, err := runHg(ctx, root, append([]string{"add"}, pathPatterns(untracked)...)...); err != nil {
			return "", err
		}
	}

	out, err = runHg(ctx, root, append([]string{"status", "-mar", "-n"}, patterns...)...)
	if err != nil {
		return "", err
	}
	changed := lines(out)
	if len(changed) == 0 {
		return "", domain.ErrNothingToCommit
	}

	if _, err := runHg(ctx, root, append([]string{"commit", "-m", message}, pathPatterns(changed)...)...); err != nil {
		return "", err
	}
	out, err = runHg(ctx, root, "log", "-r", ".", "--template", "{node}")
	if err != nil {
		return "", err
	}
	node := strings.TrimSpace(out)
	r.logger.Debug("commit created", zap.String("node", node), zap.Int("files", len(changed)))
	return node, nil
}

// CurrentBranch returns the named branch of the working copy.
func (r *Repo) CurrentBranch() (string, error) {
	out, err := runHg(context.Background(), r.workDir, "branch")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// UserIdentity returns the email part of ui.username.
func (r *Repo) UserIdentity() (string, error) {
	out, _ := runHg(context.Background(), r.workDir, "config", "ui.username")
	email := ParseUsername(out)
	if email == "" {
		return "", errors.New("mercurial ui.username not configured; run: hg config --edit")
	}
	return email, nil
}

// BranchExists reports whether name is an open or closed named branch.
func (r *Repo) BranchExists(name string) bool {
	out, err := runHg(context.Background(), r.workDir, "branches", "--closed", "--template", "{branch}\n")
	if err != nil {
		return false
	}
	for _, b := range lines(out) {
		if b == name {
			return true
		}
	}
	return false
}

// ChangedFiles lists files that differ between ancestor(base, .) and the
// working copy parent, excluding removed and missing files.
func (r *Repo) ChangedFiles(ctx context.Context, base string) ([]string, error) {
	if !r.BranchExists(base) {
		return nil, fmt.Errorf("branch %q does not exist", base)
	}
	root, err := r.Root()
	if err != nil {
		return nil, err
	}
	rev := fmt.Sprintf("ancestor(%s,.)", quoteRevset(base))
	out, err := runHg(ctx, root, "status", "--rev", rev, "--rev", ".", "-mar")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range ParseStatus(out) {
		if e.Code == 'R' {
			continue
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(e.Path)))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, e.Path)
	}
	sort.Strings(files)
	return files, nil
}

// StatusEntry is one line of hg status output.
type StatusEntry struct {
	Code byte
	Path string
}

// ParseStatus parses "X path" lines as printed by hg status.
func ParseStatus(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 3 || line[1] != ' ' {
			continue
		}
		entries = append(entries, StatusEntry{Code: line[0], Path: filepath.ToSlash(line[2:])})
	}
	return entries
}

// ParseUsername extracts the email from "Name <email>" or returns the
// trimmed value.
func ParseUsername(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "<"); start >= 0 {
		if end := strings.Index(s[start:], ">"); end > 0 {
			return strings.TrimSpace(s[start+1 : start+end])
		}
	}
	return s
}

func repoPath(root, workDir, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(resolved, filepath.Base(abs))
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository", path)
	}
	return filepath.ToSlash(rel), nil
}

func lines(out string) []string {
	var res []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			res = append(res, l)
		}
	}
	return res
}

func pathPatterns(rels []string) []string {
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = "path:" + filepath.ToSlash(rel)
	}
	return out
}

func quoteRevset(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}
