// Package gitrepo implements domain.VCS and domain.BranchAnalyzer with go-git.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/domain"
)

var (
	_ domain.VCS            = (*Repo)(nil)
	_ domain.BranchAnalyzer = (*Repo)(nil)
)

// ErrForeignStaged is returned by Commit when the index already holds
// staged changes to files outside the commit.
var ErrForeignStaged = errors.New("index has staged changes to other files")

// Repo is a git working tree. Paths passed in are relative to the
// directory the repo was opened from, or absolute.
type Repo struct {
	workDir string
	logger  *zap.Logger

	once    sync.Once
	repo    *git.Repository
	root    string
	openErr error
}

// New returns a repo rooted at the git directory containing workDir. The
// repository is opened on first use.
func New(workDir string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{workDir: workDir, logger: logger.Named("git")}
}

func (r *Repo) open() (*git.Repository, error) {
	r.once.Do(func() {
		repo, err := git.PlainOpenWithOptions(r.workDir, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			r.openErr = fmt.Errorf("opening git repo: %w", err)
			return
		}
		wt, err := repo.Worktree()
		if err != nil {
			r.openErr = fmt.Errorf("getting worktree: %w", err)
			return
		}
		r.repo = repo
		r.root = wt.Filesystem.Root()
	})
	return r.repo, r.openErr
}

// IsRepository reports whether workDir is inside a non-bare git repository.
func (r *Repo) IsRepository() bool {
	_, err := r.open()
	return err == nil
}

// Root returns the top-level directory of the working tree.
func (r *Repo) Root() (string, error) {
	if _, err := r.open(); err != nil {
		return "", err
	}
	return r.root, nil
}

// IsClean reports whether path has no staged or unstaged modifications.
// Untracked files count as clean.
func (r *Repo) IsClean(path string) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	rel, err := r.repoPath(path)
	if err != nil {
		return false, err
	}
	status, err := worktreeStatus(repo)
	if err != nil {
		return false, err
	}
	st, ok := status[rel]
	if !ok {
		return true, nil
	}
	return !modified(st), nil
}

// Commit stages files and records a commit. It returns
// domain.ErrNothingToCommit when none of them differ from HEAD.
func (r *Repo) Commit(ctx context.Context, files []string, message string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}

	wanted := make(map[string]bool, len(files))
	for _, f := range files {
		rel, err := r.repoPath(f)
		if err != nil {
			return "", err
		}
		wanted[rel] = true
	}
	if foreign := stagedOutside(status, wanted); len(foreign) > 0 {
		return "", fmt.Errorf("%w: %s", ErrForeignStaged, strings.Join(foreign, ", "))
	}

	for rel := range wanted {
		st, ok := status[rel]
		if !ok || (st.Worktree == git.Unmodified && st.Staging == git.Unmodified) {
			continue
		}
		if st.Worktree == git.Deleted {
			if _, err := wt.Remove(rel); err != nil {
				return "", fmt.Errorf("staging removal of %s: %w", rel, err)
			}
			continue
		}
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("staging %s: %w", rel, err)
		}
	}

	status, err = wt.Status()
	if err != nil {
		return "", fmt.Errorf("getting status: %w", err)
	}
	if !hasStaged(status) {
		return "", domain.ErrNothingToCommit
	}

	sig, err := r.signature(repo)
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	r.logger.Debug("commit created", zap.String("hash", hash.String()), zap.Int("files", len(files)))
	return hash.String(), nil
}

// CurrentBranch returns the checked-out branch. A detached HEAD is an error.
func (r *Repo) CurrentBranch() (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("repository is in detached HEAD state at %s", head.Hash().String()[:8])
	}
	return head.Name().Short(), nil
}

// UserIdentity returns user.email from the repository or global config.
func (r *Repo) UserIdentity() (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return "", fmt.Errorf("reading git config: %w", err)
	}
	if cfg.User.Email == "" {
		return "", errors.New("git user email not configured; run: git config user.email 'you@example.com'")
	}
	return cfg.User.Email, nil
}

// BranchExists reports whether name resolves to a commit. Remote refs such
// as origin/main are accepted.
func (r *Repo) BranchExists(name string) bool {
	repo, err := r.open()
	if err != nil {
		return false
	}
	_, err = repo.ResolveRevision(plumbing.Revision(name))
	return err == nil
}

// ChangedFiles lists files that differ between the merge base of base and
// HEAD, and HEAD itself. Deleted files and files missing from the working
// tree are left out. Paths are relative to the repository root.
func (r *Repo) ChangedFiles(ctx context.Context, base string) ([]string, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	baseHash, err := repo.ResolveRevision(plumbing.Revision(base))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", base, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("getting HEAD: %w", err)
	}

	baseCommit, err := repo.CommitObject(*baseHash)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", base, err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("loading HEAD: %w", err)
	}
	bases, err := headCommit.MergeBase(baseCommit)
	if err != nil {
		return nil, fmt.Errorf("finding merge base with %s: %w", base, err)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no common ancestor between HEAD and %s", base)
	}

	fromTree, err := bases[0].Tree()
	if err != nil {
		return nil, fmt.Errorf("loading merge base tree: %w", err)
	}
	toTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading HEAD tree: %w", err)
	}
	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diffing against %s: %w", base, err)
	}

	var files []string
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			continue
		}
		info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(name)))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// repoPath converts a workDir-relative or absolute path to a slash
// separated path relative to the repository root.
func (r *Repo) repoPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.workDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	root := r.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the repository", path)
	}
	return filepath.ToSlash(rel), nil
}

func (r *Repo) signature(repo *git.Repository) (*object.Signature, error) {
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return nil, fmt.Errorf("reading git config: %w", err)
	}
	name, email := cfg.User.Name, cfg.User.Email
	if name == "" {
		name = "vibeheal"
	}
	if email == "" {
		email = "vibeheal@localhost"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}, nil
}

func worktreeStatus(repo *git.Repository) (git.Status, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}
	return status, nil
}

func modified(st *git.FileStatus) bool {
	if st.Worktree == git.Untracked && st.Staging == git.Untracked {
		return false
	}
	return st.Worktree != git.Unmodified || st.Staging != git.Unmodified
}

// stagedOutside lists staged paths not in wanted, sorted.
func stagedOutside(status git.Status, wanted map[string]bool) []string {
	var out []string
	for path, st := range status {
		if st.Staging == git.Unmodified || st.Staging == git.Untracked || wanted[path] {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func hasStaged(status git.Status) bool {
	for _, st := range status {
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			return true
		}
	}
	return false
}
