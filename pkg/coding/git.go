package coding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when a path holds no git repository
var ErrNotRepository = errors.New("not a git repository")

const (
	defaultBranch      = "main"
	maxBranchSlug      = 50
	fallbackAuthorName = "ADL Coding Agent"
	fallbackAuthorMail = "adl-agent@localhost"
)

// Word and space classes are Unicode aware, so "Café menu" keeps its accent
var (
	branchUnsafe    = regexp.MustCompile(`[^\p{L}\p{N}_\s\v\p{Z}\x{85}-]`)
	branchSeparator = regexp.MustCompile(`[-\s\v\p{Z}\x{85}]+`)
)

// BranchName derives a branch name from a task description
func BranchName(prefix, task string) string {
	slug := branchUnsafe.ReplaceAllString(task, "")
	slug = branchSeparator.ReplaceAllString(slug, "-")
	slug = strings.ToLower(slug)
	if r := []rune(slug); len(r) > maxBranchSlug {
		slug = string(r[:maxBranchSlug])
	}
	return prefix + "/" + slug
}

// CommitMessage is the message of a commit holding a generated file
func CommitMessage(task string) string {
	return fmt.Sprintf("agent: %s\n\n🤖 Generated by ADL Coding Agent", task)
}

// Repository is a git working tree the agent writes into
type Repository struct {
	path string
	repo *git.Repository
}

// OpenRepository opens the repository rooted at path
func OpenRepository(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRepository)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return &Repository{path: path, repo: repo}, nil
}

// Path returns the working tree root
func (r *Repository) Path() string {
	return r.path
}

// CurrentBranch returns the checked out branch, or "main" when HEAD is
// detached or unborn
func (r *Repository) CurrentBranch() string {
	head, err := r.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return defaultBranch
	}
	return head.Name().Short()
}

// CreateOrCheckoutBranch creates name from HEAD and checks it out. When the
// branch already exists it is checked out instead and existed is true.
// Uncommitted changes are kept.
func (r *Repository) CreateOrCheckoutBranch(name string) (branch string, existed bool, err error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("failed to get worktree: %w", err)
	}

	ref := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(ref, true); err == nil {
		if err := worktree.Checkout(&git.CheckoutOptions{Branch: ref, Keep: true}); err != nil {
			return "", true, fmt.Errorf("failed to check out branch %s: %w", name, err)
		}
		return name, true, nil
	}

	head, err := r.repo.Head()
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: ref, Hash: head.Hash(), Create: true, Keep: true}); err != nil {
		return "", false, fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return name, false, nil
}

// CommitAll stages every change, deletions included, and commits it
func (r *Repository) CommitAll(message string) (string, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{Author: r.author()})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}

// author reads user.name and user.email from git config
func (r *Repository) author() *object.Signature {
	sig := &object.Signature{Name: fallbackAuthorName, Email: fallbackAuthorMail, When: time.Now()}

	for _, load := range []func() (*gitconfig.Config, error){
		r.repo.Config,
		func() (*gitconfig.Config, error) { return gitconfig.LoadConfig(gitconfig.GlobalScope) },
	} {
		cfg, err := load()
		if err != nil || cfg.User.Name == "" || cfg.User.Email == "" {
			continue
		}
		sig.Name, sig.Email = cfg.User.Name, cfg.User.Email
		break
	}
	return sig
}

// Files lists tracked paths in index order
func (r *Repository) Files() ([]string, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	files := make([]string, 0, len(idx.Entries))
	for _, entry := range idx.Entries {
		files = append(files, entry.Name)
	}
	return files, nil
}

// ShortStatus renders the working tree status like `git status --short`,
// sorted by path
func (r *Repository) ShortStatus() (string, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("failed to read status: %w", err)
	}

	paths := make([]string, 0, len(status))
	for path, s := range status {
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		s := status[path]
		fmt.Fprintf(&b, "%c%c %s\n", s.Staging, s.Worktree, path)
	}
	return b.String(), nil
}

// RemoteURL returns the first URL of the named remote
func (r *Repository) RemoteURL(name string) (string, error) {
	remote, err := r.repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf("failed to find remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", name)
	}
	return urls[0], nil
}

// Push publishes branch with the git binary so the user's credential
// helpers apply
func (r *Repository) Push(ctx context.Context, run Runner, remote, branch string) error {
	if run == nil {
		run = RunCommand
	}
	result, err := run(ctx, r.path, "git", "push", "-u", remote, branch)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("git push exited with %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}
