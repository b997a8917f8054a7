package coding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"github.com/run-bigpig/observable-agent/pkg/logging"
)

const (
	// PRLabel marks pull requests opened by the agent
	PRLabel      = "agent-generated"
	prLabelColor = "E99695"
)

// PullRequest describes a branch to propose for merging
type PullRequest struct {
	Branch string
	Title  string
	Body   string
}

// Publisher opens a pull request for a pushed branch and returns its URL
type Publisher interface {
	OpenPullRequest(ctx context.Context, repo *Repository, pr PullRequest) (string, error)
}

// NewPublisher picks the GitHub API when a token is available and the gh
// CLI otherwise
func NewPublisher(token string, logger logging.Logger) Publisher {
	if token == "" {
		return &GHCLIPublisher{logger: logger}
	}
	return NewGitHubPublisher(token, WithPublisherLogger(logger))
}

// GitHubPublisher opens pull requests through the GitHub REST API
type GitHubPublisher struct {
	client *github.Client
	remote string
	logger logging.Logger
}

// PublisherOption configures a GitHubPublisher
type PublisherOption func(*GitHubPublisher)

// WithAPIBaseURL targets GitHub Enterprise or a test server
func WithAPIBaseURL(base string) PublisherOption {
	return func(p *GitHubPublisher) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		if u, err := url.Parse(base); err == nil {
			p.client.BaseURL = u
		}
	}
}

// WithRemote sets the git remote whose URL names the GitHub repository
func WithRemote(name string) PublisherOption {
	return func(p *GitHubPublisher) {
		p.remote = name
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger logging.Logger) PublisherOption {
	return func(p *GitHubPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewGitHubPublisher creates a publisher authenticated with token
func NewGitHubPublisher(token string, options ...PublisherOption) *GitHubPublisher {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	p := &GitHubPublisher{
		client: github.NewClient(httpClient),
		remote: "origin",
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// OpenPullRequest ensures the agent label exists, opens a pull request from
// the branch into the repository's default branch and labels it
func (p *GitHubPublisher) OpenPullRequest(ctx context.Context, repo *Repository, pr PullRequest) (string, error) {
	remoteURL, err := repo.RemoteURL(p.remote)
	if err != nil {
		return "", err
	}
	owner, name, err := ParseGitHubRemote(remoteURL)
	if err != nil {
		return "", err
	}

	if err := p.ensureLabel(ctx, owner, name); err != nil {
		return "", err
	}

	ghRepo, _, err := p.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s/%s: %w", owner, name, err)
	}
	base := ghRepo.GetDefaultBranch()
	if base == "" {
		base = defaultBranch
	}

	created, _, err := p.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(pr.Title),
		Head:  github.String(pr.Branch),
		Base:  github.String(base),
		Body:  github.String(pr.Body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}

	if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, owner, name, created.GetNumber(), []string{PRLabel}); err != nil {
		p.logger.Warn(ctx, "Failed to label pull request", map[string]interface{}{
			"number": created.GetNumber(),
			"error":  err.Error(),
		})
	}

	p.logger.Info(ctx, "Opened pull request", map[string]interface{}{
		"url":    created.GetHTMLURL(),
		"branch": pr.Branch,
		"base":   base,
	})
	return created.GetHTMLURL(), nil
}

func (p *GitHubPublisher) ensureLabel(ctx context.Context, owner, name string) error {
	_, resp, err := p.client.Issues.GetLabel(ctx, owner, name, PRLabel)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to look up label %s: %w", PRLabel, err)
	}

	_, _, err = p.client.Issues.CreateLabel(ctx, owner, name, &github.Label{
		Name:  github.String(PRLabel),
		Color: github.String(prLabelColor),
	})
	if err != nil {
		return fmt.Errorf("failed to create label %s: %w", PRLabel, err)
	}
	return nil
}

// ParseGitHubRemote extracts owner and repository from an https or ssh remote URL
func ParseGitHubRemote(remote string) (owner, name string, err error) {
	var path string
	switch {
	case strings.HasPrefix(remote, "git@"):
		_, after, ok := strings.Cut(remote, ":")
		if !ok {
			return "", "", fmt.Errorf("unrecognized remote URL: %s", remote)
		}
		path = after
	default:
		u, perr := url.Parse(remote)
		if perr != nil || u.Host == "" {
			return "", "", fmt.Errorf("unrecognized remote URL: %s", remote)
		}
		path = u.Path
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("unrecognized remote URL: %s", remote)
	}
	return parts[0], parts[1], nil
}

// GHCLIPublisher shells out to the gh CLI, which fills the title and body
// from the branch's commits
type GHCLIPublisher struct {
	run    Runner
	logger logging.Logger
}

// OpenPullRequest implements Publisher
func (p *GHCLIPublisher) OpenPullRequest(ctx context.Context, repo *Repository, _ PullRequest) (string, error) {
	run := p.run
	if run == nil {
		run = RunCommand
	}

	// the label may already exist
	if _, err := run(ctx, repo.Path(), "gh", "label", "create", PRLabel, "--color", prLabelColor); err != nil {
		return "", err
	}

	result, err := run(ctx, repo.Path(), "gh", "pr", "create", "--fill", "--label", PRLabel)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("gh pr create exited with %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	url := strings.TrimSpace(result.Stdout)
	if p.logger != nil {
		p.logger.Info(ctx, "Opened pull request", map[string]interface{}{"url": url})
	}
	return url, nil
}
