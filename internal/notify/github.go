package notify

import (
	"context"
	"fmt"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// GitHubChannel comments the run summary on the pull request under review.
type GitHubChannel struct {
	client *gogithub.Client
	owner  string
	repo   string
	number int
}

// NewGitHub creates a GitHubChannel from cfg. Repository is "owner/name".
func NewGitHub(cfg config.GitHubNotifyConfig) (*GitHubChannel, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// GitHub Enterprise.
	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	owner, repo, _ := strings.Cut(cfg.Repository, "/")
	return &GitHubChannel{client: client, owner: owner, repo: repo, number: cfg.PRNumber}, nil
}

func (g *GitHubChannel) Name() string { return "github" }

func (g *GitHubChannel) IsConfigured() bool {
	return g.client != nil && g.owner != "" && g.repo != "" && g.number > 0
}

func (g *GitHubChannel) Send(ctx context.Context, evt Event) error {
	body := "### " + evt.Title + "\n\n" + evt.Body
	_, _, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, g.number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("commenting on %s/%s#%d: %w", g.owner, g.repo, g.number, err)
	}
	return nil
}
