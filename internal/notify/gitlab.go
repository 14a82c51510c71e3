package notify

import (
	"context"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// GitLabChannel adds the run summary as a note on the merge request.
type GitLabChannel struct {
	client    *gitlab.Client
	projectID string
	mrIID     int
}

// NewGitLab creates a GitLabChannel from cfg.
func NewGitLab(cfg config.GitLabNotifyConfig) (*GitLabChannel, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}
	return newGitLab(cfg, opts...)
}

func newGitLab(cfg config.GitLabNotifyConfig, opts ...gitlab.ClientOptionFunc) (*GitLabChannel, error) {
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLabChannel{client: client, projectID: cfg.ProjectID, mrIID: cfg.MRIID}, nil
}

func (g *GitLabChannel) Name() string { return "gitlab" }

func (g *GitLabChannel) IsConfigured() bool {
	return g.client != nil && g.projectID != "" && g.mrIID > 0
}

func (g *GitLabChannel) Send(ctx context.Context, evt Event) error {
	body := "### " + evt.Title + "\n\n" + evt.Body
	_, _, err := g.client.Notes.CreateMergeRequestNote(g.projectID, int64(g.mrIID),
		&gitlab.CreateMergeRequestNoteOptions{Body: gitlab.Ptr(body)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("adding note to %s!%d: %w", g.projectID, g.mrIID, err)
	}
	return nil
}
