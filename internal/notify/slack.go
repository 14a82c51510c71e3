package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
)

// slackMaxFileFields caps the per-file fields in one message; Slack rejects
// sections with more than ten.
const slackMaxFileFields = 10

// SlackChannel posts a Block Kit summary to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a SlackChannel from cfg.
func NewSlack(cfg config.SlackNotifyConfig) *SlackChannel {
	return &SlackChannel{webhookURL: cfg.WebhookURL, client: &http.Client{Timeout: channelTimeout}}
}

func (s *SlackChannel) Name() string       { return "slack" }
func (s *SlackChannel) IsConfigured() bool { return s.webhookURL != "" }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func (s *SlackChannel) Send(ctx context.Context, evt Event) error {
	return postJSON(ctx, s.client, "slack webhook", s.webhookURL, slackMessageFor(evt), nil)
}

func slackMessageFor(evt Event) slackMessage {
	msg := slackMessage{
		Text: evt.Title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: evt.Title}},
		},
	}

	if len(evt.Fixed) > 0 {
		files := slackBlock{Type: "section"}
		for i, f := range evt.Fixed {
			if i == slackMaxFileFields {
				break
			}
			files.Fields = append(files.Fields, slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s*\n%s", f.Path, strings.Join(f.Categories, ", ")),
			})
		}
		msg.Blocks = append(msg.Blocks, files)
		if extra := len(evt.Fixed) - slackMaxFileFields; extra > 0 {
			msg.Blocks = append(msg.Blocks, slackBlock{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("_and %d more_", extra)},
			})
		}
	}

	msg.Blocks = append(msg.Blocks, slackBlock{
		Type: "section",
		Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("run `%s` · backend %s", evt.RunID, evt.Backend)},
	})
	return msg
}
