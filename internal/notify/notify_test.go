package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/CosmoTheDev/ctrlscan-autofix/internal/config"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/detect"
	"github.com/CosmoTheDev/ctrlscan-autofix/internal/pipeline"
)

func dirtyOutcome() pipeline.Outcome {
	return pipeline.Outcome{
		RunID:   "run-42",
		Backend: "gemini",
		State:   pipeline.StateDoneDirty,
		Results: []pipeline.FileResult{
			{Path: "src/db.js", Status: pipeline.StatusFixed, Written: true, Categories: []detect.Category{detect.SecretLike, detect.SQLInjection}},
			{Path: "src/ok.js", Status: pipeline.StatusSkipped},
			{Path: "src/x.js", Status: pipeline.StatusUnfixed, Categories: []detect.Category{detect.XSS}},
		},
		AnyChangeApplied: true,
	}
}

type fakeChannel struct {
	events []Event
	err    error
}

func (f *fakeChannel) Name() string       { return "fake" }
func (f *fakeChannel) IsConfigured() bool { return true }
func (f *fakeChannel) Send(_ context.Context, evt Event) error {
	f.events = append(f.events, evt)
	return f.err
}

func TestEventFromOutcome(t *testing.T) {
	evt := EventFromOutcome(dirtyOutcome())

	assert.Equal(t, EventRemediationApplied, evt.Type)
	assert.Equal(t, "ctrlscan-autofix rewrote 1 file", evt.Title)
	require.Len(t, evt.Fixed, 1)
	assert.Equal(t, FixedFile{Path: "src/db.js", Categories: []string{"SECRET_LIKE", "SQL_INJECTION"}}, evt.Fixed[0])
	assert.Contains(t, evt.Body, "`src/db.js` (SECRET_LIKE, SQL_INJECTION)")
	assert.Contains(t, evt.Body, "3 checked, 1 flagged but unfixed, 0 errors")
	assert.NotContains(t, evt.Body, "src/ok.js")
}

func TestDispatcherOnlySendsForAppliedRuns(t *testing.T) {
	ch := &fakeChannel{}
	d := NewDispatcherWith(ch)

	clean := dirtyOutcome()
	clean.AnyChangeApplied = false
	d.RunDone(context.Background(), clean)
	assert.Empty(t, ch.events)

	d.RunDone(context.Background(), dirtyOutcome())
	require.Len(t, ch.events, 1)
	assert.Equal(t, "run-42", ch.events[0].RunID)
}

func TestDispatcherSwallowsChannelErrors(t *testing.T) {
	failing := &fakeChannel{err: errors.New("down")}
	ok := &fakeChannel{}
	d := NewDispatcherWith(failing, ok)

	d.Notify(context.Background(), Event{Type: EventRemediationApplied})
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}

func TestNewDispatcherSkipsUnconfiguredChannels(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{})
	assert.False(t, d.IsAnyConfigured())

	d = NewDispatcher(config.NotifyConfig{
		Slack:  config.SlackNotifyConfig{WebhookURL: "https://hooks.slack.example/x"},
		GitHub: config.GitHubNotifyConfig{Token: "t", Repository: "o/r"}, // no PR number
	})
	assert.Equal(t, []string{"slack"}, d.ChannelNames())
}

func TestWebhookSignsBody(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL, Secret: "s3cret"})
	require.NoError(t, w.Send(context.Background(), EventFromOutcome(dirtyOutcome())))

	assert.Equal(t, "sha256="+Sign("s3cret", gotBody), gotSig)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "remediation_applied", payload["type"])
	assert.Equal(t, "run-42", payload["run_id"])
}

func TestWebhookReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL}).Send(context.Background(), Event{})
	assert.ErrorContains(t, err, "webhook returned 502")
}

func TestSlackPayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	s := NewSlack(config.SlackNotifyConfig{WebhookURL: srv.URL})
	require.NoError(t, s.Send(context.Background(), EventFromOutcome(dirtyOutcome())))
	assert.Equal(t, "ctrlscan-autofix rewrote 1 file", payload["text"])
}

func TestGitHubCommentsOnPullRequest(t *testing.T) {
	var comment gogithub.IssueComment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/acme/shop/issues/7/comments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&comment))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	ch, err := NewGitHub(config.GitHubNotifyConfig{Token: "t", Repository: "acme/shop", PRNumber: 7})
	require.NoError(t, err)
	ch.client.BaseURL, _ = url.Parse(srv.URL + "/")
	require.True(t, ch.IsConfigured())

	require.NoError(t, ch.Send(context.Background(), EventFromOutcome(dirtyOutcome())))
	assert.Contains(t, comment.GetBody(), "### ctrlscan-autofix rewrote 1 file")
	assert.Contains(t, comment.GetBody(), "src/db.js")
}

func TestGitLabAddsMergeRequestNote(t *testing.T) {
	var note struct {
		Body string `json:"body"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/projects/42/merge_requests/3/notes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&note))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"body":"ok"}`))
	}))
	defer srv.Close()

	ch, err := newGitLab(
		config.GitLabNotifyConfig{Token: "t", ProjectID: "42", MRIID: 3},
		gitlab.WithBaseURL(srv.URL),
	)
	require.NoError(t, err)
	require.True(t, ch.IsConfigured())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.Send(ctx, EventFromOutcome(dirtyOutcome())))
	assert.Contains(t, note.Body, "src/db.js")
}

func TestSlackMessageCapsFileFields(t *testing.T) {
	evt := Event{Title: "t", RunID: "r"}
	for i := 0; i < 12; i++ {
		evt.Fixed = append(evt.Fixed, FixedFile{Path: fmt.Sprintf("f%d.js", i), Categories: []string{"XSS"}})
	}

	msg := slackMessageFor(evt)
	require.Len(t, msg.Blocks, 4)
	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Len(t, msg.Blocks[1].Fields, slackMaxFileFields)
	assert.Equal(t, "_and 2 more_", msg.Blocks[2].Text.Text)
	assert.Contains(t, msg.Blocks[3].Text.Text, "run `r`")
}
