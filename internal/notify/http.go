package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const channelTimeout = 5 * time.Second

// postJSON marshals v and POSTs it to url. sign, when non-nil, may add
// headers derived from the encoded body.
func postJSON(ctx context.Context, client *http.Client, channel, url string, v any, sign func(*http.Request, []byte)) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encoding payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ctrlscan-autofix")
	if sign != nil {
		sign(req, body)
	}
	resp, err := client.Do(req) // #nosec G107 -- url comes from operator config
	if err != nil {
		return fmt.Errorf("%s: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d", channel, resp.StatusCode)
	}
	return nil
}
