package refupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/config"
	"github.com/picpilot/picpilot/internal/util"
)

// Webhook POSTs the address change to the host, which substitutes per-size
// dimensions into both basenames and rewrites all content records.
type Webhook struct {
	URL     string
	Headers map[string]string
	Retries int
	Backoff time.Duration
	Log     zerolog.Logger
}

type replacePayload struct {
	AttachmentID int64  `json:"attachment_id"`
	OldURL       string `json:"old_url"`
	NewURL       string `json:"new_url"`
}

func (w Webhook) ReplaceAddress(ctx context.Context, attachmentID int64, oldURL, newURL string) error {
	body, err := json.Marshal(replacePayload{AttachmentID: attachmentID, OldURL: oldURL, NewURL: newURL})
	if err != nil {
		return err
	}
	return util.Retry(ctx, w.Retries, w.Backoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range w.Headers {
			req.Header.Set(k, v)
		}
		resp, err := httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("reference webhook returned %s", resp.Status)
		}
		return nil
	})
}

// FromConfig picks the webhook updater when a URL is configured, Noop otherwise.
func FromConfig(cfg config.ReferencesConfig, log zerolog.Logger) Updater {
	if cfg.WebhookURL == "" {
		return Noop{}
	}
	return Webhook{
		URL:     cfg.WebhookURL,
		Headers: cfg.Headers,
		Retries: cfg.RetryCount,
		Backoff: cfg.RetryBackoff,
		Log:     log,
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
