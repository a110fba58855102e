package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/bullionwatch/pmalert/models"
)

const (
	xTweetURL       = "https://api.twitter.com/2/tweets"
	xMediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// XClient is the secondary destination: the X API with the 4-part OAuth1
// user-context credential set. Posting here is guarded by the gate.
type XClient struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewXClient builds an OAuth1-signing HTTP client for the credential set.
func NewXClient(cfg models.XConfig, logger *slog.Logger) *XClient {
	oauthConfig := oauth1.NewConfig(cfg.APIKey, cfg.APISecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret)
	client := oauthConfig.Client(oauth1.NoContext, token)
	client.Timeout = 30 * time.Second
	return &XClient{httpClient: client, logger: logger}
}

func (x *XClient) Name() string { return "x" }

// Post uploads the optional image for a media handle, then submits the tweet.
// A failed image upload drops the image, not the post.
func (x *XClient) Post(ctx context.Context, msg models.AlertMessage) error {
	var mediaID string
	if len(msg.Image) > 0 {
		id, err := x.uploadMedia(ctx, msg.Image)
		if err != nil {
			x.logger.Warn("x media upload failed, posting text only", "error", err)
		} else {
			mediaID = id
		}
	}

	body := map[string]any{"text": msg.Text}
	if mediaID != "" {
		body["media"] = map[string]any{"media_ids": []string{mediaID}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, xTweetURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tweet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tweet returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func (x *XClient) uploadMedia(ctx context.Context, image []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "screenshot.png")
	if err != nil {
		return "", fmt.Errorf("failed to build media form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write media form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close media form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, xMediaUploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build media request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload returned status %d", resp.StatusCode)
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode media response: %w", err)
	}
	if out.MediaIDString == "" {
		return "", fmt.Errorf("media upload returned no id")
	}
	return out.MediaIDString, nil
}
