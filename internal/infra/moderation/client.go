package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// Client submits keyframe batches to the bulk image moderation endpoint.
type Client struct {
	url    string
	token  string
	http   *http.Client
	logger *zap.Logger
}

func NewClient(url, token string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		url:    url,
		token:  token,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type bulkRequest struct {
	Images []entity.ModerationItem `json:"images"`
}

func (c *Client) Moderate(ctx context.Context, items []entity.ModerationItem) ([]entity.ModerationResult, error) {
	body, err := json.Marshal(bulkRequest{Images: items})
	if err != nil {
		return nil, &entity.ModerationError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &entity.ModerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("api-token", c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &entity.ModerationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("moderation api rejected batch",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, &entity.ModerationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var results []entity.ModerationResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &entity.ModerationError{Err: fmt.Errorf("decode response: %w", err)}
	}

	c.logger.Debug("moderation batch judged",
		zap.Int("images", len(items)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}
