package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// ReferenceClient talks to the reference-data REST API. It never retries;
// every non-2xx answer becomes one *helpers.FetchError.
type ReferenceClient struct {
	Config  *models.MConfig
	BaseURL string
	Client  *http.Client
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewReferenceClient(cfg *models.MConfig, log *logger.Logger) *ReferenceClient {
	if log == nil {
		log = logger.NewLogger(cfg, "ReferenceClient")
	}
	return &ReferenceClient{
		Config:  cfg,
		BaseURL: strings.TrimRight(cfg.Rest.BaseURL, "/"),
		Client:  &http.Client{Timeout: time.Duration(cfg.Rest.TimeoutMs) * time.Millisecond},
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// do sends one JSON request and decodes the JSON answer into out (if non-nil)
func (c *ReferenceClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.Logger.Warning("%s %s failed: %v", method, path, err)
		fe := helpers.NewFetchError(method, path, 0, "network error")
		fe.Cause = err
		return fe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		c.Logger.Info("%s %s returned %d", method, path, resp.StatusCode)
		return helpers.NewFetchError(method, path, resp.StatusCode, statusText(resp))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusText is the reason phrase from the status line
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	text = strings.TrimSpace(text)
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func itemPath(collection string, id int64) string {
	return collection + "/" + strconv.FormatInt(id, 10)
}

// -----------------------------------------------------------------------------
// Instruments
// -----------------------------------------------------------------------------

func (c *ReferenceClient) ListInstruments(ctx context.Context) ([]models.MInstrument, error) {
	var out []models.MInstrument
	err := c.do(ctx, http.MethodGet, "/instruments", nil, &out)
	return out, err
}

func (c *ReferenceClient) GetInstrument(ctx context.Context, id int64) (models.MInstrument, error) {
	var out models.MInstrument
	err := c.do(ctx, http.MethodGet, itemPath("/instruments", id), nil, &out)
	return out, err
}

func (c *ReferenceClient) CreateInstrument(ctx context.Context, in models.MInstrument) (models.MInstrument, error) {
	var out models.MInstrument
	err := c.do(ctx, http.MethodPost, "/instruments", in, &out)
	return out, err
}

func (c *ReferenceClient) UpdateInstrument(ctx context.Context, id int64, in models.MInstrument) (models.MInstrument, error) {
	var out models.MInstrument
	err := c.do(ctx, http.MethodPut, itemPath("/instruments", id), in, &out)
	return out, err
}

func (c *ReferenceClient) DeleteInstrument(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("/instruments", id), nil, nil)
}

// -----------------------------------------------------------------------------
// Feeds
// -----------------------------------------------------------------------------

func (c *ReferenceClient) ListFeeds(ctx context.Context) ([]models.MFeed, error) {
	var out []models.MFeed
	err := c.do(ctx, http.MethodGet, "/feeds", nil, &out)
	return out, err
}

func (c *ReferenceClient) GetFeed(ctx context.Context, id int64) (models.MFeed, error) {
	var out models.MFeed
	err := c.do(ctx, http.MethodGet, itemPath("/feeds", id), nil, &out)
	return out, err
}

func (c *ReferenceClient) CreateFeed(ctx context.Context, in models.MFeed) (models.MFeed, error) {
	var out models.MFeed
	err := c.do(ctx, http.MethodPost, "/feeds", in, &out)
	return out, err
}

func (c *ReferenceClient) UpdateFeed(ctx context.Context, id int64, in models.MFeed) (models.MFeed, error) {
	var out models.MFeed
	err := c.do(ctx, http.MethodPut, itemPath("/feeds", id), in, &out)
	return out, err
}

func (c *ReferenceClient) DeleteFeed(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("/feeds", id), nil, nil)
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (c *ReferenceClient) ListSubscriptions(ctx context.Context) ([]models.MSubscription, error) {
	var out []models.MSubscription
	err := c.do(ctx, http.MethodGet, "/subscriptions", nil, &out)
	return out, err
}

func (c *ReferenceClient) GetSubscription(ctx context.Context, id int64) (models.MSubscription, error) {
	var out models.MSubscription
	err := c.do(ctx, http.MethodGet, itemPath("/subscriptions", id), nil, &out)
	return out, err
}

func (c *ReferenceClient) CreateSubscription(ctx context.Context, in models.MSubscription) (models.MSubscription, error) {
	var out models.MSubscription
	err := c.do(ctx, http.MethodPost, "/subscriptions", in, &out)
	return out, err
}

func (c *ReferenceClient) UpdateSubscription(ctx context.Context, id int64, in models.MSubscription) (models.MSubscription, error) {
	var out models.MSubscription
	err := c.do(ctx, http.MethodPut, itemPath("/subscriptions", id), in, &out)
	return out, err
}

func (c *ReferenceClient) DeleteSubscription(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, itemPath("/subscriptions", id), nil, nil)
}
