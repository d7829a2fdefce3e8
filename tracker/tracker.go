// Package tracker talks to the remote configuration tracker, a lookup
// service mapping configuration image hashes to full wallet
// configurations. The engine consumes it as a plain key/value lookup
// and never derives configuration cryptography from it.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/enchanter-io/enchanter/digest"
	engerr "github.com/enchanter-io/enchanter/errors"
	"github.com/enchanter-io/enchanter/walletconfig"
)

// Client is an HTTP JSON client for the configuration tracker.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a tracker client. timeout bounds each round trip.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "tracker").Logger(),
	}
}

type configOfImageHashRequest struct {
	ImageHash string `json:"imageHash"`
}

type configOfImageHashResponse struct {
	Config *walletconfig.Config `json:"config"`
}

type saveConfigRequest struct {
	Config *walletconfig.Config `json:"config"`
}

// ConfigOfImageHash looks up the full configuration behind an image
// hash. Returns (nil, nil) when the tracker does not know the hash.
func (c *Client) ConfigOfImageHash(ctx context.Context, imageHash string) (*walletconfig.Config, error) {
	var resp configOfImageHashResponse
	err := c.post(ctx, "/rpc/Sessions/ConfigOfImageHash", configOfImageHashRequest{ImageHash: imageHash}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// SaveConfig publishes a full configuration so other parties can resolve
// its image hash.
func (c *Client) SaveConfig(ctx context.Context, cfg *walletconfig.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return c.post(ctx, "/rpc/Sessions/SaveConfig", saveConfigRequest{Config: cfg}, nil)
}

// ResolveUpdate resolves a wire update reference into a full entry by
// looking up the target configuration's checkpoint. A hash the tracker
// cannot resolve blocks adoption with an incomplete-configuration error.
func (c *Client) ResolveUpdate(ctx context.Context, wallet, imageHash string) (digest.UpdateEntry, error) {
	cfg, err := c.ConfigOfImageHash(ctx, imageHash)
	if err != nil {
		return digest.UpdateEntry{}, err
	}
	if cfg == nil {
		return digest.UpdateEntry{}, engerr.NewIncompleteConfigError(
			fmt.Sprintf("tracker cannot resolve configuration %s", imageHash))
	}
	return digest.UpdateEntry{
		Wallet:     wallet,
		ImageHash:  imageHash,
		Checkpoint: walletconfig.CheckpointOf(cfg),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return engerr.NewTrackerError("failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return engerr.NewTrackerError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return engerr.NewTrackerError("tracker request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return engerr.NewTrackerError(fmt.Sprintf("tracker returned status %d for %s", resp.StatusCode, path), nil)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return engerr.NewTrackerError("failed to read tracker response", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engerr.NewTrackerError("failed to decode tracker response", err)
	}
	return nil
}
