// Package pinning uploads content to a Pinata-compatible pinning service
// and resolves content identifiers to gateway URLs.
package pinning

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
)

// Pinner stores a payload durably and resolves content identifiers to
// public URLs.
type Pinner interface {
	PinFile(ctx context.Context, name string, contentType string, content []byte) (string, error)
	GatewayURL(cid string) string
}

// Config contains pinning service settings.
type Config struct {
	// BaseURL is the pinning API endpoint, e.g. https://api.pinata.cloud.
	BaseURL string

	// GatewayURL is the public gateway content is served from.
	GatewayURL string

	// JWT authenticates API requests.
	JWT string

	// Timeout bounds each upload request.
	Timeout time.Duration

	Log *slog.Logger
}

// Client is the HTTP Pinner implementation.
type Client struct {
	cfg  *Config
	http *http.Client
	log  *slog.Logger
}

// New creates a pinning client. A zero timeout defaults to 30 seconds;
// uploads are the slowest external call the gateway makes.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  cfg.Log,
	}
}

// PinFile uploads content as a multipart file and returns the resulting CID.
func (c *Client) PinFile(ctx context.Context, name string, contentType string, content []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("creating multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("writing multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	url := c.cfg.BaseURL + "/pinning/pinFileToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("building pin request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.JWT)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinning %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("pinning service rejected upload",
			"status", resp.StatusCode, "body", string(detail))
		return "", fmt.Errorf("pinning service returned status %d", resp.StatusCode)
	}

	var pinned struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", fmt.Errorf("decoding pin response: %w", err)
	}
	if pinned.IpfsHash == "" {
		return "", fmt.Errorf("pinning service returned empty cid")
	}
	return pinned.IpfsHash, nil
}

// GatewayURL returns the public URL content is fetchable from.
func (c *Client) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", c.cfg.GatewayURL, cid)
}
