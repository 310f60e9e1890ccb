package webdav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Client is a minimal WebDAV client covering the operations the job
// orchestration core needs: recursive MKCOL, PUT and DELETE.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

// NewClient creates a new WebDAV client
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webdav configuration: %w", err)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.UploadTimeout},
		config:     cfg,
		logger:     logger,
	}

	if logger != nil {
		logger.Info("webdav client initialized",
			zap.String("base_url", cfg.BaseURL),
		)
	}

	return client, nil
}

// MkdirAll creates a remote collection, creating parent collections one
// segment at a time. 405 means the collection already exists and is not
// an error.
func (c *Client) MkdirAll(ctx context.Context, remotePath string) error {
	current := ""
	for _, part := range strings.Split(remotePath, "/") {
		if part == "" {
			continue
		}
		current += "/" + part

		status, err := c.doMeta(ctx, "MKCOL", current)
		if err != nil {
			return &Error{Op: "MKCOL", Path: current, Err: err}
		}
		if status != http.StatusCreated && status != http.StatusMethodNotAllowed {
			return c.statusError("MKCOL", current, status)
		}
	}
	return nil
}

// Put uploads a stream to a remote path. Pass a negative size when the
// length is not known up front.
func (c *Client) Put(ctx context.Context, remotePath string, r io.Reader, size int64) error {
	status, err := c.do(ctx, http.MethodPut, remotePath, r, size)
	if err != nil {
		return &Error{Op: "PUT", Path: remotePath, Err: err}
	}

	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	return c.statusError("PUT", remotePath, status)
}

// Delete removes a remote file or collection
func (c *Client) Delete(ctx context.Context, remotePath string) error {
	status, err := c.doMeta(ctx, http.MethodDelete, remotePath)
	if err != nil {
		return &Error{Op: "DELETE", Path: remotePath, Err: err}
	}

	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	}
	return c.statusError("DELETE", remotePath, status)
}

// doMeta runs a body-less metadata request under the shorter Timeout;
// PUT stays bounded by the client-wide UploadTimeout.
func (c *Client) doMeta(ctx context.Context, method, remotePath string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.do(ctx, method, remotePath, nil, 0)
}

func (c *Client) do(ctx context.Context, method, remotePath string, body io.Reader, contentLength int64) (int, error) {
	url := c.config.BaseURL + "/" + strings.TrimLeft(remotePath, "/")

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, err
	}

	// Share token as username, empty password.
	req.SetBasicAuth(c.config.ShareToken, "")
	if body != nil {
		if contentLength >= 0 {
			req.ContentLength = contentLength
		}
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) statusError(op, path string, status int) error {
	err := &Error{Op: op, Path: path, StatusCode: status}
	switch status {
	case http.StatusNotFound:
		err.Err = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		err.Err = ErrUnauthorized
	}

	if c.logger != nil {
		c.logger.Warn("webdav request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
	return err
}
