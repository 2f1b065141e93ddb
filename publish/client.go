// Package publish pushes descriptors to an index and pulls them back by key.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// FormField is the multipart field carrying the descriptor on push.
const FormField = "torrentFile"

// MaxDescriptorSize bounds what Pull accepts.
var MaxDescriptorSize int64 = 32 << 20

// StatusError is returned when the index answers with a non 2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, strings.TrimSpace(e.Body))
}

type Client struct {
	PushURL string
	PullURL string
	HTTP    *http.Client
}

func NewClient(pushURL, pullURL string) *Client {
	return &Client{
		PushURL: pushURL,
		PullURL: pullURL,
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Push uploads data under key.
func (c *Client) Push(ctx context.Context, key string, data []byte) error {
	if c.PushURL == "" {
		return fmt.Errorf("push: no push url configured")
	}
	if key == "" {
		return fmt.Errorf("push: empty key")
	}
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	// part filenames lose any directory, the explicit field keeps it
	if err := mw.WriteField("key", key); err != nil {
		return err
	}
	part, err := mw.CreateFormFile(FormField, key)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PushURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// PushFile uploads the descriptor stored at path.
func (c *Client) PushFile(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.Push(ctx, key, data)
}

// Pull fetches the descriptor stored under key.
func (c *Client) Pull(ctx context.Context, key string) ([]byte, error) {
	if c.PullURL == "" {
		return nil, fmt.Errorf("pull: no pull url configured")
	}
	u, err := url.Parse(c.PullURL)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", key, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDescriptorSize+1))
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", key, err)
	}
	if int64(len(data)) > MaxDescriptorSize {
		return nil, fmt.Errorf("pull %s: descriptor larger than %d bytes", key, MaxDescriptorSize)
	}
	return data, nil
}

// PullToFile stores the descriptor under key at dest.
func (c *Client) PullToFile(ctx context.Context, key, dest string) error {
	data, err := c.Pull(ctx, key)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method: resp.Request.Method,
		URL:    resp.Request.URL.String(),
		Code:   resp.StatusCode,
		Body:   string(b),
	}
}
