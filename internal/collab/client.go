package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ErrRejected matches every RejectedError.
var ErrRejected = errors.New("rejected by server")

// RejectedError is a well-formed answer that refused the request.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return ErrRejected.Error()
	}
	return ErrRejected.Error() + ": " + e.Reason
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func rejected(reason string) error { return &RejectedError{Reason: reason} }

// Client is a thin REST client for the gallery service.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// NewClient returns a client for baseURL. hc may be nil.
func NewClient(baseURL, token string, hc *http.Client, logger *slog.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), token: token, http: hc, logger: logger}
}

// ListImages fetches the gallery.
func (c *Client) ListImages(ctx context.Context) (Gallery, error) {
	var g Gallery
	if err := c.do(ctx, http.MethodGet, "/api/images", nil, &g); err != nil {
		return Gallery{}, err
	}
	return g, nil
}

// UpdateImage replaces an image's editable metadata.
func (c *Client) UpdateImage(ctx context.Context, id string, u ImageUpdate) error {
	var r Result
	if err := c.do(ctx, http.MethodPut, "/api/images/"+url.PathEscape(id), u, &r); err != nil {
		return err
	}
	return r.err()
}

// ClassifyImage runs object detection on a stored image and returns the object count.
func (c *Client) ClassifyImage(ctx context.Context, id string) (int, error) {
	var r struct {
		Result
		ObjectsCount int `json:"objects_count"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/images/"+url.PathEscape(id)+"/classify", nil, &r); err != nil {
		return 0, err
	}
	if err := r.err(); err != nil {
		return 0, err
	}
	return r.ObjectsCount, nil
}

// SendImageTelegram forwards a stored image to the Telegram bot.
func (c *Client) SendImageTelegram(ctx context.Context, id string) error {
	var r Result
	if err := c.do(ctx, http.MethodPost, "/api/images/"+url.PathEscape(id)+"/telegram", nil, &r); err != nil {
		return err
	}
	return r.err()
}

// DeleteImage removes a stored image. This endpoint answers {status:"success"} or {error}.
func (c *Client) DeleteImage(ctx context.Context, id string) error {
	var r struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.do(ctx, http.MethodDelete, "/delete_image/"+url.PathEscape(id), nil, &r); err != nil {
		return err
	}
	switch {
	case r.Status == "success":
		return nil
	case r.Error != "":
		return rejected(r.Error)
	default:
		return rejected("invalid response")
	}
}

// Labels returns every class the detector knows.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	var r struct {
		Labels []string `json:"labels"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/yolo_labels", nil, &r); err != nil {
		return nil, err
	}
	return r.Labels, nil
}

// DangerousClasses returns the classes that trigger a Telegram alert.
func (c *Client) DangerousClasses(ctx context.Context) ([]string, error) {
	var r struct {
		DangerousClasses []string `json:"dangerous_classes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notification_classes", nil, &r); err != nil {
		return nil, err
	}
	return r.DangerousClasses, nil
}

// SetDangerousClasses replaces the alerting classes.
func (c *Client) SetDangerousClasses(ctx context.Context, classes []string) error {
	body := struct {
		DangerousClasses []string `json:"dangerous_classes"`
	}{DangerousClasses: classes}
	if body.DangerousClasses == nil {
		body.DangerousClasses = []string{}
	}
	var r Result
	if err := c.do(ctx, http.MethodPost, "/api/notification_classes", body, &r); err != nil {
		return err
	}
	return r.err()
}

// TestTelegram asks the service to send a test notification.
func (c *Client) TestTelegram(ctx context.Context) error {
	var r Result
	if err := c.do(ctx, http.MethodPost, "/api/telegram/test", nil, &r); err != nil {
		return err
	}
	return r.err()
}

func (r Result) err() error {
	if r.Success {
		return nil
	}
	return rejected(r.Error)
}

// do sends one request and decodes the JSON answer into out. Non-2xx answers are
// still decoded when they carry a JSON body, since the service reports reasons that way.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", "error", cerr)
		}
	}()
	c.logger.Debug("collab request", "method", method, "path", path, "status", resp.StatusCode, "request_id", reqID)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return rejected(e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: invalid response: %w", method, path, err)
	}
	return nil
}
