package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

// Config controls the recognition backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client uploads frames to the NovaSight recognition services.
type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("NOVASIGHT_BASE_URL is not configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: client}, nil
}

// Upload posts the frame as multipart field "file" to the mode's route. The
// metadata, if any, travels as query parameters.
func (c *Client) Upload(ctx context.Context, req ports.UploadRequest) (domain.RecognitionResult, error) {
	if len(req.Frame.Data) == 0 {
		return nil, errors.New("frame is empty")
	}
	contentType := req.Frame.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = string(req.Mode) + ".jpg"
	}

	request := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", fileName, contentType, bytes.NewReader(req.Frame.Data))
	if len(req.Metadata) > 0 {
		request.SetQueryParams(req.Metadata)
	}

	resp, err := request.Post(req.Route)
	if err != nil {
		return nil, fmt.Errorf("upload to %s: %w", req.Route, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("upload to %s: status=%d body=%s", req.Route, resp.StatusCode(), truncate(resp.String(), 256))
	}

	var result domain.RecognitionResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Route, err)
	}
	if result == nil {
		result = domain.RecognitionResult{}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
