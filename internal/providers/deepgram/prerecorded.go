package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"novasight/internal/domain"
)

// PrerecordedTranscriber posts a finished clip to /listen in one request.
type PrerecordedTranscriber struct {
	cfg  Config
	http *resty.Client
}

func NewPrerecordedTranscriber(cfg Config, timeout time.Duration) *PrerecordedTranscriber {
	cfg = cfg.withDefaults()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.APIBaseURL).
		SetTimeout(timeout)
	return &PrerecordedTranscriber{cfg: cfg, http: client}
}

func (t *PrerecordedTranscriber) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return "", errors.New("DEEPGRAM_API_KEY is not configured")
	}
	if len(clip.Data) == 0 {
		return "", errors.New("audio clip is empty")
	}
	contentType := clip.ContentType
	if contentType == "" {
		contentType = "audio/m4a"
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Token "+t.cfg.APIKey).
		SetHeader("Content-Type", contentType).
		SetQueryParams(map[string]string{
			"model":        t.cfg.Model,
			"language":     t.cfg.Language,
			"smart_format": fmt.Sprintf("%t", t.cfg.SmartFormat),
		}).
		SetBody(clip.Data).
		Post("/listen")
	if err != nil {
		return "", fmt.Errorf("deepgram request failed: %w", err)
	}

	var response listenResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		if !resp.IsSuccess() {
			return "", fmt.Errorf("deepgram returned status %d", resp.StatusCode())
		}
		return "", fmt.Errorf("failed to decode deepgram response: %w", err)
	}
	if !resp.IsSuccess() {
		message := strings.TrimSpace(response.ErrMsg)
		if message == "" {
			message = strings.TrimSpace(response.Message)
		}
		return "", fmt.Errorf("deepgram returned status %d: %s", resp.StatusCode(), message)
	}
	return extractTranscript(response), nil
}
