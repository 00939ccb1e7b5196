package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"novasight/internal/domain"
)

// StreamParams describes the audio sent over the socket. An empty Encoding
// lets Deepgram detect a containerized format such as WAV or M4A.
type StreamParams struct {
	Encoding       string
	SampleRate     int
	Channels       int
	InterimResults bool
	// ChunkSize is the websocket frame size in bytes.
	ChunkSize int
}

// StreamingTranscriber replays a finished clip over the live /listen socket
// and joins the final segments it returns.
type StreamingTranscriber struct {
	cfg       Config
	params    StreamParams
	dialer    *websocket.Dialer
	chunkSize int
}

func NewStreamingTranscriber(cfg Config, params StreamParams) *StreamingTranscriber {
	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 8192
	}
	return &StreamingTranscriber{
		cfg:       cfg.withDefaults(),
		params:    params,
		dialer:    websocket.DefaultDialer,
		chunkSize: chunkSize,
	}
}

func (t *StreamingTranscriber) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return "", errors.New("DEEPGRAM_API_KEY is not configured")
	}
	if len(clip.Data) == 0 {
		return "", errors.New("audio clip is empty")
	}

	wsURL, err := buildListenURL(t.cfg, t.params)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.cfg.APIKey)

	conn, _, err := t.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}
	defer conn.Close()
	stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopWatch()

	transcript := newTranscriptAggregator()
	var g errgroup.Group
	g.Go(func() error { return sendClip(conn, clip.Data, t.chunkSize) })
	g.Go(func() error { return receiveResults(conn, transcript) })
	streamErr := g.Wait()

	raw := transcript.Raw()
	if raw != "" {
		return raw, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return "", streamErr
}

// sendClip writes the clip as binary frames and then asks Deepgram to
// flush its remaining results.
func sendClip(conn *websocket.Conn, data []byte, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = 4096
	}
	for len(data) > 0 {
		n := min(chunkSize, len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data[:n]); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to stream audio: %w", err)
		}
		data = data[n:]
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// receiveResults feeds transcript events into agg until Deepgram closes the
// socket.
func receiveResults(conn *websocket.Conn, agg *transcriptAggregator) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil
			}
			return fmt.Errorf("failed to read provider event: %w", err)
		}

		var event listenResponse
		if json.Unmarshal(payload, &event) != nil {
			continue
		}
		if strings.EqualFold(event.Type, "Error") {
			message := strings.TrimSpace(event.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			return errors.New(message)
		}
		if text := extractTranscript(event); text != "" {
			agg.Add(text, event.IsFinal || event.SpeechFinal)
		}
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

func buildListenURL(cfg Config, params StreamParams) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = defaultAPIBaseURL
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := url.Values{}
	query.Set("model", cfg.Model)
	query.Set("smart_format", strconv.FormatBool(cfg.SmartFormat))
	query.Set("interim_results", strconv.FormatBool(params.InterimResults))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	// Containerized audio (WAV, M4A) describes itself.
	if params.Encoding != "" {
		sampleRate := params.SampleRate
		if sampleRate <= 0 {
			sampleRate = 16000
		}
		query.Set("encoding", params.Encoding)
		query.Set("sample_rate", strconv.Itoa(sampleRate))
		query.Set("channels", strconv.Itoa(max(params.Channels, 1)))
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
