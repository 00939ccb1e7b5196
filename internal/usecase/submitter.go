package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/ports"
)

// DetectionSubmitter uploads frames and narrates the extracted result.
type DetectionSubmitter struct {
	backend  ports.RecognitionBackend
	table    *modes.Table
	narrator *SpeechNarrator
	logger   *slog.Logger
}

func NewDetectionSubmitter(
	backend ports.RecognitionBackend,
	table *modes.Table,
	narrator *SpeechNarrator,
	logger *slog.Logger,
) *DetectionSubmitter {
	return &DetectionSubmitter{
		backend:  backend,
		table:    table,
		narrator: narrator,
		logger:   componentLogger(logger, "submitter"),
	}
}

// Submit uploads one frame for mode. It never retries; the next capture tick
// is the retry.
func (s *DetectionSubmitter) Submit(ctx context.Context, frame domain.Frame, mode domain.DetectionMode, extra map[string]string) (domain.RecognitionResult, error) {
	spec := s.table.Lookup(mode)
	result, err := s.backend.Upload(ctx, ports.UploadRequest{
		Route:    spec.Route,
		Mode:     spec.Mode,
		FileName: spec.Intent + ".jpg",
		Frame:    frame,
		Metadata: extra,
	})
	if err != nil {
		return nil, fmt.Errorf("submit %s frame %s: %w", spec.Mode, frame.ID, err)
	}
	s.logger.Debug("recognition result", "mode", spec.Mode, "frame", frame.ID, "fields", len(result))
	return result, nil
}

// Narrate speaks the phrase extracted from result. Results that arrive while
// a voice command is being recorded are dropped.
func (s *DetectionSubmitter) Narrate(ctx context.Context, mode domain.DetectionMode, result domain.RecognitionResult) (string, error) {
	phrase := ExtractPhrase(s.table.Lookup(mode), result)
	if phrase == "" {
		s.logger.Debug("empty recognition result", "mode", mode)
		return "", nil
	}
	if _, err := s.narrator.Speak(ctx, phrase); err != nil {
		if errors.Is(err, ErrSpeechRefused) {
			s.logger.Info("dropping result while listening", "mode", mode)
			return "", nil
		}
		return "", err
	}
	return phrase, nil
}

// ExtractPhrase reads the mode's result field and prepends its leading
// phrase. When the field is missing the whole response is spoken as JSON.
func ExtractPhrase(spec modes.Spec, result domain.RecognitionResult) string {
	value, ok := result[spec.ResultField]
	if !ok || value == nil {
		raw, err := json.Marshal(result)
		if err != nil || len(result) == 0 {
			return ""
		}
		return string(raw)
	}

	var text string
	switch v := value.(type) {
	case string:
		text = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprint(v)
		} else {
			text = string(raw)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return spec.LeadingPhrase + text
}
