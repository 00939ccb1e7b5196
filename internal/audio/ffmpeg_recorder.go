package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

// FFMPEGRecorder records voice commands from the microphone into a temporary
// file using ffmpeg.
type FFMPEGRecorder struct {
	command string
	dir     string
}

func NewFFMPEGRecorder(command string, dir string) *FFMPEGRecorder {
	if command == "" {
		command = "ffmpeg"
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &FFMPEGRecorder{command: command, dir: dir}
}

type outputFormat struct {
	ext         string
	contentType string
	args        []string
}

func formatFor(name string) (outputFormat, error) {
	switch name {
	case "", "m4a":
		return outputFormat{ext: ".m4a", contentType: "audio/m4a", args: []string{"-c:a", "aac", "-f", "ipod"}}, nil
	case "wav":
		return outputFormat{ext: ".wav", contentType: "audio/wav", args: []string{"-c:a", "pcm_s16le", "-f", "wav"}}, nil
	default:
		return outputFormat{}, fmt.Errorf("unsupported recording format %q", name)
	}
}

func (r *FFMPEGRecorder) Start(ctx context.Context, cfg ports.RecordingConfig) (ports.Recording, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	format, err := formatFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	path := filepath.Join(r.dir, "novasight-command-"+id+format.ext)

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
	}
	args = append(args, format.args...)
	args = append(args, path)

	// The recording outlives the request that started it; Stop ends it.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), r.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = os.Remove(path)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before recording started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before recording started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegRecording{
		id:          id,
		path:        path,
		contentType: format.contentType,
		started:     time.Now(),
		stderr:      &stderr,
		process:     cmd.Process,
		waitErr:     waitErr,
	}, nil
}

type ffmpegRecording struct {
	id          string
	path        string
	contentType string
	started     time.Time

	stderr  *bytes.Buffer
	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
	duration time.Duration
}

// Stop ends the capture and returns the finished clip. The temporary file is
// removed once read.
func (r *ffmpegRecording) Stop() (domain.AudioClip, error) {
	r.halt()
	defer os.Remove(r.path)

	if r.stopErr != nil {
		return domain.AudioClip{}, r.stopErr
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return domain.AudioClip{}, fmt.Errorf("failed to read recording: %w", err)
	}
	return domain.AudioClip{
		ID:          r.id,
		Data:        data,
		ContentType: r.contentType,
		Duration:    r.duration,
	}, nil
}

func (r *ffmpegRecording) Discard() error {
	r.halt()
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *ffmpegRecording) halt() {
	r.stopOnce.Do(func() {
		r.duration = time.Since(r.started)
		if r.process != nil {
			_ = r.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-r.waitErr:
			if ok {
				r.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if r.process != nil {
				_ = r.process.Kill()
			}
			err, ok := <-r.waitErr
			if ok {
				r.stopErr = normalizeStopErr(err)
			}
		}

		if r.stopErr != nil && r.stderr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, stringsTrimSpaceSafe(r.stderr.String()))
		}
	})
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
