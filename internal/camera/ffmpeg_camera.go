package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"novasight/internal/domain"
)

// Options configures FFMPEGCamera.
type Options struct {
	Command     string
	InputFormat string
	FrontDevice string
	BackDevice  string
	MaxWidth    int
	Quality     int
}

// FFMPEGCamera grabs one still per Capture call by running ffmpeg against a
// video device.
type FFMPEGCamera struct {
	opts Options
	now  func() time.Time
}

func NewFFMPEGCamera(opts Options) *FFMPEGCamera {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	if opts.InputFormat == "" {
		opts.InputFormat = "v4l2"
	}
	if opts.BackDevice == "" {
		opts.BackDevice = "/dev/video0"
	}
	if opts.FrontDevice == "" {
		opts.FrontDevice = opts.BackDevice
	}
	return &FFMPEGCamera{opts: opts, now: time.Now}
}

func (c *FFMPEGCamera) device(facing domain.Facing) string {
	if facing == domain.FacingFront {
		return c.opts.FrontDevice
	}
	return c.opts.BackDevice
}

func (c *FFMPEGCamera) Capture(ctx context.Context, facing domain.Facing) (domain.Frame, error) {
	device := c.device(facing)
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-f", c.opts.InputFormat,
		"-i", device,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	capturedAt := c.now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Frame{}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return domain.Frame{}, fmt.Errorf("capture from %s: %w: %s", device, err, strings.TrimSpace(stderr.String()))
		}
		return domain.Frame{}, fmt.Errorf("capture from %s: %w", device, err)
	}

	data, err := NormalizeJPEG(stdout.Bytes(), c.opts.MaxWidth, c.opts.Quality)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("capture from %s: %w", device, err)
	}

	return domain.Frame{
		ID:          uuid.New().String(),
		Data:        data,
		ContentType: "image/jpeg",
		CapturedAt:  capturedAt,
	}, nil
}
