package edgetts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// ExecPlayer pipes PCM into an external player process such as ffplay.
type ExecPlayer struct {
	command string
	args    []string
}

// DefaultPlayerArgs are passed to ffplay. {rate} and {layout} are replaced
// per utterance.
var DefaultPlayerArgs = []string{
	"-nodisp",
	"-autoexit",
	"-loglevel", "error",
	"-f", "s16le",
	"-ar", "{rate}",
	"-ch_layout", "{layout}",
	"-i", "-",
}

func NewExecPlayer(command string, args []string) *ExecPlayer {
	if command == "" {
		command = "ffplay"
	}
	if len(args) == 0 {
		args = DefaultPlayerArgs
	}
	return &ExecPlayer{command: command, args: args}
}

func (p *ExecPlayer) Play(ctx context.Context, pcm io.Reader, sampleRate, channels int) error {
	cmd := exec.CommandContext(ctx, p.command, expandArgs(p.args, sampleRate, channels)...)
	cmd.Stdin = pcm
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return fmt.Errorf("%s exited: %w: %s", p.command, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s failed: %w", p.command, err)
	}
	return nil
}

func expandArgs(args []string, sampleRate, channels int) []string {
	layout := "stereo"
	if channels == 1 {
		layout = "mono"
	}
	replacer := strings.NewReplacer(
		"{rate}", strconv.Itoa(sampleRate),
		"{channels}", strconv.Itoa(channels),
		"{layout}", layout,
	)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}
