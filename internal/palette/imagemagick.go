package palette

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ImageMagick reduces the palette by running `convert FILE -type Palette FILE`.
type ImageMagick struct {
	binary  string
	timeout time.Duration
}

// NewImageMagick creates a reducer running binary (default "convert"). A
// positive timeout bounds each invocation.
func NewImageMagick(binary string, timeout time.Duration) *ImageMagick {
	if binary == "" {
		binary = "convert"
	}
	return &ImageMagick{binary: binary, timeout: timeout}
}

func (m *ImageMagick) Reduce(ctx context.Context, path string) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, m.binary, path, "-type", "Palette", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", m.binary, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %s", m.binary, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("run %s: %w", m.binary, err)
	}
	return nil
}
