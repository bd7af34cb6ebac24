package frame

import (
	"bytes"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/GriffinCanCode/stripscan/internal/errors"
)

// FilePlaceholder in a capture command is replaced with the output path.
const FilePlaceholder = "{file}"

type commandBackend struct {
	args    []string
	tempDir string
}

func (c *commandBackend) captureRaw() []byte {
	tmpFile := filepath.Join(c.tempDir, "frame.jpg")
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = strings.ReplaceAll(a, FilePlaceholder, tmpFile)
	}

	cmd := exec.Command(args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Error("frame capture command failed", "error", err, "stderr", stderr.String())
		return nil
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		slog.Error("failed to read captured frame", "error", err)
		return nil
	}
	os.Remove(tmpFile)
	return data
}

func (c *commandBackend) cleanup() {
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

// NewCommandSource runs an external capture tool (for example
// "fswebcam -q --no-banner {file}") for every frame.
func NewCommandSource(command string) (Source, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "empty capture command")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeFrameUnavailable, "capture tool %q not found", args[0])
	}
	tmpDir, err := os.MkdirTemp("", "stripscan-frame-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create frame temp dir")
	}
	return newBase(&commandBackend{args: args, tempDir: tmpDir}), nil
}
