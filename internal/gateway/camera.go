package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// CaptureRequest mirrors the options of the platform capture flow.
type CaptureRequest struct {
	UseSystemPrompt bool
}

// Camera is a device capture backend.
type Camera interface {
	Capture(ctx context.Context, req CaptureRequest) ([]byte, error)
}

// CameraFunc adapts a function to Camera.
type CameraFunc func(ctx context.Context, req CaptureRequest) ([]byte, error)

// Capture calls f.
func (f CameraFunc) Capture(ctx context.Context, req CaptureRequest) ([]byte, error) {
	return f(ctx, req)
}

// OutputMode says how a capture command hands over the image.
type OutputMode int

const (
	// OutputBytes: the command writes the image to stdout
	// (libcamera-still -n -o -, fswebcam -).
	OutputBytes OutputMode = iota
	// OutputPath: the command prints a file path, as file pickers do
	// (zenity --file-selection).
	OutputPath
)

// exit status file pickers use when the dialog is dismissed
const pickerDismissedStatus = 1

// CommandCamera captures by running an external program.
type CommandCamera struct {
	argv []string
	mode OutputMode
}

// NewCommandCamera splits command on whitespace; no shell is involved.
func NewCommandCamera(command string, mode OutputMode) (*CommandCamera, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("gateway: empty capture command")
	}
	return &CommandCamera{argv: argv, mode: mode}, nil
}

// Capture runs the command and returns the captured image bytes.
func (c *CommandCamera) Capture(ctx context.Context, _ CaptureRequest) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("camera: capture timed out: %w", ctx.Err())
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, &CaptureError{Code: "OperationCanceled", Message: "capture did not finish", Err: ctx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("camera: run %s: %w", c.argv[0], err)
		}
		code := exitErr.ExitCode()
		switch {
		case code == 130 || interrupted(exitErr):
			return nil, &CaptureError{Code: "OperationCanceled", Message: "capture interrupted", Err: err}
		case c.mode == OutputPath && code == pickerDismissedStatus && stdout.Len() == 0:
			return nil, &CaptureError{Code: "USER_CANCEL", Message: "user cancelled", Err: err}
		}
		return nil, fmt.Errorf("camera: %s exited with status %d: %s", filepath.Base(c.argv[0]), code, strings.TrimSpace(stderr.String()))
	}

	if c.mode == OutputPath {
		p := strings.TrimSpace(stdout.String())
		if p == "" {
			return nil, &CaptureError{Message: "no image selected"}
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("camera: read selected file: %w", err)
		}
		return data, nil
	}

	if stdout.Len() == 0 {
		return nil, &CaptureError{Message: "no image captured"}
	}
	return stdout.Bytes(), nil
}

// interrupted reports whether the process was killed by SIGINT. Any other
// signal (SIGSEGV, SIGKILL from the OOM killer) is a failure.
func interrupted(exitErr *exec.ExitError) bool {
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled() && ws.Signal() == syscall.SIGINT
}

type noCamera struct{}

func (noCamera) Capture(context.Context, CaptureRequest) ([]byte, error) {
	return nil, fmt.Errorf("camera: no capture backend configured")
}
