package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/lixenwraith/soundkey/audio"
)

// Capture failure classes, never retried
var (
	ErrBlocked  = errors.New("microphone access blocked")
	ErrNotFound = errors.New("no capture device")
	ErrCapture  = errors.New("capture failed")
	ErrClosed   = errors.New("capture closed")
)

// Classify wraps err with the failure class it belongs to
// Already-classified errors are returned unchanged
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrCapture) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist), errors.Is(err, audio.ErrNoAudioBackend):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	// Pulse reports access errors as protocol strings
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	case strings.Contains(msg, "no such entity"), strings.Contains(msg, "connection refused"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrCapture, err)
}
