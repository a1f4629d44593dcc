package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rumba-live/rumba/pkg/session"
)

// Verify interface compliance.
var _ session.AudioRecorder = (*FFmpegRecorder)(nil)

// ErrNotRecording is returned by Stop when no capture is running.
var ErrNotRecording = errors.New("no recording in progress")

// ErrAlreadyRecording is returned by Start when a capture is running.
var ErrAlreadyRecording = errors.New("recording already in progress")

// FFmpegRecorder records audio by running an ffmpeg subprocess writing into
// the session directory. Only one capture may run at a time.
type FFmpegRecorder struct {
	cfg Config
	log *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewFFmpegRecorder creates a recorder with the given configuration.
func NewFFmpegRecorder(cfg Config, log *slog.Logger) *FFmpegRecorder {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &FFmpegRecorder{cfg: cfg, log: log}
}

// Start launches ffmpeg writing into dir and returns the capture start time.
func (r *FFmpegRecorder) Start(_ context.Context, dir string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return time.Time{}, ErrAlreadyRecording
	}

	start := time.Now()
	output := filepath.Join(dir, outputFilename(start, r.cfg.Format))

	// The process must outlive the request context; recording stops only
	// through Stop.
	cmd := exec.Command(r.cfg.FFmpegPath, buildArgs(r.cfg.Source, output)...)
	if err := cmd.Start(); err != nil {
		return time.Time{}, fmt.Errorf("starting ffmpeg: %w", err)
	}

	r.cmd = cmd
	r.log.Info("audio recording started", "output", output, "pid", cmd.Process.Pid)
	return start, nil
}

// Stop interrupts the running ffmpeg process and waits for it to exit,
// killing it after the configured timeout.
func (r *FFmpegRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return ErrNotRecording
	}
	cmd := r.cmd
	r.cmd = nil

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		r.log.Warn("interrupt failed, killing ffmpeg", "error", err)
		_ = cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !exitedBySignal(err) {
			return fmt.Errorf("ffmpeg exited abnormally: %w", err)
		}
		r.log.Info("audio recording stopped")
		return nil
	case <-time.After(r.cfg.StopTimeout):
		r.log.Warn("ffmpeg did not exit in time, killing")
		_ = cmd.Process.Kill()
		<-done
		return nil
	}
}

// buildArgs assembles the ffmpeg command line for a capture.
func buildArgs(source, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-i", source,
		"-ac", "2",
		"-y",
		output,
	}
}
