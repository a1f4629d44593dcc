// Package audio captures session audio with an ffmpeg subprocess.
package audio

import (
	"fmt"
	"os/exec"
	"time"
)

// Config configures the ffmpeg recorder.
type Config struct {
	// FFmpegPath is the ffmpeg binary. Defaults to "ffmpeg" on PATH.
	FFmpegPath string

	// Source is the capture input passed to ffmpeg (e.g. an ALSA or
	// PulseAudio device). Defaults to the system default device.
	Source string

	// Format is the container extension for the output file. Defaults
	// to "wav".
	Format string

	// StopTimeout is how long Stop waits for a graceful exit before the
	// process is killed. Defaults to 5s.
	StopTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Source == "" {
		c.Source = "default"
	}
	if c.Format == "" {
		c.Format = "wav"
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 5 * time.Second
	}
}

// exitedBySignal reports whether the process ended due to an interrupt or
// kill signal, which is the expected way a recording stops.
func exitedBySignal(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ProcessState == nil {
		return false
	}
	state := exitErr.ProcessState.String()
	return state == "signal: interrupt" || state == "signal: killed" || exitErr.ExitCode() == 255
}

// outputFilename names the capture file from its start time.
func outputFilename(start time.Time, format string) string {
	return fmt.Sprintf("audio-%s.%s", start.UTC().Format("20060102-150405"), format)
}
