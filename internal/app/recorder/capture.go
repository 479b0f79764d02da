package recorder

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// CaptureRequest describes one bounded-duration capture of a stream.
type CaptureRequest struct {
	JobID      int64
	StreamURL  string
	OutputPath string
	Duration   time.Duration

	// Copy selects stream copy; when false the audio is re-encoded with
	// Codec (and Bitrate when nonzero).
	Copy    bool
	Codec   string
	Bitrate int
}

// CaptureResult reports how the capture process ended.
type CaptureResult struct {
	JobID      int64
	OutputPath string
	Err        error
	Stderr     string
}

// Runner executes a capture to completion. Implementations block for the
// full capture duration; the worker runs each capture on its own goroutine.
type Runner interface {
	Run(req CaptureRequest) CaptureResult
}

// FFmpegRunner captures with a single ffmpeg process bound to the requested
// duration. The process owns its own deadline (-t); nothing terminates it
// early. Source drops are ridden out by ffmpeg's reconnect options: up to
// five minutes of total reconnect delay with a 30s per-read network timeout.
type FFmpegRunner struct {
	Binary string
}

func NewFFmpegRunner() *FFmpegRunner {
	return &FFmpegRunner{Binary: "ffmpeg"}
}

// codecFor maps an output format to its ffmpeg encoder.
func codecFor(format string) string {
	codecs := map[string]string{
		"mp3": "libmp3lame",
		"aac": "aac",
		"m4a": "aac",
		"mp4": "aac",
	}
	if codec, ok := codecs[format]; ok {
		return codec
	}
	return "libmp3lame"
}

func (r *FFmpegRunner) Run(req CaptureRequest) CaptureResult {
	seconds := int(req.Duration.Seconds())

	args := []string{
		"-y",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_on_network_error", "1",
		"-reconnect_delay_max", "300",
		"-rw_timeout", "30000000", // microseconds
		"-i", req.StreamURL,
	}
	if req.Copy {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", req.Codec)
		if req.Bitrate > 0 {
			args = append(args, "-b:a", fmt.Sprintf("%dk", req.Bitrate))
		}
	}
	args = append(args, "-t", strconv.Itoa(seconds), req.OutputPath)

	cmd := exec.Command(r.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return CaptureResult{
		JobID:      req.JobID,
		OutputPath: req.OutputPath,
		Err:        err,
		Stderr:     stderr.String(),
	}
}
