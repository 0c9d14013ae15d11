package stations

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

const stderrTailLines = 8

// S2FetchMedia runs the actual yt-dlp download to a file.
type S2FetchMedia struct {
	bin        string
	cookieFile string
	log        *logger.ZapLogger
}

func NewS2FetchMedia(bin, cookieFile string, log *logger.ZapLogger) *S2FetchMedia {
	return &S2FetchMedia{bin: bin, cookieFile: cookieFile, log: log}
}

// Fetch blocks until the process exits. Cancelling ctx kills it.
func (s *S2FetchMedia) Fetch(ctx context.Context, pageURL, format, output string) error {
	start := time.Now()

	args := []string{"--no-playlist", "--no-progress", "-f", format, "-o", output}
	if s.cookieFile != "" {
		args = append(args, "--cookies", s.cookieFile)
	}
	args = append(args, "--", pageURL)

	tail := &tailWriter{max: stderrTailLines}
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Stderr = tail
	// ffmpeg children may hold stderr open after yt-dlp is killed
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		s.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "yt-dlp download failed",
			Error:   err,
			Fields: map[string]any{
				"url":    pageURL,
				"format": format,
				"dur":    time.Since(start).String(),
				"stderr": tail.String(),
			},
		})
		return fmt.Errorf("%w: %v", ports.ErrDownloadFailed, err)
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "yt-dlp download finished",
		Fields: map[string]any{
			"url":    pageURL,
			"format": format,
			"dur":    time.Since(start).String(),
		},
	})
	return nil
}

// tailWriter keeps the last max lines written to it.
type tailWriter struct {
	max     int
	lines   []string
	partial []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.push(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *tailWriter) push(line string) {
	w.lines = append(w.lines, strings.TrimRight(line, "\r"))
	if len(w.lines) > w.max {
		w.lines = w.lines[len(w.lines)-w.max:]
	}
}

func (w *tailWriter) String() string {
	lines := w.lines
	if len(w.partial) > 0 {
		lines = append(append([]string{}, lines...), string(w.partial))
	}
	return strings.Join(lines, "\n")
}
