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

var (
	_ ports.MetadataResolver = (*S1ResolveMeta)(nil)
	_ ports.MediaFetcher     = (*S2FetchMedia)(nil)
)

// S1ResolveMeta runs yt-dlp in metadata-only mode: no media is fetched.
type S1ResolveMeta struct {
	bin        string
	cookieFile string
	timeout    time.Duration
	log        *logger.ZapLogger
}

func NewS1ResolveMeta(bin, cookieFile string, timeout time.Duration, log *logger.ZapLogger) *S1ResolveMeta {
	return &S1ResolveMeta{bin: bin, cookieFile: cookieFile, timeout: timeout, log: log}
}

func (s *S1ResolveMeta) Title(ctx context.Context, pageURL string) (string, error) {
	out, err := s.run(ctx, pageURL, "--get-title")
	if err != nil {
		return "", err
	}
	return firstLine(out)
}

func (s *S1ResolveMeta) SourceID(ctx context.Context, pageURL string) (string, error) {
	out, err := s.run(ctx, pageURL, "--get-id")
	if err != nil {
		return "", err
	}
	return firstLine(out)
}

// StreamURL asks for the direct url of the best audio stream.
func (s *S1ResolveMeta) StreamURL(ctx context.Context, pageURL string) (string, error) {
	out, err := s.run(ctx, pageURL, "-g", "-f", "bestaudio")
	if err != nil {
		return "", err
	}

	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimSpace(ln)
		if strings.HasPrefix(ln, "http") {
			return ln, nil
		}
	}
	return "", fmt.Errorf("%w: no stream url in yt-dlp output", ports.ErrDownloadFailed)
}

func (s *S1ResolveMeta) run(ctx context.Context, pageURL string, flags ...string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := append([]string{"--no-playlist", "--no-warnings"}, flags...)
	if s.cookieFile != "" {
		args = append(args, "--cookies", s.cookieFile)
	}
	args = append(args, "--", pageURL)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	out, err := cmd.Output()
	if err != nil {
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "yt-dlp metadata query failed",
			Error:   err,
			Fields: map[string]any{
				"url":    pageURL,
				"flags":  strings.Join(flags, " "),
				"stderr": trim(strings.TrimSpace(stderr.String()), 280),
			},
		})
		return "", fmt.Errorf("%w: yt-dlp %s: %v", ports.ErrDownloadFailed, flags[0], err)
	}
	return string(out), nil
}

func firstLine(out string) (string, error) {
	for _, ln := range strings.Split(out, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			return ln, nil
		}
	}
	return "", fmt.Errorf("%w: empty yt-dlp output", ports.ErrDownloadFailed)
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
