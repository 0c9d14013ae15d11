package stations

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
)

// suffixes yt-dlp leaves behind for unfinished downloads
var transientSuffixes = []string{".part", ".ytdl", ".temp"}

// S3LocateOutput finds the file yt-dlp produced for a basename.
type S3LocateOutput struct{}

func NewS3LocateOutput() *S3LocateOutput { return &S3LocateOutput{} }

func (s *S3LocateOutput) Run(dir, base string, class models.FormatClass) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ports.ErrIOFailure, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	name, ok := PickOutput(names, base, class)
	if !ok {
		return "", fmt.Errorf("%w: no output for %s in %s", ports.ErrDownloadIncomplete, base, dir)
	}
	return filepath.Join(dir, name), nil
}

// PickOutput selects the produced file from a directory listing. Video
// downloads are written to an exact "<base>.mp4". Audio downloads keep
// whatever extension yt-dlp chose, possibly with a format tag in between
// ("<base>.f140.m4a"), so any "<base>." prefix is accepted.
func PickOutput(names []string, base string, class models.FormatClass) (string, bool) {
	if base == "" {
		return "", false
	}

	if class == models.FormatVideo {
		want := base + ".mp4"
		for _, n := range names {
			if n == want {
				return n, true
			}
		}
		return "", false
	}

	var hits []string
	for _, n := range names {
		if strings.HasPrefix(n, base+".") && !isTransient(n) {
			hits = append(hits, n)
		}
	}
	if len(hits) == 0 {
		return "", false
	}
	sort.Strings(hits)
	return hits[0], true
}

func isTransient(name string) bool {
	for _, suf := range transientSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}
