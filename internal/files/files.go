// Package files resolves opaque content handles into staged local
// copies ready for upload.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var videoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".3gp":  true,
}

// IsVideoName reports whether the display name looks like a video file.
func IsVideoName(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// Stage resolves handle (a local content path) to its display name and
// copies the bytes into cacheDir. Returns the display name and the
// staged path.
func Stage(handle, cacheDir string) (string, string, error) {
	name := filepath.Base(handle)
	if name == "." || name == string(filepath.Separator) {
		return "", "", fmt.Errorf("files: no display name for %q", handle)
	}

	src, err := os.Open(handle)
	if err != nil {
		return "", "", fmt.Errorf("files: open %q: %w", handle, err)
	}
	defer src.Close()

	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return "", "", err
	}
	staged := filepath.Join(cacheDir, name)
	dst, err := os.Create(staged)
	if err != nil {
		return "", "", fmt.Errorf("files: stage %q: %w", name, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(staged)
		return "", "", fmt.Errorf("files: copy %q: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return "", "", err
	}
	return name, staged, nil
}
