// Package archive unpacks the .zip and .7z containers Fingrid publishes.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zip"
)

// ErrUnsupported is returned for files that are neither .zip nor .7z.
var ErrUnsupported = errors.New("unsupported archive format")

// ErrUnsafePath is returned when an entry would be written outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extensions lists the supported archive extensions in processing order.
var Extensions = []string{".zip", ".7z"}

// entry is the subset of zip.File and sevenzip.File that extraction needs.
type entry struct {
	name string
	info fs.FileInfo
	open func() (io.ReadCloser, error)
}

// ExtractAll unpacks src into dir and returns the paths of the regular files
// written. Entry permissions are copied from the archive as-is.
func ExtractAll(src, dir string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(src)) {
	case ".zip":
		r, err := zip.OpenReader(src)
		if err != nil {
			return nil, fmt.Errorf("open zip %s: %w", src, err)
		}
		defer r.Close()

		entries := make([]entry, 0, len(r.File))
		for _, f := range r.File {
			entries = append(entries, entry{name: f.Name, info: f.FileInfo(), open: f.Open})
		}
		return extractEntries(entries, dir)
	case ".7z":
		r, err := sevenzip.OpenReader(src)
		if err != nil {
			return nil, fmt.Errorf("open 7z %s: %w", src, err)
		}
		defer r.Close()

		entries := make([]entry, 0, len(r.File))
		for _, f := range r.File {
			entries = append(entries, entry{name: f.Name, info: f.FileInfo(), open: f.Open})
		}
		return extractEntries(entries, dir)
	}
	return nil, fmt.Errorf("%s: %w", src, ErrUnsupported)
}

func extractEntries(entries []entry, dir string) ([]string, error) {
	root := filepath.Clean(dir)
	var written []string
	for _, e := range entries {
		target := filepath.Join(root, filepath.FromSlash(e.name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, fmt.Errorf("%q: %w", e.name, ErrUnsafePath)
		}

		if e.info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("create dir for %s: %w", target, err)
		}
		if err := writeEntry(e, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func writeEntry(e entry, target string) error {
	rc, err := e.open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", e.name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, e.info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", e.name, err)
	}
	return out.Close()
}
