// Package stage copies an incoming CSV to the staged location the rest of
// the pipeline reads from.
package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrSourceNotFound is returned when the file to stage does not exist.
var ErrSourceNotFound = errors.New("source not found")

// ErrSourceIsDir is returned when the source names a directory.
var ErrSourceIsDir = errors.New("source is a directory")

// Copy copies src to dest and returns dest. src may start with "~/". The
// destination directory is created when missing and dest is replaced
// atomically, keeping the source's permissions and modification time.
func Copy(src, dest string) (string, error) {
	resolved, err := resolve(src)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, resolved)
		}
		return "", fmt.Errorf("stat %s: %w", resolved, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrSourceIsDir, resolved)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	if err := copyAtomic(resolved, dest, info); err != nil {
		return "", err
	}
	return dest, nil
}

func resolve(src string) (string, error) {
	if src == "~" || strings.HasPrefix(src, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", src, err)
		}
		src = filepath.Join(home, strings.TrimPrefix(src, "~"))
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", src, err)
	}
	return abs, nil
}

func copyAtomic(src, dest string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := renameio.NewPendingFile(dest, renameio.WithStaticPermissions(info.Mode().Perm()))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer out.Cleanup()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := os.Chtimes(out.Name(), info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("set times on %s: %w", out.Name(), err)
	}
	if err := out.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	return nil
}
