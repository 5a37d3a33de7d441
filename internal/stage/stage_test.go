package stage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "incoming.csv")
	if err := os.WriteFile(src, []byte("a,b\n1,2\n"), 0o640); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "data", "staged.csv")
	got, err := Copy(src, dest)
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if got != dest {
		t.Errorf("Copy() = %q, want %q", got, dest)
	}

	body, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(body) != "a,b\n1,2\n" {
		t.Errorf("dest content = %q", body)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("staging dir has %d entries, want only the staged file", len(entries))
	}
}

func TestCopy_Overwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.csv")
	dest := filepath.Join(dir, "staged.csv")
	if err := os.WriteFile(dest, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Copy(src, dest); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if body, _ := os.ReadFile(dest); string(body) != "new\n" {
		t.Errorf("dest content = %q, want new", body)
	}
}

func TestCopy_ReplacesWithoutTruncating(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.csv")
	dest := filepath.Join(dir, "staged.csv")
	if err := os.WriteFile(dest, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	reader, err := os.Open(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := Copy(src, dest); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	// The open handle keeps the replaced file intact.
	if body, _ := io.ReadAll(reader); string(body) != "old\n" {
		t.Errorf("previous content = %q, want old", body)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 2 {
		t.Errorf("dir has %d entries, want source and staged file only", len(entries))
	}
}

func TestCopy_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		src  string
		want error
	}{
		{"missing source", filepath.Join(dir, "nope.csv"), ErrSourceNotFound},
		{"directory source", dir, ErrSourceIsDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Copy(tt.src, filepath.Join(dir, "out", "staged.csv"))
			if !errors.Is(err, tt.want) {
				t.Errorf("Copy() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolve_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := resolve("~/drop/file.csv")
	if err != nil {
		t.Fatalf("resolve() error = %v", err)
	}
	if want := filepath.Join(home, "drop", "file.csv"); got != want {
		t.Errorf("resolve() = %q, want %q", got, want)
	}
}
