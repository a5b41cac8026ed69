package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileScoped_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	b, err := ReadFileScoped(p)
	if err != nil {
		t.Fatalf("ReadFileScoped error: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}

func TestReadFileScoped_RejectsInvalidPath(t *testing.T) {
	for _, p := range []string{"", ".", string(filepath.Separator)} {
		if _, err := ReadFileScoped(p); err == nil {
			t.Fatalf("expected error for %q", p)
		}
	}
}

func TestReadTrimmed(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "hostname")
	if err := os.WriteFile(p, []byte("\n  my-host  \nother\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := ReadTrimmed(p)
	if err != nil {
		t.Fatalf("ReadTrimmed error: %v", err)
	}
	if got != "my-host" {
		t.Fatalf("got %q, want my-host", got)
	}
}

func TestReadTrimmed_Empty(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty")
	if err := os.WriteFile(p, []byte("\n \n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ReadTrimmed(p); err == nil {
		t.Fatal("expected error for blank file")
	}
}

func TestReadTrimmed_Missing(t *testing.T) {
	if _, err := ReadTrimmed(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
