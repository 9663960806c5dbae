package safe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Run("opens regular file", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "binary")
		content := []byte("\x7fELF")

		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatal(err)
		}

		f, info, err := Open(src, nil)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer func() { _ = f.Close() }()

		if info.Size() != int64(len(content)) {
			t.Errorf("got size %d, want %d", info.Size(), len(content))
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "binary")
		link := filepath.Join(tmpDir, "link")

		if err := os.WriteFile(src, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		if _, _, err := Open(link, nil); err == nil {
			t.Fatal("expected error for symlink, got nil")
		}
	})

	t.Run("allows symlink when enabled", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "binary")
		link := filepath.Join(tmpDir, "link")

		if err := os.WriteFile(src, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		f, _, err := Open(link, &FileOptions{AllowSymlinks: true})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		_ = f.Close()
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, _, err := Open(t.TempDir(), nil); err == nil {
			t.Fatal("expected error for directory, got nil")
		}
	})

	t.Run("rejects file exceeding max size", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "binary")

		if err := os.WriteFile(src, make([]byte, 1024), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, _, err := Open(src, &FileOptions{MaxSize: 512}); err == nil {
			t.Fatal("expected error for oversized file, got nil")
		}
	})
}

func TestReadFile(t *testing.T) {
	t.Run("reads regular file", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.txt")
		content := []byte("test content")

		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadFile(src, nil)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}

		if string(got) != string(content) {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.txt")
		link := filepath.Join(tmpDir, "link.txt")

		if err := os.WriteFile(src, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		_, err := ReadFile(link, nil)
		if err == nil {
			t.Fatal("expected error for symlink, got nil")
		}
	})

	t.Run("rejects file exceeding max size", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.txt")

		content := make([]byte, 1024)
		if err := os.WriteFile(src, content, 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := ReadFile(src, &FileOptions{MaxSize: 512})
		if err == nil {
			t.Fatal("expected error for oversized file, got nil")
		}
	})
}

func TestCreate(t *testing.T) {
	t.Run("creates and truncates", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "out.json")
		if err := os.WriteFile(dst, []byte("old content"), 0o644); err != nil {
			t.Fatal(err)
		}

		f, err := Create(dst, 0o600)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := f.WriteString("{}"); err != nil {
			t.Fatal(err)
		}
		_ = f.Close()

		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "{}" {
			t.Errorf("got %q, want %q", got, "{}")
		}
	})

	t.Run("sets permissions on new file", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "out.json")

		f, err := Create(dst, 0o600)
		if err != nil {
			t.Fatal(err)
		}
		_ = f.Close()

		info, err := os.Stat(dst)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("got permissions %o, want %o", perm, 0o600)
		}
	})

	t.Run("refuses symlink destination", func(t *testing.T) {
		tmpDir := t.TempDir()
		target := filepath.Join(tmpDir, "target")
		link := filepath.Join(tmpDir, "out.json")

		if err := os.WriteFile(target, []byte("keep"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(target, link); err != nil {
			t.Fatal(err)
		}

		if _, err := Create(link, 0); err == nil {
			t.Fatal("expected error for symlink destination, got nil")
		}
	})
}
