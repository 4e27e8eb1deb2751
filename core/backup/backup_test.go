package backup_test

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/cellnote/cellnote/core/backup"
	"github.com/cellnote/cellnote/core/errors"
)

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	return path
}

func TestCreateRestoreRoundTrip(t *testing.T) {
	original := append([]byte("PK\x03\x04 workbook bytes "), 0x00, 0xff, 0x42)

	tests := []struct {
		name        string
		compression backup.Compression
		suffix      string
	}{
		{"xz", backup.CompressionXZ, ".bak.xz"},
		{"gzip", backup.CompressionGzip, ".bak.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := writeSource(t, original)

			backupPath, err := backup.Create(source, tt.compression)
			if err != nil {
				t.Fatalf("failed to create backup: %v", err)
			}
			if !strings.HasPrefix(backupPath, source+".") {
				t.Errorf("backup %q not placed next to source %q", backupPath, source)
			}
			if !strings.HasSuffix(backupPath, tt.suffix) {
				t.Errorf("backup %q missing %s suffix", backupPath, tt.suffix)
			}

			compressed, err := os.ReadFile(backupPath)
			if err != nil {
				t.Fatalf("failed to read backup: %v", err)
			}
			if bytes.Equal(compressed, original) {
				t.Error("backup bytes are not compressed")
			}

			dest := filepath.Join(t.TempDir(), "restored.xlsx")
			if err := backup.Restore(backupPath, dest); err != nil {
				t.Fatalf("failed to restore: %v", err)
			}
			restored, err := os.ReadFile(dest)
			if err != nil {
				t.Fatalf("failed to read restored file: %v", err)
			}
			if !bytes.Equal(restored, original) {
				t.Error("restored bytes differ from original")
			}
		})
	}
}

func TestCreateDefaultsToXZ(t *testing.T) {
	source := writeSource(t, []byte("content"))

	backupPath, err := backup.Create(source, backup.Compression(""))
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}
	if !strings.HasSuffix(backupPath, ".bak.xz") {
		t.Errorf("expected .bak.xz suffix, got %q", backupPath)
	}

	file, err := os.Open(backupPath)
	if err != nil {
		t.Fatalf("failed to open backup: %v", err)
	}
	defer file.Close()

	detected, err := backup.Detect(file)
	if err != nil {
		t.Fatalf("failed to detect compression: %v", err)
	}
	if detected != backup.CompressionXZ {
		t.Errorf("expected xz, detected %q", detected)
	}
}

func TestCreateUniqueNames(t *testing.T) {
	source := writeSource(t, []byte("content"))

	first, err := backup.Create(source, backup.CompressionGzip)
	if err != nil {
		t.Fatalf("failed to create first backup: %v", err)
	}
	second, err := backup.Create(source, backup.CompressionGzip)
	if err != nil {
		t.Fatalf("failed to create second backup: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct backup paths, both are %q", first)
	}

	dest := filepath.Join(t.TempDir(), "restored.xlsx")
	if err := backup.Restore(second, dest); err != nil {
		t.Errorf("failed to restore suffixed backup: %v", err)
	}
}

func TestCreateMissingSource(t *testing.T) {
	_, err := backup.Create(filepath.Join(t.TempDir(), "absent.xlsx"), backup.CompressionXZ)
	if err == nil {
		t.Fatal("expected an error for a missing source")
	}
	var ioErr *errors.IOError
	if !errors.As(err, &ioErr) {
		t.Errorf("expected an IOError, got %T", err)
	}
}

func TestDetect(t *testing.T) {
	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	gw.Write([]byte("payload"))
	gw.Close()

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	if err != nil {
		t.Fatalf("failed to create xz writer: %v", err)
	}
	xw.Write([]byte("payload"))
	xw.Close()

	t.Run("gzip", func(t *testing.T) {
		got, err := backup.Detect(bytes.NewReader(gzBuf.Bytes()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != backup.CompressionGzip {
			t.Errorf("expected gzip, got %q", got)
		}
	})

	t.Run("xz", func(t *testing.T) {
		got, err := backup.Detect(bytes.NewReader(xzBuf.Bytes()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != backup.CompressionXZ {
			t.Errorf("expected xz, got %q", got)
		}
	})

	t.Run("unknown magic", func(t *testing.T) {
		_, err := backup.Detect(bytes.NewReader([]byte("PK\x03\x04 not compressed")))
		if !errors.Is(err, errors.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("too small", func(t *testing.T) {
		_, err := backup.Detect(bytes.NewReader([]byte{0x1f}))
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestRestoreAutodetectsRenamedBackup(t *testing.T) {
	original := []byte("workbook payload")
	source := writeSource(t, original)

	backupPath, err := backup.Create(source, backup.CompressionGzip)
	if err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}

	// A gzip backup behind an .xz name must still restore.
	misnamed := strings.TrimSuffix(backupPath, ".gz") + ".xz"
	if err := os.Rename(backupPath, misnamed); err != nil {
		t.Fatalf("failed to rename backup: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "restored.xlsx")
	if err := backup.Restore(misnamed, dest); err != nil {
		t.Fatalf("failed to restore: %v", err)
	}
	restored, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read restored file: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Error("restored bytes differ from original")
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  backup.Compression
		ok    bool
	}{
		{"default", "", backup.CompressionXZ, true},
		{"xz", "xz", backup.CompressionXZ, true},
		{"gzip", "gzip", backup.CompressionGzip, true},
		{"gz alias", "gz", backup.CompressionGzip, true},
		{"unknown", "zstd", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := backup.ParseCompression(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
				return
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
