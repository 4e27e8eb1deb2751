// Package backup snapshots workbook files before in-place mutation.
//
// A backup is a compressed copy of the workbook written next to it as
// <path>.<UTC-stamp>.bak.xz (or .bak.gz). Restore autodetects the
// compression from magic bytes, so renamed backups still restore.
package backup

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/cellnote/cellnote/core/errors"
	"github.com/cellnote/cellnote/internal/logging"
)

// Compression selects the backup compression algorithm.
type Compression string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ Compression = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip Compression = "gzip"
)

const stampLayout = "20060102T150405Z"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

// ParseCompression maps a user-facing name to a Compression. The empty
// string selects the default.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "xz":
		return CompressionXZ, nil
	case "gzip", "gz":
		return CompressionGzip, nil
	default:
		return "", errors.NewValidation("compression",
			fmt.Sprintf("unknown compression %q (want xz or gzip)", name))
	}
}

func (c Compression) extension() string {
	if c == CompressionGzip {
		return ".gz"
	}
	return ".xz"
}

// Create writes a compressed snapshot of path next to it and returns the
// backup path. The stamp is the current UTC time; a numeric suffix keeps
// snapshots taken within the same second apart.
func Create(path string, compression Compression) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIO("read", path, err)
	}

	base := fmt.Sprintf("%s.%s.bak%s", path, time.Now().UTC().Format(stampLayout), compression.extension())
	backupPath := base
	for n := 1; ; n++ {
		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			break
		}
		backupPath = fmt.Sprintf("%s.%d", base, n)
	}

	file, err := os.Create(backupPath)
	if err != nil {
		return "", errors.NewIO("create", backupPath, err)
	}

	var cw io.WriteCloser
	switch compression {
	case CompressionGzip:
		cw, err = gzip.NewWriterLevel(file, gzip.BestCompression)
	case CompressionXZ:
		fallthrough
	default:
		cw, err = xz.NewWriter(file)
	}
	if err != nil {
		file.Close()
		os.Remove(backupPath)
		return "", errors.Wrap(err, "create compression writer")
	}

	if _, err := cw.Write(data); err != nil {
		cw.Close()
		file.Close()
		os.Remove(backupPath)
		return "", errors.NewIO("write", backupPath, err)
	}
	if err := cw.Close(); err != nil {
		file.Close()
		os.Remove(backupPath)
		return "", errors.NewIO("write", backupPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(backupPath)
		return "", errors.NewIO("write", backupPath, err)
	}

	logging.Debug("backup created", "source", path, "backup", backupPath, "compression", string(compression))
	return backupPath, nil
}

// Detect reads magic bytes from r and reports the compression in use.
func Detect(r io.Reader) (Compression, error) {
	magic := make([]byte, len(xzMagic))
	n, err := io.ReadFull(r, magic)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.NewIO("read magic bytes", "", err)
	}
	if n < len(gzipMagic) {
		return "", errors.NewValidation("backup", "file too small to detect compression")
	}
	if bytes.Equal(magic[:len(gzipMagic)], gzipMagic) {
		return CompressionGzip, nil
	}
	if n >= len(xzMagic) && bytes.Equal(magic, xzMagic) {
		return CompressionXZ, nil
	}
	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Restore decompresses backupPath and writes the original bytes to dest.
func Restore(backupPath, dest string) error {
	file, err := os.Open(backupPath)
	if err != nil {
		return errors.NewIO("open", backupPath, err)
	}
	defer file.Close()

	compression, err := Detect(file)
	if err != nil {
		return errors.Wrapf(err, "detect compression of %s", backupPath)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errors.NewIO("seek", backupPath, err)
	}

	var src io.Reader
	switch compression {
	case CompressionGzip:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "create gzip reader")
		}
		defer gz.Close()
		src = gz
	case CompressionXZ:
		xzr, err := xz.NewReader(file)
		if err != nil {
			return errors.Wrap(err, "create xz reader")
		}
		src = xzr
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return errors.NewIO("decompress", backupPath, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errors.NewIO("write", dest, err)
	}

	logging.Debug("backup restored", "backup", backupPath, "dest", dest)
	return nil
}
