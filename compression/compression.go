// Package compression zstd-compresses single files before they are uploaded.
package compression

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Extension is appended to the name of compressed files.
const Extension = ".zst"

// DefaultLevel is used when the level is 0.
const DefaultLevel = 3

// CompressFile writes a zstd stream of src to dst. Level follows the zstd CLI
// scale (1..19, 0 means DefaultLevel).
func CompressFile(src, dst string, level int) error {
	if level == 0 {
		level = DefaultLevel
	}
	if level < 1 || level > 19 {
		return fmt.Errorf("compression level should be between 1 and 19")
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return fmt.Errorf("compress file: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("close zstd writer: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}
	return nil
}

// DecompressFile writes the decompressed content of the zstd stream src to dst.
func DecompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("read file %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	zr, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		_ = out.Close()
		return fmt.Errorf("decompress file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
