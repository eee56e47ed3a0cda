package util

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"
)

// SourceFile is a read-only view of a source file. Non-empty files are
// memory-mapped; when mapping fails the file is read into memory instead.
//
// Bytes is only valid until Close. Callers that keep any part of the
// content past Close must copy it first.
type SourceFile struct {
	Path string
	Size int64

	data   mmap.MMap
	file   *os.File
	mapped bool
}

// OpenSource maps path read-only.
func OpenSource(path string, logger *slog.Logger) (*SourceFile, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", path, err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%q is a directory", path)
	}

	sf := &SourceFile{Path: path, Size: stat.Size()}
	if stat.Size() == 0 {
		// Zero-length mappings are rejected by the OS.
		file.Close()
		return sf, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		logger.Warn("mmap failed, using fallback", "file", path, "size", stat.Size(), "error", err)
		file.Close()
		buf, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				path, err, readErr)
		}
		sf.data = mmap.MMap(buf)
		sf.Size = int64(len(buf))
		return sf, nil
	}

	sf.data = data
	sf.file = file
	sf.mapped = true
	return sf, nil
}

// Bytes returns the file content.
func (sf *SourceFile) Bytes() []byte {
	return sf.data
}

// Mapped reports whether the content is backed by a memory mapping.
func (sf *SourceFile) Mapped() bool {
	return sf.mapped
}

// Close unmaps the file. It is safe to call more than once.
func (sf *SourceFile) Close() error {
	var errs []error
	if sf.mapped && sf.data != nil {
		if err := sf.data.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap %q: %w", sf.Path, err))
		}
	}
	if sf.file != nil {
		if err := sf.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", sf.Path, err))
		}
	}
	sf.data, sf.file, sf.mapped = nil, nil, false
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// ReadSource returns a private copy of the content of path.
func ReadSource(path string, logger *slog.Logger) ([]byte, error) {
	sf, err := OpenSource(path, logger)
	if err != nil {
		return nil, err
	}
	defer sf.Close()
	return append([]byte(nil), sf.Bytes()...), nil
}
