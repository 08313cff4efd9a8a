// Package files stores files received over the chat channel on disk.
package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store writes received files under a per-receiver directory and cleans
// up old ones.
type Store struct {
	dir    string
	logger *slog.Logger
}

// SavedFile describes a file written to disk. Name may differ from the
// requested name when a collision was resolved.
type SavedFile struct {
	Path string
	Name string
	Size int
}

// NewStore creates the uploads directory under dataDir if needed.
func NewStore(dataDir string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Join(dataDir, "uploads")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("subsystem", "file-store"),
	}, nil
}

// Save decodes a base64 payload and writes it under the receiver's
// directory. When the name is already taken, a _1, _2, ... suffix is
// inserted before the extension.
func (s *Store) Save(encoded, fileName, receiver string) (SavedFile, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return SavedFile{}, fmt.Errorf("decoding file payload: %w", err)
	}

	// Strip any path components from client-supplied names.
	fileName = filepath.Base(fileName)
	if fileName == "." || fileName == ".." || fileName == string(filepath.Separator) || fileName == "" {
		return SavedFile{}, fmt.Errorf("invalid file name %q", fileName)
	}

	userDir := filepath.Join(s.dir, receiver)
	if err := os.MkdirAll(userDir, 0750); err != nil {
		return SavedFile{}, fmt.Errorf("creating receiver directory: %w", err)
	}

	path := filepath.Join(userDir, fileName)
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(userDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return SavedFile{}, fmt.Errorf("writing file: %w", err)
	}

	s.logger.Info("file stored",
		"receiver", receiver,
		"name", filepath.Base(path),
		"size", len(data),
	)
	return SavedFile{Path: path, Name: filepath.Base(path), Size: len(data)}, nil
}

// CleanupOlderThan removes stored files whose modification time is older
// than maxAge and returns how many were removed.
func (s *Store) CleanupOlderThan(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn("failed to remove old file", "path", path, "error", err)
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("walking uploads directory: %w", err)
	}
	return removed, nil
}

// StartCleanupTicker runs a background goroutine that periodically removes
// files older than retentionDays. A retention of 0 disables cleanup. The
// goroutine stops when the context is cancelled.
func (s *Store) StartCleanupTicker(ctx context.Context, interval time.Duration, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	maxAge := time.Duration(retentionDays) * 24 * time.Hour

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.CleanupOlderThan(maxAge)
				if err != nil {
					s.logger.Error("file retention cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					s.logger.Info("file retention cleanup", "removed", removed, "retention_days", retentionDays)
				}
			}
		}
	}()
}
