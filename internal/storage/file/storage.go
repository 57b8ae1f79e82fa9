// Package file provides a local-filesystem storage backend. It is the
// degraded fallback used when no object-store credentials are configured,
// mirroring the object backend's method set.
package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agrosight/ndvi-vault/internal/apperr"
)

// Storage stores objects under a base directory on the local filesystem.
type Storage struct {
	baseDir string
	baseURL string // URL prefix the directory is served under, no trailing slash
}

// NewStorage creates a Storage rooted at baseDir. Files are addressable
// under baseURL using the same keys the object backend would use.
func NewStorage(baseDir, baseURL string) *Storage {
	return &Storage{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Put writes the object under baseDir/key and returns its URL.
func (s *Storage) Put(_ context.Context, key, _ string, src io.Reader, _ int64) (string, error) {
	dstPath := filepath.Join(s.baseDir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(dstPath), os.ModePerm); err != nil {
		return "", apperr.Storage(fmt.Sprintf("failed to create directory for %s", key), err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", apperr.Storage(fmt.Sprintf("failed to create file %s", dstPath), err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", apperr.Storage(fmt.Sprintf("failed to write file %s", dstPath), err)
	}

	return s.baseURL + "/" + key, nil
}

// SignedURL returns the URL unchanged; local files carry no credentials,
// so there is nothing to sign.
func (s *Storage) SignedURL(_ context.Context, rawURL string, _ time.Duration) (string, error) {
	if _, err := s.keyFromURL(rawURL); err != nil {
		return "", err
	}
	return rawURL, nil
}

// Delete removes the file behind the given URL.
func (s *Storage) Delete(_ context.Context, rawURL string) error {
	key, err := s.keyFromURL(rawURL)
	if err != nil {
		return err
	}

	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Storage(fmt.Sprintf("failed to delete file %s", path), err)
	}

	return nil
}

func (s *Storage) keyFromURL(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, s.baseURL+"/") {
		key := strings.TrimPrefix(rawURL, s.baseURL+"/")
		if key != "" && !strings.Contains(key, "..") {
			return key, nil
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || strings.Contains(u.Path, "..") {
		return "", apperr.Validation(fmt.Sprintf("invalid object url: %s", rawURL))
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", apperr.Validation(fmt.Sprintf("object url has no key: %s", rawURL))
	}

	return key, nil
}
