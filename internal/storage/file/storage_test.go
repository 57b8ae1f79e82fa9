package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrosight/ndvi-vault/internal/apperr"
)

func TestPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewStorage(dir, "http://localhost:8080/uploads")
	ctx := context.Background()

	key := "original/acc-1/asset-1.png"
	url, err := s.Put(ctx, key, "image/png", bytes.NewReader([]byte("png-bytes")), 9)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/"+key, url)

	data, err := os.ReadFile(filepath.Join(dir, "original", "acc-1", "asset-1.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "original", "acc-1", "asset-1.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestDelete_MissingFileIsNoError(t *testing.T) {
	s := NewStorage(t.TempDir(), "http://localhost:8080/uploads")

	err := s.Delete(context.Background(), "http://localhost:8080/uploads/original/x/gone.png")
	assert.NoError(t, err)
}

func TestSignedURL_PassesThrough(t *testing.T) {
	s := NewStorage(t.TempDir(), "http://localhost:8080/uploads")

	url := "http://localhost:8080/uploads/original/acc/asset.png"
	signed, err := s.SignedURL(context.Background(), url, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, url, signed)
}

func TestKeyFromURL_RejectsTraversal(t *testing.T) {
	s := NewStorage(t.TempDir(), "http://localhost:8080/uploads")

	err := s.Delete(context.Background(), "http://localhost:8080/uploads/../etc/passwd")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}
