package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aop-weaver/pkg/errors"
)

func TestNewLocalStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.BasePath())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStorage_PutGet(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "weaving/report.json", strings.NewReader(`{"proxied":1}`)))
	require.NoError(t, s.Put(ctx, "weaving/report.json", strings.NewReader(`{"proxied":2}`)))

	rc, err := s.Get(ctx, "weaving/report.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"proxied":2}`, string(data))

	entries, err := os.ReadDir(filepath.Join(s.BasePath(), "weaving"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestLocalStorage_Missing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "missing.json")
	assert.True(t, apperrors.IsNotFound(err))

	ok, err := s.Exists(ctx, "missing.json")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Delete(ctx, "missing.json"))
}

func TestLocalStorage_DeleteAndExists(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "report.yaml", strings.NewReader("summary: {}")))
	ok, err := s.Exists(ctx, "report.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "report.yaml"))
	ok, err = s.Exists(ctx, "report.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.json", "/etc/passwd"} {
		err := s.Put(context.Background(), key, strings.NewReader("x"))
		assert.Equal(t, apperrors.CodeStorageError, apperrors.GetErrorCode(err), "key %q", key)
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, "report.json", strings.NewReader("{}")), context.Canceled)
	_, err = s.Get(ctx, "report.json")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStorage_URL(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.BasePath(), "weaving", "report.json"), s.URL("weaving/report.json"))
}
