package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/apperr"
)

func TestPutOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key, n, err := s.Put(ctx, "Report.PDF", strings.NewReader("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.True(t, strings.HasSuffix(key, ".pdf"))

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(dir, key))
	require.True(t, os.IsNotExist(err))

	_, err = s.Open(ctx, key)
	require.True(t, apperr.Is(err, apperr.ErrNotFound))
	require.NoError(t, s.Delete(ctx, key))
}

func TestRejectsKeysOutsideBase(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "../etc/passwd")
	require.Error(t, err)
	require.Error(t, s.Delete(context.Background(), ""))
}
