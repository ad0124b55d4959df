package verify

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/launchcraft/internal/fsutil"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileMatch(t *testing.T) {
	data := []byte("hello artifact")
	path := writeTemp(t, data)
	assert.NoError(t, File(path, int64(len(data)), fsutil.SHA1Bytes(data)))
}

func TestFileSizeMismatch(t *testing.T) {
	path := writeTemp(t, []byte("short"))
	err := File(path, 999, "")
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Error(), "size 999")
}

func TestFileDigestMismatchWithMatchingSize(t *testing.T) {
	data := []byte("aaaaaaaa")
	path := writeTemp(t, []byte("bbbbbbbb"))
	err := File(path, int64(len(data)), fsutil.SHA1Bytes(data))
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestFileSkipsUnknownExpectations(t *testing.T) {
	path := writeTemp(t, []byte("whatever"))
	assert.NoError(t, File(path, -1, ""), "no expectations means existence is enough")
}

func TestFileMissing(t *testing.T) {
	err := File(filepath.Join(t.TempDir(), "absent"), 1, "aa")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestBytes(t *testing.T) {
	data := []byte("payload")
	assert.NoError(t, Bytes(data, fsutil.SHA1Bytes(data)))
	assert.NoError(t, Bytes(data, ""), "empty digest skips the check")

	err := Bytes(data, "1111111111111111111111111111111111111111")
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
}
