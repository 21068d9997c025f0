package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump_CreatesCompressedFileUnderDir(t *testing.T) {
	dir := t.TempDir()
	data := []byte("rejected packet group scratch bytes")

	path, err := Dump(dir, "job123", 0x0041, data)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, dir))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestDump_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "diagnostics")

	path, err := Dump(dir, "job456", 0x0100, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestDumpAndLoad_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	want := []byte("some bytes that were buffered when the packet group was rejected")

	path, err := Dump(dir, "jobabc", 0x0020, want)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.bin.xz"))
	assert.Error(t, err)
}
