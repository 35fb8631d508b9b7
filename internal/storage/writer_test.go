package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/wikisync/internal/domain"
)

func TestReadJSON_Absent(t *testing.T) {
	var v map[string]string
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	in := map[string]string{"b": "<ref>", "a": "x & y"}

	require.NoError(t, WriteJSON(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"x & y\",\n  \"b\": \"<ref>\"\n}\n", string(raw))

	var out map[string]string
	ok, err := ReadJSON(path, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteJSON_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, WriteJSON(path, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, WriteJSON(path, map[string]string{"a": "3"}))

	var out map[string]string
	_, err := ReadJSON(path, &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3"}, out)
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var v map[string]string
	_, err := ReadJSON(path, &v)
	assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
}
