package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl_state.json")
	return NewStore(path), path
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.Get(LatestUpdateKey)
	assert.False(t, ok)
}

func TestStore_SetGetRoundtrip(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set(LatestUpdateKey, "2024-05-01 10:00:00.000001"))

	v, ok := s.Get(LatestUpdateKey)
	require.True(t, ok)
	assert.Equal(t, "2024-05-01 10:00:00.000001", v)
}

func TestStore_SetOverwrites(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set(LatestUpdateKey, "first"))
	require.NoError(t, s.Set(LatestUpdateKey, "second"))

	v, _ := s.Get(LatestUpdateKey)
	assert.Equal(t, "second", v)
}

func TestStore_ArtifactIsFlatJSON(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Set(LatestUpdateKey, "2024-05-01 10:00:00.000001"))
	require.NoError(t, s.Set("other", "value"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var data map[string]string
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, map[string]string{
		LatestUpdateKey: "2024-05-01 10:00:00.000001",
		"other":         "value",
	}, data)
}

func TestStore_NoTempFileLeftBehind(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Set(LatestUpdateKey, "x"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestStore_CorruptFileActsEmpty(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{half-written"), 0o644))

	_, ok := s.Get(LatestUpdateKey)
	assert.False(t, ok)

	// A set recovers the artifact.
	require.NoError(t, s.Set(LatestUpdateKey, "fresh"))
	v, ok := s.Get(LatestUpdateKey)
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestStore_Reset(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.Set(LatestUpdateKey, "x"))
	require.NoError(t, s.Reset())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Resetting an already missing file is fine.
	require.NoError(t, s.Reset())
}
