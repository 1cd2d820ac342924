package netatmo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"smarther2mqtt/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")

	store := NewFileStore(path, logging.Discard())
	assert.False(t, store.Exists())

	require.NoError(t, store.Save(NewToken("access-1", "refresh-1")))
	assert.True(t, store.Exists())

	reloaded := NewFileStore(path, logging.Discard())
	reloaded.Load()

	require.True(t, reloaded.Exists())
	assert.Equal(t, "access-1", reloaded.Current().AccessToken)
	assert.Equal(t, "refresh-1", reloaded.Current().RefreshToken)
}

func TestFileStore_PreservesExtraFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	doc := `{"access_token":"a","refresh_token":"r","expires_in":10800,"scope":["read_smarther","write_smarther"],"custom":{"x":1}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	store := NewFileStore(path, logging.Discard())
	store.Load()
	require.True(t, store.Exists())
	assert.Equal(t, 3*time.Hour, store.Current().ExpiresIn())

	require.NoError(t, store.Save(store.Current()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var written map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, "a", written["access_token"])
	assert.Equal(t, "r", written["refresh_token"])
	assert.Equal(t, float64(10800), written["expires_in"])
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, written["custom"])
}

func TestFileStore_LoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file", content: nil},
		{name: "invalid json", content: strPtr("{not json")},
		{name: "missing access token", content: strPtr(`{"refresh_token":"r"}`)},
		{name: "missing refresh token", content: strPtr(`{"access_token":"a"}`)},
		{name: "empty access token", content: strPtr(`{"access_token":"","refresh_token":"r"}`)},
		{name: "wrong field type", content: strPtr(`{"access_token":12,"refresh_token":"r"}`)},
		{name: "json array", content: strPtr(`["access_token"]`)},
		{name: "json null", content: strPtr(`null`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o600))
			}

			store := NewFileStore(path, logging.Discard())
			assert.NotPanics(t, store.Load)
			assert.False(t, store.Exists())
			assert.Nil(t, store.Current())
		})
	}
}

func TestFileStore_SaveToUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "token.json")
	store := NewFileStore(path, logging.Discard())

	err := store.Save(NewToken("a", "r"))
	assert.Error(t, err)
	// The in-memory token is still usable for this run
	assert.True(t, store.Exists())
}

func TestParseToken(t *testing.T) {
	token, err := ParseToken([]byte(`{"access_token":"a","refresh_token":"r"}`))
	require.NoError(t, err)
	assert.Equal(t, "a", token.AccessToken)

	_, err = ParseToken([]byte(`{"access_token":"a"}`))
	assert.True(t, IsTokenError(err, TokenInvalid))

	_, err = ParseToken([]byte(`garbage`))
	assert.True(t, IsTokenError(err, TokenInvalid))
}

func strPtr(s string) *string {
	return &s
}

func TestFileStore_SetRejectsInvalidToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path, logging.Discard())
	require.NoError(t, store.Set(NewToken("access-1", "refresh-1")))

	err := store.Set(NewToken("access-2", ""))
	assert.True(t, IsTokenError(err, TokenInvalid))
	assert.Equal(t, "access-1", store.Current().AccessToken)

	err = store.Set(nil)
	assert.True(t, IsTokenError(err, TokenInvalid))

	reloaded := NewFileStore(path, logging.Discard())
	reloaded.Load()
	require.True(t, reloaded.Exists())
	assert.Equal(t, "access-1", reloaded.Current().AccessToken)
}
