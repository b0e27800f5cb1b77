package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradestation/pkg/oauth"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.Nil(t, s.Get())

	tok := &oauth.Token{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, s.Set(tok))

	got := s.Get()
	require.NotNil(t, got)
	assert.Equal(t, "a", got.AccessToken)

	// callers get copies
	got.AccessToken = "mutated"
	tok.AccessToken = "mutated"
	assert.Equal(t, "a", s.Get().AccessToken)

	require.NoError(t, s.Clear())
	assert.Nil(t, s.Get())
}

func TestFileStore_PersistsWithRestrictedPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Nil(t, s.Get())

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(&oauth.Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	got := reopened.Get()
	require.NotNil(t, got)
	assert.Equal(t, "r", got.RefreshToken)
	assert.True(t, got.ExpiresAt.Equal(exp))

	require.NoError(t, reopened.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_IgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Nil(t, s.Get())
}

func TestFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestFileStore_WatchReloadsNewerToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(&oauth.Token{AccessToken: "mine", ExpiresAt: time.Now().Add(time.Minute)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx) }()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	other, err := json.Marshal(&oauth.Token{AccessToken: "theirs", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, other, 0600))

	require.Eventually(t, func() bool {
		tok := s.Get()
		return tok != nil && tok.AccessToken == "theirs"
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return s.Get() == nil }, 2*time.Second, 20*time.Millisecond)
}
