package preference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "nested", "preferences.yaml"))
}

func TestMemberIDRoundTrip(t *testing.T) {
	s := newStore(t)

	_, ok := s.MemberID()
	assert.False(t, ok, "fresh store has no member")

	require.NoError(t, s.SetMemberID(42))
	id, ok := s.MemberID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `chorewheel-member-id: "42"`)

	// A second store on the same file sees the value.
	id, ok = New(s.Path()).MemberID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	require.NoError(t, s.ClearMemberID())
	_, ok = s.MemberID()
	assert.False(t, ok)
}

func TestOtherKeysSurvive(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.SetMemberID(3))
	require.NoError(t, s.ClearMemberID())

	v, ok := s.Get("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestCorruptFileIsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("- just\n- a list\n"), 0o600))

	_, ok := s.MemberID()
	assert.False(t, ok)

	require.NoError(t, s.SetMemberID(7))
	id, ok := s.MemberID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestGarbledMemberID(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Set(MemberKey, "alice"))
	_, ok := s.MemberID()
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Reset(), "reset without a file")
	require.NoError(t, s.SetMemberID(1))
	require.NoError(t, s.Reset())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "chorewheel", "preferences.yaml"), p)
}
