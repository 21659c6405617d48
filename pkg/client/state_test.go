package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestStoreConfig(t *testing.T) {
	store, path := openTestStore(t)
	assert.Equal(t, filepath.Dir(path), store.GetStateDir())

	v, err := store.GetConfig("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.SetLastUsername("alice"))
	require.NoError(t, store.SetLastUsername("bob"))
	assert.Equal(t, "bob", store.GetLastUsername())
}

func TestStorePicture(t *testing.T) {
	store, _ := openTestStore(t)

	_, ok := store.GetPicture()
	assert.False(t, ok)

	want := PictureRecord{
		URL:      "http://icons.example.com/alice.png",
		Checksum: -12345,
		Expires:  time.Unix(1700604800, 0),
	}
	require.NoError(t, store.SetPicture(want))

	got, ok := store.GetPicture()
	require.True(t, ok)
	assert.Equal(t, want.URL, got.URL)
	assert.Equal(t, want.Checksum, got.Checksum)
	assert.True(t, want.Expires.Equal(got.Expires))
}

func TestStoreBuddyIcons(t *testing.T) {
	store, _ := openTestStore(t)

	_, ok, err := store.GetBuddyIcon("bob")
	require.NoError(t, err)
	assert.False(t, ok)

	old := time.Unix(1600000000, 0)
	require.NoError(t, store.SaveBuddyIcon(BuddyIconRecord{Handle: "Bob", Checksum: 55, URL: "http://x/bob.png", Updated: old}))
	require.NoError(t, store.SaveBuddyIcon(BuddyIconRecord{Handle: "carol", Checksum: 7}))

	rec, ok, err := store.GetBuddyIcon("BOB")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", rec.Handle)
	assert.Equal(t, int32(55), rec.Checksum)
	assert.True(t, old.Equal(rec.Updated))
	assert.Equal(t, "bob checksum=55 url=http://x/bob.png", rec.String())

	// saving again replaces
	require.NoError(t, store.SaveBuddyIcon(BuddyIconRecord{Handle: "bob", Checksum: 56, Updated: old}))
	all, err := store.BuddyIcons()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob", all[0].Handle)
	assert.Equal(t, int32(56), all[0].Checksum)
	assert.Equal(t, "carol", all[1].Handle)

	pruned, err := store.PruneBuddyIcons(old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	require.NoError(t, store.ForgetBuddyIcon("carol"))
	all, err = store.BuddyIcons()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreReopen(t *testing.T) {
	store, path := openTestStore(t)
	require.NoError(t, store.SetLastUsername("alice"))
	require.NoError(t, store.Close())

	// migrations are not applied twice
	reopened, err := OpenStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "alice", reopened.GetLastUsername())
}
