package tokencache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"insightmcp/internal/testing/mock"
	"insightmcp/pkg/redact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTenant = "11111111-2222-3333-4444-555555555555"
	testClient = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

func TestKey_OrderIndependent(t *testing.T) {
	permutations := [][]string{
		{"a/.default", "offline_access", "openid"},
		{"openid", "a/.default", "offline_access"},
		{"offline_access", "openid", "a/.default"},
		{"openid", "openid", "offline_access", "a/.default"},
	}

	want := Key(testTenant, testClient, permutations[0])
	for _, p := range permutations {
		assert.Equal(t, want, Key(testTenant, testClient, p), "scopes %v", p)
	}
}

func TestKey_DistinguishesInputs(t *testing.T) {
	base := Key(testTenant, testClient, []string{"x"})

	assert.NotEqual(t, base, Key("other-tenant", testClient, []string{"x"}))
	assert.NotEqual(t, base, Key(testTenant, "other-client", []string{"x"}))
	assert.NotEqual(t, base, Key(testTenant, testClient, []string{"y"}))
	assert.NotEqual(t, base, Key(testTenant, testClient, []string{"x", "y"}))
	// Separators keep concatenation ambiguity out of the key.
	assert.NotEqual(t, Key("ab", "c", nil), Key("a", "bc", nil))
	assert.Len(t, base, 32)
}

func TestCache_RoundTrip(t *testing.T) {
	clock := mock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cache, err := New(Config{Clock: clock})
	require.NoError(t, err)

	scopes := []string{"https://analysis.windows.net/powerbi/api/.default"}
	expiry := clock.Now().Add(time.Hour)
	require.NoError(t, cache.Put(testTenant, testClient, scopes, redact.NewToken("bearer-1"), "acct-1", expiry))

	entry := cache.Get(testTenant, testClient, scopes)
	require.NotNil(t, entry)
	assert.Equal(t, "bearer-1", entry.Token.Value())
	assert.Equal(t, "acct-1", entry.Account)
	assert.True(t, entry.Expiry.Equal(expiry))
}

func TestCache_ExpiredEntryNeverReturned(t *testing.T) {
	clock := mock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cache, err := New(Config{Clock: clock})
	require.NoError(t, err)

	scopes := []string{"s"}
	require.NoError(t, cache.Put(testTenant, testClient, scopes, redact.NewToken("t"), "acct", clock.Now().Add(time.Minute)))

	clock.Advance(59 * time.Second)
	assert.NotNil(t, cache.Get(testTenant, testClient, scopes))

	clock.Advance(time.Second)
	assert.Nil(t, cache.Get(testTenant, testClient, scopes), "entry with expiry == now must be treated as expired")

	clock.Advance(time.Hour)
	assert.Nil(t, cache.Get(testTenant, testClient, scopes))
}

func TestCache_PutOverwrites(t *testing.T) {
	cache, err := New(Config{})
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, cache.Put(testTenant, testClient, []string{"a", "b"}, redact.NewToken("old"), "acct", expiry))
	require.NoError(t, cache.Put(testTenant, testClient, []string{"b", "a"}, redact.NewToken("new"), "acct", expiry))

	entry := cache.Get(testTenant, testClient, []string{"a", "b"})
	require.NotNil(t, entry)
	assert.Equal(t, "new", entry.Token.Value())
}

func TestCache_Miss(t *testing.T) {
	cache, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, cache.Get(testTenant, testClient, []string{"nothing"}))
}

func TestCache_FileMode_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	scopes := []string{"openid", "User.Read"}
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	first, err := New(Config{StorageDir: dir, FileMode: true})
	require.NoError(t, err)
	require.NoError(t, first.Put(testTenant, testClient, scopes, redact.NewToken("persisted"), "acct-9", expiry))

	second, err := New(Config{StorageDir: dir, FileMode: true})
	require.NoError(t, err)
	entry := second.Get(testTenant, testClient, []string{"User.Read", "openid"})
	require.NotNil(t, entry)
	assert.Equal(t, "persisted", entry.Token.Value())
	assert.Equal(t, "acct-9", entry.Account)
	assert.Equal(t, []string{"User.Read", "openid"}, entry.Scopes)

	path := filepath.Join(dir, Key(testTenant, testClient, scopes)+".json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestCache_FileMode_ExpiredOnDisk(t *testing.T) {
	dir := t.TempDir()
	clock := mock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	writer, err := New(Config{StorageDir: dir, FileMode: true, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, writer.Put(testTenant, testClient, []string{"s"}, redact.NewToken("t"), "a", clock.Now().Add(time.Minute)))

	clock.Advance(2 * time.Minute)
	reader, err := New(Config{StorageDir: dir, FileMode: true, Clock: clock})
	require.NoError(t, err)
	assert.Nil(t, reader.Get(testTenant, testClient, []string{"s"}))
}

func TestCache_FileMode_CorruptFileIgnored(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(Config{StorageDir: dir, FileMode: true})
	require.NoError(t, err)

	key := Key(testTenant, testClient, []string{"s"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("{not json"), 0600))

	assert.Nil(t, cache.Get(testTenant, testClient, []string{"s"}))
}

func TestCache_Clear(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(Config{StorageDir: dir, FileMode: true})
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, cache.Put(testTenant, testClient, []string{"a"}, redact.NewToken("1"), "acct", expiry))
	require.NoError(t, cache.Put(testTenant, testClient, []string{"b"}, redact.NewToken("2"), "acct", expiry))

	require.NoError(t, cache.Clear())

	assert.Nil(t, cache.Get(testTenant, testClient, []string{"a"}))
	assert.Nil(t, cache.Get(testTenant, testClient, []string{"b"}))

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEntry_JSONOmitsToken(t *testing.T) {
	entry := Entry{Token: redact.NewToken("secret-value"), Account: "a"}
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-value")
}

func TestCache_Delete(t *testing.T) {
	dir := t.TempDir()
	clock := mock.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cache, err := New(Config{StorageDir: dir, FileMode: true, Clock: clock})
	require.NoError(t, err)

	keep := []string{"keep"}
	drop := []string{"drop"}
	require.NoError(t, cache.Put(testTenant, testClient, keep, redact.NewToken("k"), "acct", clock.Now().Add(time.Hour)))
	require.NoError(t, cache.Put(testTenant, testClient, drop, redact.NewToken("d"), "acct", clock.Now().Add(time.Hour)))

	require.NoError(t, cache.Delete(testTenant, testClient, drop))
	assert.Nil(t, cache.Get(testTenant, testClient, drop))
	assert.NotNil(t, cache.Get(testTenant, testClient, keep))

	_, err = os.Stat(filepath.Join(dir, Key(testTenant, testClient, drop)+".json"))
	assert.True(t, os.IsNotExist(err))

	// Deleting an empty slot is fine.
	assert.NoError(t, cache.Delete(testTenant, testClient, drop))
}
