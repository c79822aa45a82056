package tokencache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"
)

// DefaultStorageDir is the default directory, relative to the home directory,
// for persisted token entries.
const DefaultStorageDir = ".config/insightmcp/tokens"

// Clock supplies the current time. Tests inject a controllable clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Entry is one cached scoped token plus the account handle of the session
// that obtained it.
type Entry struct {
	Token     redact.Token `json:"-"`
	Account   string       `json:"account"`
	Expiry    time.Time    `json:"expiry"`
	Tenant    string       `json:"tenant"`
	Client    string       `json:"client"`
	Scopes    []string     `json:"scopes"`
	CreatedAt time.Time    `json:"created_at"`
}

// fileEntry is the on-disk shape. It is the only place the raw bearer value is
// serialized, and only into a 0600 file.
type fileEntry struct {
	Entry
	AccessToken string `json:"access_token"`
}

// Cache is a keyed, expiring store for access tokens addressed by
// (identity tenant, client, scope set).
//
// SECURITY: token values are never logged. Persisted files are written with
// 0600 permissions inside a 0700 directory.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	storageDir string
	fileMode   bool
	clock      Clock
}

// Config configures the cache.
type Config struct {
	// StorageDir is the directory for persisted entries.
	// Defaults to ~/.config/insightmcp/tokens.
	StorageDir string

	// FileMode enables file persistence. If false, entries live in memory only.
	FileMode bool

	// Clock overrides the time source. Defaults to the system clock.
	Clock Clock
}

// New creates a cache with the given configuration.
func New(cfg Config) (*Cache, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" && cfg.FileMode {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, DefaultStorageDir)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	c := &Cache{
		entries:    make(map[string]*Entry),
		storageDir: storageDir,
		fileMode:   cfg.FileMode,
		clock:      clock,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token cache directory: %w", err)
		}
	}

	return c, nil
}

// Key derives the cache slot for (tenant, client, scopes). Scopes are
// de-duplicated and sorted lexically first, so logically identical requests
// always share a slot regardless of order.
func Key(tenant, client string, scopes []string) string {
	h := sha256.New()
	h.Write([]byte(tenant))
	h.Write([]byte{0})
	h.Write([]byte(client))
	for _, s := range normalizeScopes(scopes) {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Get returns the live entry for the slot, or nil if the slot is empty or its
// expiry has passed. Expired entries are skipped, not purged.
func (c *Cache) Get(tenant, client string, scopes []string) *Entry {
	key := Key(tenant, client, scopes)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if c.live(entry) {
			return entry
		}
		return nil
	}

	if !c.fileMode {
		return nil
	}

	entry, err := c.readFile(key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Debug("TokenCache", "Ignoring unreadable cache entry %s: %v", key, err)
		}
		return nil
	}

	c.mu.Lock()
	// A concurrent Put wins over what we just read from disk.
	if existing, ok := c.entries[key]; ok {
		entry = existing
	} else {
		c.entries[key] = entry
	}
	c.mu.Unlock()

	if c.live(entry) {
		return entry
	}
	return nil
}

// Put stores a token in the slot, replacing any existing entry wholesale.
func (c *Cache) Put(tenant, client string, scopes []string, token redact.Token, account string, expiry time.Time) error {
	key := Key(tenant, client, scopes)
	entry := &Entry{
		Token:     token,
		Account:   account,
		Expiry:    expiry,
		Tenant:    tenant,
		Client:    client,
		Scopes:    normalizeScopes(scopes),
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if !c.fileMode {
		return nil
	}

	if err := c.writeFile(key, entry); err != nil {
		logging.Audit("token_store_failed", "token cache write failed",
			"key", key,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to persist token: %w", err)
	}
	logging.Audit("token_stored", "token cached",
		"key", key,
		"account", redact.ID(account),
		"expiry", expiry.Format(time.RFC3339),
	)
	return nil
}

// Delete removes one slot from memory and disk. Deleting an empty slot is
// not an error.
func (c *Cache) Delete(tenant, client string, scopes []string) error {
	key := Key(tenant, client, scopes)

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.fileMode {
		err := os.Remove(filepath.Join(c.storageDir, key+".json"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove token file: %w", err)
		}
	}
	logging.Audit("token_deleted", "token cache slot deleted", "key", key)
	return nil
}

// Clear removes all entries from memory and disk.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	memoryCount := len(c.entries)
	c.entries = make(map[string]*Entry)

	fileCount := 0
	if c.fileMode {
		dirEntries, err := os.ReadDir(c.storageDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read token cache directory: %w", err)
		}
		for _, de := range dirEntries {
			if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
				continue
			}
			if err := os.Remove(filepath.Join(c.storageDir, de.Name())); err != nil {
				return fmt.Errorf("failed to remove token file %s: %w", de.Name(), err)
			}
			fileCount++
		}
	}

	logging.Audit("tokens_cleared", "token cache cleared",
		"memory_entries", memoryCount,
		"file_entries", fileCount,
	)
	return nil
}

func (c *Cache) live(e *Entry) bool {
	return e != nil && c.clock.Now().Before(e.Expiry)
}

func (c *Cache) writeFile(key string, entry *Entry) error {
	data, err := json.MarshalIndent(fileEntry{Entry: *entry, AccessToken: entry.Token.Value()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	path := filepath.Join(c.storageDir, key+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	// Rename keeps the replacement whole for concurrent readers.
	return os.Rename(tmp, path)
}

func (c *Cache) readFile(key string) (*Entry, error) {
	// #nosec G304 -- path is built from a hex digest, not user input
	data, err := os.ReadFile(filepath.Join(c.storageDir, key+".json"))
	if err != nil {
		return nil, err
	}

	var fe fileEntry
	if err := json.Unmarshal(data, &fe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	entry := fe.Entry
	entry.Token = redact.NewToken(fe.AccessToken)
	return &entry, nil
}
