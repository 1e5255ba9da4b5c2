// Package filestore persists the cooldown ledger as a single JSON document.
//
// Every save rewrites the whole file through a temp file and rename. Paths
// ending in ".zst" are zstd-compressed. A blake2b digest of the entries is
// stored alongside them; a mismatch on load is reported as cooldown.ErrCorrupt.
package filestore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/patrolsignal/internal/game/cooldown"
)

const formatVersion = 1

// document is the on-disk layout. Cooldowns maps decimal player IDs to the
// last use time in unix seconds.
type document struct {
	Version   int                `json:"version"`
	Digest    string             `json:"digest"`
	Cooldowns map[string]float64 `json:"cooldowns"`
}

// Store is a file-backed cooldown.Store.
type Store struct {
	path     string
	compress bool
}

// New creates a store at path. The parent directory is created on first save.
func New(path string) *Store {
	return &Store{
		path:     path,
		compress: strings.HasSuffix(path, ".zst"),
	}
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads all entries. A missing file is an empty ledger.
func (s *Store) Load(ctx context.Context) (map[uint64]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[uint64]time.Time{}, nil
		}
		return nil, fmt.Errorf("reading cooldowns %s: %w", s.path, err)
	}

	if s.compress {
		raw, err = decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decompressing %s: %w", cooldown.ErrCorrupt, s.path, err)
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", cooldown.ErrCorrupt, s.path, err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("%w: %s: unsupported format version %d", cooldown.ErrCorrupt, s.path, doc.Version)
	}

	sum, err := digest(doc.Cooldowns)
	if err != nil {
		return nil, err
	}
	if sum != doc.Digest {
		return nil, fmt.Errorf("%w: %s: digest mismatch", cooldown.ErrCorrupt, s.path)
	}

	entries := make(map[uint64]time.Time, len(doc.Cooldowns))
	for k, v := range doc.Cooldowns {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: player id %q: %w", cooldown.ErrCorrupt, s.path, k, err)
		}
		entries[id] = fromUnixSeconds(v)
	}
	return entries, nil
}

// Save replaces the file contents with entries.
func (s *Store) Save(ctx context.Context, entries map[uint64]time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := document{
		Version:   formatVersion,
		Cooldowns: make(map[string]float64, len(entries)),
	}
	for id, t := range entries {
		doc.Cooldowns[strconv.FormatUint(id, 10)] = toUnixSeconds(t)
	}
	sum, err := digest(doc.Cooldowns)
	if err != nil {
		return err
	}
	doc.Digest = sum

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cooldowns: %w", err)
	}
	if s.compress {
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("compressing cooldowns: %w", err)
		}
	}

	return writeAtomic(s.path, data)
}

// digest hashes the canonical JSON encoding of the cooldown map.
// encoding/json sorts map keys, so the encoding is stable.
func digest(cooldowns map[string]float64) (string, error) {
	if cooldowns == nil {
		cooldowns = map[string]float64{}
	}
	canonical, err := json.Marshal(cooldowns)
	if err != nil {
		return "", fmt.Errorf("encoding cooldowns for digest: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Millisecond precision keeps the float64 round trip exact.
func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func fromUnixSeconds(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000))).UTC()
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", tmpName, err)
	}
	return nil
}
