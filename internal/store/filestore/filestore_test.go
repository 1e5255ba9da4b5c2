package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/patrolsignal/internal/game/cooldown"
)

var _ cooldown.Store = (*Store)(nil)

func sampleEntries() map[uint64]time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return map[uint64]time.Time{
		76561198000000001: base,
		76561198000000002: base.Add(-15 * time.Minute),
		42:                base.Add(1500 * time.Millisecond),
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "SimplePatrolSignal.json"))

	entries, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}

func TestStore_SaveLoad(t *testing.T) {
	for _, name := range []string{"cooldowns.json", "cooldowns.json.zst"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)
			s := New(path)

			require.NoError(t, s.Save(ctx, sampleEntries()))

			got, err := New(path).Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			for id, want := range sampleEntries() {
				assert.True(t, want.Equal(got[id]), "player %d: want %v got %v", id, want, got[id])
			}

			// Saving an empty ledger truncates the document.
			require.NoError(t, s.Save(ctx, map[uint64]time.Time{}))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)

			leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp*"))
			require.NoError(t, err)
			assert.Empty(t, leftovers, "temp files must be renamed away")
		})
	}
}

func TestStore_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldowns.json.zst")
	require.NoError(t, New(path).Save(context.Background(), sampleEntries()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 4)
	// zstd frame magic number
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4])
}

func TestStore_PlainDocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldowns.json")
	require.NoError(t, New(path).Save(context.Background(), map[uint64]time.Time{
		7: time.Unix(1700000000, 500_000_000),
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, formatVersion, doc.Version)
	assert.Equal(t, map[string]float64{"7": 1700000000.5}, doc.Cooldowns)
	assert.Len(t, doc.Digest, 64)
}

func TestStore_Corrupt(t *testing.T) {
	validDigest, err := digest(map[string]float64{"1": 10})
	require.NoError(t, err)

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"garbage", "c.json", "{not json"},
		{"digest mismatch", "c.json", `{"version":1,"digest":"00","cooldowns":{"1":10}}`},
		{"tampered value", "c.json", `{"version":1,"digest":"` + validDigest + `","cooldowns":{"1":11}}`},
		{"bad player id", "c.json", mustDoc(t, map[string]float64{"bob": 10})},
		{"unknown version", "c.json", `{"version":9,"digest":"` + validDigest + `","cooldowns":{"1":10}}`},
		{"not zstd", "c.json.zst", mustDoc(t, map[string]float64{"1": 10})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := New(path).Load(context.Background())
			assert.ErrorIs(t, err, cooldown.ErrCorrupt)
		})
	}
}

func TestStore_CorruptFileYieldsEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x01garbage"), 0o644))

	ledger := cooldown.NewLedger(New(path), fixedClock{}, cooldown.Windows{Standard: time.Hour, VIP: 30 * time.Minute})
	require.NoError(t, ledger.Load(context.Background()))
	assert.Equal(t, 0, ledger.Len())
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(filepath.Join(t.TempDir(), "c.json"))
	assert.ErrorIs(t, s.Save(ctx, sampleEntries()), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustDoc(t *testing.T, cooldowns map[string]float64) string {
	t.Helper()
	sum, err := digest(cooldowns)
	require.NoError(t, err)
	data, err := json.Marshal(document{Version: formatVersion, Digest: sum, Cooldowns: cooldowns})
	require.NoError(t, err)
	return string(data)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
