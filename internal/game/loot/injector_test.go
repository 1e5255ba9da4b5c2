package loot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/patrolsignal/internal/model"
)

// seqRoller returns values from a fixed sequence.
type seqRoller struct {
	vals  []float64
	calls int
}

func (r *seqRoller) Float64() float64 {
	v := r.vals[r.calls%len(r.vals)]
	r.calls++
	return v
}

type mockContainer struct {
	id     uint64
	prefab string
	items  []model.ItemSpec
	err    error
}

func (c *mockContainer) ID() uint64         { return c.id }
func (c *mockContainer) PrefabName() string { return c.prefab }
func (c *mockContainer) AddItem(_ context.Context, item model.ItemSpec) error {
	if c.err != nil {
		return c.err
	}
	c.items = append(c.items, item)
	return nil
}

var signal = model.NewSignalItem(3332447426, "Patrol Heli Signal")

func testSettings() Settings {
	return Settings{
		Enabled: true,
		Chances: map[string]float64{
			"crate_normal": 5,
			"crate_elite":  10,
			"heli_crate":   15,
		},
		Item: signal,
	}
}

func TestInjector_RollBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		prefab string
		roll   float64
		want   bool
	}{
		{"below chance", "crate_elite", 0.05, true},    // 5 <= 10
		{"equal to chance", "crate_elite", 0.10, true}, // 10 <= 10
		{"above chance", "crate_elite", 0.1001, false},
		{"zero roll", "crate_normal", 0, true},
		{"unknown container", "crate_tools", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := NewInjector(testSettings(), &seqRoller{vals: []float64{tt.roll}})
			c := &mockContainer{id: 1, prefab: tt.prefab}

			got := inj.OnContainerEvaluated(context.Background(), c)
			assert.Equal(t, tt.want, got)
			if tt.want {
				require.Len(t, c.items, 1)
				assert.Equal(t, signal, c.items[0])
			} else {
				assert.Empty(t, c.items)
			}
		})
	}
}

func TestInjector_OncePerContainer(t *testing.T) {
	roller := &seqRoller{vals: []float64{0}} // every roll wins
	inj := NewInjector(testSettings(), roller)
	c := &mockContainer{id: 42, prefab: "heli_crate"}

	assert.True(t, inj.OnContainerEvaluated(context.Background(), c))
	assert.False(t, inj.OnContainerEvaluated(context.Background(), c))
	assert.False(t, inj.OnContainerEvaluated(context.Background(), c))

	assert.Len(t, c.items, 1)
	assert.Equal(t, 1, roller.calls, "second evaluation does not even roll")
	assert.Equal(t, 1, inj.Processed())
}

func TestInjector_DestroyedContainerIsForgotten(t *testing.T) {
	inj := NewInjector(testSettings(), &seqRoller{vals: []float64{0.99}})
	for id := uint64(1); id <= 10; id++ {
		inj.OnContainerEvaluated(context.Background(), &mockContainer{id: id, prefab: "crate_normal"})
	}
	require.Equal(t, 10, inj.Processed())

	for id := uint64(1); id <= 10; id++ {
		inj.OnContainerDestroyed(id)
	}
	assert.Equal(t, 0, inj.Processed())

	// Unknown IDs are ignored.
	inj.OnContainerDestroyed(999)
	assert.Equal(t, 0, inj.Processed())
}

func TestInjector_Disabled(t *testing.T) {
	s := testSettings()
	s.Enabled = false
	inj := NewInjector(s, &seqRoller{vals: []float64{0}})
	c := &mockContainer{id: 1, prefab: "heli_crate"}

	assert.False(t, inj.OnContainerEvaluated(context.Background(), c))
	assert.Equal(t, 0, inj.Processed(), "disabled injector does not track containers")
	assert.False(t, inj.OnContainerEvaluated(context.Background(), nil))
}

func TestInjector_AddItemError(t *testing.T) {
	inj := NewInjector(testSettings(), &seqRoller{vals: []float64{0}})
	c := &mockContainer{id: 1, prefab: "heli_crate", err: errors.New("container full")}

	assert.False(t, inj.OnContainerEvaluated(context.Background(), c))
	assert.Equal(t, 1, inj.Processed(), "failed container is still marked processed")
}
