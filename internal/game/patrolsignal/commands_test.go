package patrolsignal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/patrolsignal/internal/model"
)

func TestCommand_Give(t *testing.T) {
	h := newHarness(t)

	h.chat(alice, "helisignal")
	assert.Equal(t, []model.ItemSpec{model.NewSignalItem(skin, "Patrol Heli Signal")}, h.host.Given(alice.ID))
	assert.Equal(t, h.msg("ReceivedHeliSignal"), h.host.LastChat(alice.ID))

	h.chat(carol, "HeliSignal")
	assert.Empty(t, h.host.Given(carol.ID))
	assert.Equal(t, h.msg("NotAllowed"), h.host.LastChat(carol.ID))
}

func TestCommand_SubcommandsRequireAdmin(t *testing.T) {
	h := newHarness(t)

	for _, sub := range []string{"reset", "despawn", "status", "bogus"} {
		h.chat(alice, "helisignal "+sub)
		assert.Equal(t, h.msg("NotAllowed"), h.host.LastChat(alice.ID), sub)
	}
	assert.Empty(t, h.host.Given(alice.ID))
}

func TestCommand_Reset(t *testing.T) {
	h := newHarness(t)
	h.activate(alice)
	h.chat(admin, "helisignal despawn")
	require.True(t, h.plugin.ledger.IsOnCooldown(alice.ID, false))

	h.chat(admin, "helisignal reset Alice")
	assert.Equal(t, h.msg("CooldownResetTarget", "Alice"), h.host.LastChat(admin.ID))
	assert.False(t, h.plugin.ledger.IsOnCooldown(alice.ID, false))
	assert.False(t, h.store.has(alice.ID), "reset is persisted")

	h.chat(admin, "helisignal reset Nobody")
	assert.Equal(t, h.msg("InvalidPlayer"), h.host.LastChat(admin.ID))

	h.activate(admin)
	h.chat(admin, "helisignal despawn")
	require.True(t, h.plugin.ledger.IsOnCooldown(admin.ID, false))
	h.chat(admin, "helisignal RESET")
	assert.Equal(t, h.msg("CooldownReset"), h.host.LastChat(admin.ID))
	assert.False(t, h.plugin.ledger.IsOnCooldown(admin.ID, false))
}

func TestCommand_ResetByID(t *testing.T) {
	h := newHarness(t)
	h.activate(bob)
	h.chat(admin, "helisignal despawn")

	h.chat(admin, "helisignal reset "+bob.IDString())
	assert.Equal(t, h.msg("CooldownResetTarget", "Bob"), h.host.LastChat(admin.ID))
	assert.False(t, h.plugin.ledger.IsOnCooldown(bob.ID, true))
}

func TestCommand_Despawn(t *testing.T) {
	h := newHarness(t)

	h.chat(admin, "helisignal despawn")
	assert.Equal(t, h.msg("NoActiveHeli"), h.host.LastChat(admin.ID))

	patrol := h.activate(alice)
	h.chat(admin, "helisignal despawn")
	assert.Equal(t, h.msg("HeliDespawned"), h.host.LastChat(admin.ID))
	assert.True(t, patrol.Retired)
	assert.True(t, patrol.Killed)

	h.chat(admin, "helisignal despawn")
	assert.Equal(t, h.msg("NoActiveHeli"), h.host.LastChat(admin.ID))
}

func TestCommand_DespawnDuringWarmup(t *testing.T) {
	h := newHarness(t)
	sig := h.throw(alice, skin)

	h.chat(admin, "helisignal despawn")
	assert.Equal(t, h.msg("HeliDespawned"), h.host.LastChat(admin.ID))
	assert.True(t, sig.IsKilled())

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.host.Patrols(), "canceled warmup never spawns")
	assert.False(t, h.store.has(alice.ID))
}

func TestCommand_Status(t *testing.T) {
	h := newHarness(t)

	h.chat(admin, "helisignal status")
	assert.Equal(t, h.msg("NoActiveHeli"), h.host.LastChat(admin.ID))

	h.throw(alice, skin)
	h.chat(admin, "helisignal status")
	warmup := h.host.LastChat(admin.ID)
	assert.Contains(t, warmup, "called by Alice: WARMUP, leaves -.")

	h.clock.Advance(5 * time.Second)
	h.chat(admin, "helisignal status")
	active := h.host.LastChat(admin.ID)
	assert.Contains(t, active, "called by Alice: ACTIVE")
	assert.True(t, strings.HasSuffix(active, "30 minutes from now."), active)

	st, ok := h.plugin.Status()
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(active, "Patrol "+st.ID[:8]+" "), active)
}

func TestCommand_Console(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.plugin.Commands().HandleConsole(h.ctx, model.Player{}, CommandName, nil))
	assert.Empty(t, h.host.Given(0))

	require.True(t, h.plugin.Commands().HandleConsole(h.ctx, alice, "helisignal", []string{"ignored"}))
	assert.Len(t, h.host.Given(alice.ID), 1)
	assert.Equal(t, h.msg("ReceivedHeliSignal"), h.host.LastChat(alice.ID))
}
