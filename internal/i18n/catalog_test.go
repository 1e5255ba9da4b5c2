package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// messageKeys lists every key the plugin sends to players.
var messageKeys = []string{
	"NotAllowed", "HeliSignalActive", "PatrolCalled", "DestroyingPatrol",
	"ReceivedHeliSignal", "CooldownActive", "VIPCooldownActive", "CooldownReset",
	"CooldownResetTarget", "NoActiveHeli", "HeliDespawned", "InvalidPlayer",
	"RaidBlocked", "NoEscapeBlocked", "SpawnFailed", "PatrolStatus",
}

func TestNew_EmbeddedLocales(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	var tags []string
	for _, tag := range c.Languages() {
		tags = append(tags, tag.String())
	}
	require.NotEmpty(t, tags)
	assert.Equal(t, "en", tags[0])
	assert.ElementsMatch(t, []string{"en", "de", "ru"}, tags)

	data, err := localeFS.ReadFile("locales/en/messages.yaml")
	require.NoError(t, err)
	var en map[string]string
	require.NoError(t, yaml.Unmarshal(data, &en))
	for _, key := range messageKeys {
		assert.Contains(t, en, key, "english catalog must define %s", key)
	}
}

func TestCatalog_Message(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		key  string
		args []any
		want string
	}{
		{"english", "en", "InvalidPlayer", nil, "Player not found."},
		{"empty language", "", "InvalidPlayer", nil, "Player not found."},
		{"russian", "ru", "InvalidPlayer", nil, "Игрок не найден."},
		{"regional variant", "de-AT", "InvalidPlayer", nil, "Spieler nicht gefunden."},
		{"unknown language", "ja", "InvalidPlayer", nil, "Player not found."},
		{"garbage language", "!!", "InvalidPlayer", nil, "Player not found."},
		{"argument", "en", "CooldownActive", []any{12},
			"You must wait 12 minutes before using another Patrol Heli Signal."},
		{"missing key falls back to english", "de", "PatrolStatus", []any{"a", "b", "c", "d"},
			"Patrol a called by b: c, leaves d."},
		{"unknown key", "en", "NoSuchKey", nil, "NoSuchKey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Message(tt.lang, tt.key, tt.args...))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "a b a", Format("{0} {1} {0}", "a", "b"))
	assert.Equal(t, "x {1}", Format("{0} {1}", "x"), "placeholder without argument kept")
	assert.Equal(t, "{} {x}", Format("{} {x}", 1))
	assert.Equal(t, "no args {0}", Format("no args {0}"))
	assert.Equal(t, "open {", Format("open {", 1))
	assert.Equal(t, "3.5", Format("{0}", 3.5))
}

func TestLoad_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en/messages.yaml": {Data: []byte("Hello: \"Hi {0}\"\n")},
		"l/fr/messages.yaml": {Data: []byte("Hello: \"Salut {0}\"\n")},
	}
	c, err := Load(fsys, "l")
	require.NoError(t, err)

	assert.Equal(t, "Salut Bob", c.Message("fr-CA", "Hello", "Bob"))
	assert.Equal(t, "Hi Bob", c.Message("en-GB", "Hello", "Bob"))

	c.Register(language.French, map[string]string{"Hello": "Bonjour {0}"})
	assert.Equal(t, "Bonjour Bob", c.Message("fr", "Hello", "Bob"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(fstest.MapFS{}, "missing")
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{
		"l/en/messages.yaml": {Data: []byte("- not\n- a map\n")},
	}, "l")
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{
		"l/en/other.yaml": {Data: []byte("a: b\n")},
	}, "l")
	assert.Error(t, err)
}
