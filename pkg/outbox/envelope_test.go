package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireShape(t *testing.T) {
	env := newEnvelope(0, time.Time{}, NewActor("admin-1", "admin"), json.RawMessage(`{"user_id":"uid-1"}`))
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.False(t, env.OccurredAt.IsZero())
	assert.NotEmpty(t, env.EventID)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"version", "event_id", "occurred_at", "actor", "data"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, "admin-1", decoded["actor"].(map[string]any)["user_id"])
}

func TestNewActorSkipsSystemEvents(t *testing.T) {
	assert.Nil(t, NewActor(" ", "admin"))
}

func TestEnvelopeHasData(t *testing.T) {
	assert.True(t, PayloadEnvelope{Data: json.RawMessage(`{}`)}.HasData())
	assert.False(t, PayloadEnvelope{Data: json.RawMessage(` null `)}.HasData())
	assert.False(t, PayloadEnvelope{}.HasData())
}
