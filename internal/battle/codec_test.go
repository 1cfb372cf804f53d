package battle

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecode verifies a battle survives a snapshot unchanged
func TestEncodeDecode(t *testing.T) {
	b := newTestBattle(t)
	place(b.Player1, testCreature("a", 2, 10, 0, 40))
	b.Player1.Tools = []*Tool{{ID: "t1", Name: "Shield", Effect: ToolShield}}

	data, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, data[:2], "snapshot is gzip compressed")

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Turn, got.Turn)
	assert.True(t, b.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Player1.Field, 1)
	assert.Equal(t, 2, got.Player1.Field[0].Form)
	assert.Equal(t, ToolShield, got.Player1.Tools[0].Effect)
	assert.Len(t, got.Log, len(b.Log))
}

// TestDecodePlainJSON verifies uncompressed snapshots are accepted
func TestDecodePlainJSON(t *testing.T) {
	b := newTestBattle(t)
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	env, err := json.Marshal(snapshot{Version: SnapshotVersion, Checksum: checksum(raw), Battle: raw})
	require.NoError(t, err)

	got, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, b.ActivePlayer, got.ActivePlayer)
}

// TestDecodeRejectsTampering verifies the checksum guards the payload
func TestDecodeRejectsTampering(t *testing.T) {
	b := newTestBattle(t)
	raw, err := json.Marshal(b)
	require.NoError(t, err)

	b.Player1.Energy = MaxEnergy
	tampered, err := json.Marshal(b)
	require.NoError(t, err)

	env, err := json.Marshal(snapshot{Version: SnapshotVersion, Checksum: checksum(raw), Battle: tampered})
	require.NoError(t, err)

	_, err = Decode(env)
	assert.ErrorContains(t, err, "checksum mismatch")
}

// TestDecodeRejectsUnknownVersion verifies future snapshots are refused
func TestDecodeRejectsUnknownVersion(t *testing.T) {
	raw := []byte(`{"id":"x"}`)
	env, err := json.Marshal(snapshot{Version: 99, Checksum: checksum(raw), Battle: raw})
	require.NoError(t, err)

	_, err = Decode(env)
	assert.ErrorContains(t, err, "unsupported snapshot version")

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}
